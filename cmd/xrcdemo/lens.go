// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/xrcomp/distortion"
)

// lensModel is a barrel distortion with a small chromatic spread: blue
// bends more than green, green more than red.
func lensModel(k1 float32) distortion.Model {
	m := distortion.IdentityModel()
	m.Channels[distortion.ChannelRed] = distortion.Coefficients{K1: k1 * 0.98}
	m.Channels[distortion.ChannelGreen] = distortion.Coefficients{K1: k1}
	m.Channels[distortion.ChannelBlue] = distortion.Coefficients{K1: k1 * 1.02}
	return m
}

// checker is the reference pattern looked up through the tables.
func checker(u, v float32) uint8 {
	const cells = 8
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return 0
	}
	if (int(u*cells)+int(v*cells))%2 == 0 {
		return 0xe0
	}
	return 0x30
}

// renderLens draws a checkerboard as the distortion pass would see it:
// each channel samples the pattern at the UV its table stores.
func renderLens(t distortion.Tables) *image.NRGBA {
	size := t[0].Size
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			var c [distortion.ChannelCount]uint8
			for ch := range t {
				c[ch] = checker(t[ch].At(x, y))
			}
			img.SetNRGBA(x, y, color.NRGBA{R: c[0], G: c[1], B: c[2], A: 0xff})
		}
	}
	return img
}

// writeLensPNG renders the tables of m at tableSize and writes them
// upscaled to outSize pixels.
func writeLensPNG(path string, m distortion.Model, tableSize, outSize int) error {
	tables, err := distortion.Compute(m, tableSize)
	if err != nil {
		return err
	}
	src := renderLens(tables)

	dst := image.NewNRGBA(image.Rect(0, 0, outSize, outSize))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, dst); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
