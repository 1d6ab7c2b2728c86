// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package distortion generates the lens distortion lookup tables sampled by
// the compute compositor.
//
// Every view carries three tables, one per color channel, so chromatic
// aberration is corrected by sampling the source image at a slightly
// different position for red, green and blue. Each table maps an output UV
// to the source UV to sample, stored as two float32 values per texel
// (RG32Float).
package distortion

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ChannelCount is the number of distortion tables per view.
const ChannelCount = 3

// Size limits for a table edge.
const (
	MinSize = 2
	MaxSize = 4096
)

// BytesPerTexel is the size of one RG32Float texel.
const BytesPerTexel = 8

// Channel indices into Tables.
const (
	ChannelRed = iota
	ChannelGreen
	ChannelBlue
)

// ErrInvalidSize is returned when a table size is outside [MinSize, MaxSize].
var ErrInvalidSize = errors.New("distortion: invalid table size")

// Coefficients are the radial polynomial terms of one channel:
// scale(r) = 1 + K1*r^2 + K2*r^4 + K3*r^6.
type Coefficients struct {
	K1, K2, K3 float32
}

func (c Coefficients) scale(r2 float64) float64 {
	r4 := r2 * r2
	r6 := r4 * r2
	return 1 + float64(c.K1)*r2 + float64(c.K2)*r4 + float64(c.K3)*r6
}

// Model is a per-channel radial distortion model around a lens center.
type Model struct {
	// CenterU and CenterV are the lens center in UV space.
	CenterU, CenterV float32

	// Channels holds the coefficients for red, green and blue.
	Channels [ChannelCount]Coefficients
}

// IdentityModel returns a model that leaves every UV in place.
func IdentityModel() Model {
	return Model{CenterU: 0.5, CenterV: 0.5}
}

// Table is one square RG32Float lookup table.
type Table struct {
	Size int
	Data []float32
}

// At returns the source UV stored for texel (x, y).
func (t *Table) At(x, y int) (u, v float32) {
	i := (y*t.Size + x) * 2
	return t.Data[i], t.Data[i+1]
}

// BytesPerRow returns the row pitch of the table when uploaded.
func (t *Table) BytesPerRow() uint32 {
	return uint32(t.Size * BytesPerTexel)
}

// Bytes returns the table as little endian RG32Float texels.
func (t *Table) Bytes() []byte {
	out := make([]byte, len(t.Data)*4)
	for i, f := range t.Data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// Tables holds the red, green and blue tables of one view.
type Tables [ChannelCount]Table

// Compute evaluates m on a size x size grid.
//
// Texel (0, 0) maps output UV (0, 0) and texel (size-1, size-1) maps output
// UV (1, 1), so a clamp-to-edge linear sampler reproduces the model exactly
// at the image borders.
func Compute(m Model, size int) (Tables, error) {
	if size < MinSize || size > MaxSize {
		return Tables{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	var out Tables
	step := 1 / float64(size-1)
	cu, cv := float64(m.CenterU), float64(m.CenterV)

	for c := range out {
		coeffs := m.Channels[c]
		data := make([]float32, size*size*2)
		for y := 0; y < size; y++ {
			dv := float64(y)*step - cv
			for x := 0; x < size; x++ {
				du := float64(x)*step - cu
				s := coeffs.scale(du*du + dv*dv)
				i := (y*size + x) * 2
				data[i] = float32(cu + du*s)
				data[i+1] = float32(cv + dv*s)
			}
		}
		out[c] = Table{Size: size, Data: data}
	}
	return out, nil
}

// Identity returns tables that map every UV onto itself.
func Identity(size int) (Tables, error) {
	return Compute(IdentityModel(), size)
}
