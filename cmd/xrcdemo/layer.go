// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/xrcomp"
	"github.com/gogpu/xrcomp/xrmath"
)

// Layer uniform layout (std140), see shaders/layer_params.wgsl.
const (
	layerViewportOffset  = 0
	layerUVRectOffset    = 16
	layerTransformOffset = 32
	layerUBOSize         = layerTransformOffset + 64
)

// writeLayerUBO fills a mapped layer uniform buffer.
func writeLayerUBO(b []byte, vp xrcomp.Viewport, uv xrmath.NormalizedRect, transform mgl32.Mat4) {
	le := binary.LittleEndian
	le.PutUint32(b[layerViewportOffset:], vp.X)
	le.PutUint32(b[layerViewportOffset+4:], vp.Y)
	le.PutUint32(b[layerViewportOffset+8:], vp.W)
	le.PutUint32(b[layerViewportOffset+12:], vp.H)

	for i, f := range [4]float32{uv.X, uv.Y, uv.W, uv.H} {
		le.PutUint32(b[layerUVRectOffset+4*i:], math.Float32bits(f))
	}
	for i, f := range transform {
		le.PutUint32(b[layerTransformOffset+4*i:], math.Float32bits(f))
	}
}
