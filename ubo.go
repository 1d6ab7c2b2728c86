// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/xrcomp/xrmath"
)

// Distortion uniform layout (std140), MaxViews entries per array:
//
//	views           [MaxViews]{x, y, w, h u32}
//	pre_transforms  [MaxViews]vec4<f32>
//	post_transforms [MaxViews]vec4<f32>
//	transforms      [MaxViews]mat4x4<f32>
const (
	viewportSize  = 16
	rectSize      = 16
	transformSize = 64

	viewsOffset          = 0
	preTransformsOffset  = viewsOffset + MaxViews*viewportSize
	postTransformsOffset = preTransformsOffset + MaxViews*rectSize
	transformsOffset     = postTransformsOffset + MaxViews*rectSize

	// DistortionUBOSize is the size in bytes of the uniform block read by
	// the projection, projection timewarp and clear shaders.
	DistortionUBOSize = transformsOffset + MaxViews*transformSize
)

// DistortionUBO is a write window onto the mapped distortion uniform buffer.
// Each setter writes one field of one view and leaves every other byte
// untouched.
type DistortionUBO struct {
	b []byte
}

// NewDistortionUBO wraps mapped. It panics if mapped cannot hold
// DistortionUBOSize bytes.
func NewDistortionUBO(mapped []byte) DistortionUBO {
	if len(mapped) < DistortionUBOSize {
		panic("xrcomp: mapped distortion uniform buffer too small")
	}
	return DistortionUBO{b: mapped[:DistortionUBOSize]}
}

// SetViewport writes the viewport of view i.
func (u DistortionUBO) SetViewport(i int, v Viewport) {
	o := viewsOffset + i*viewportSize
	le := binary.LittleEndian
	le.PutUint32(u.b[o:], v.X)
	le.PutUint32(u.b[o+4:], v.Y)
	le.PutUint32(u.b[o+8:], v.W)
	le.PutUint32(u.b[o+12:], v.H)
}

// SetPreTransform writes the UV to tangent transform of view i.
func (u DistortionUBO) SetPreTransform(i int, r xrmath.NormalizedRect) {
	putRect(u.b[preTransformsOffset+i*rectSize:], r)
}

// SetPostTransform writes the normalized source rect of view i.
func (u DistortionUBO) SetPostTransform(i int, r xrmath.NormalizedRect) {
	putRect(u.b[postTransformsOffset+i*rectSize:], r)
}

// SetTransform writes the 4x4 transform of view i, column major.
func (u DistortionUBO) SetTransform(i int, m mgl32.Mat4) {
	o := transformsOffset + i*transformSize
	for k, f := range m {
		binary.LittleEndian.PutUint32(u.b[o+k*4:], math.Float32bits(f))
	}
}

// Viewport reads back the viewport of view i.
func (u DistortionUBO) Viewport(i int) Viewport {
	o := viewsOffset + i*viewportSize
	le := binary.LittleEndian
	return Viewport{
		X: le.Uint32(u.b[o:]),
		Y: le.Uint32(u.b[o+4:]),
		W: le.Uint32(u.b[o+8:]),
		H: le.Uint32(u.b[o+12:]),
	}
}

// PreTransform reads back the pre-transform of view i.
func (u DistortionUBO) PreTransform(i int) xrmath.NormalizedRect {
	return getRect(u.b[preTransformsOffset+i*rectSize:])
}

// PostTransform reads back the post-transform of view i.
func (u DistortionUBO) PostTransform(i int) xrmath.NormalizedRect {
	return getRect(u.b[postTransformsOffset+i*rectSize:])
}

// Transform reads back the transform of view i.
func (u DistortionUBO) Transform(i int) mgl32.Mat4 {
	var m mgl32.Mat4
	o := transformsOffset + i*transformSize
	for k := range m {
		m[k] = math.Float32frombits(binary.LittleEndian.Uint32(u.b[o+k*4:]))
	}
	return m
}

func putRect(b []byte, r xrmath.NormalizedRect) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], math.Float32bits(r.X))
	le.PutUint32(b[4:], math.Float32bits(r.Y))
	le.PutUint32(b[8:], math.Float32bits(r.W))
	le.PutUint32(b[12:], math.Float32bits(r.H))
}

func getRect(b []byte) xrmath.NormalizedRect {
	le := binary.LittleEndian
	return xrmath.NormalizedRect{
		X: math.Float32frombits(le.Uint32(b[0:])),
		Y: math.Float32frombits(le.Uint32(b[4:])),
		W: math.Float32frombits(le.Uint32(b[8:])),
		H: math.Float32frombits(le.Uint32(b[12:])),
	}
}
