// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/xrcomp/xrmath"
)

func TestDistortionUBOLayout(t *testing.T) {
	// std140: vec4 arrays are tightly packed at 16 bytes, mat4 at 64.
	if preTransformsOffset != 32 || postTransformsOffset != 64 || transformsOffset != 96 {
		t.Errorf("offsets = %d/%d/%d", preTransformsOffset, postTransformsOffset, transformsOffset)
	}
	if DistortionUBOSize != 224 {
		t.Errorf("DistortionUBOSize = %d, want 224", DistortionUBOSize)
	}
}

func TestNewDistortionUBO_TooSmall(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewDistortionUBO(make([]byte, DistortionUBOSize-1))
}

func TestDistortionUBO_RoundTripPerView(t *testing.T) {
	mem := make([]byte, DistortionUBOSize)
	u := NewDistortionUBO(mem)

	for i := 0; i < MaxViews; i++ {
		f := float32(i + 1)
		vp := Viewport{X: uint32(i) * 100, Y: 7, W: 640, H: 480 + uint32(i)}
		pre := xrmath.NormalizedRect{X: -f, Y: -f, W: 2 * f, H: 2 * f}
		post := xrmath.NormalizedRect{X: 0.5 * f, Y: 0, W: 0.5, H: 1}
		m := mgl32.Translate3D(f, 2*f, 3*f)

		u.SetViewport(i, vp)
		u.SetPreTransform(i, pre)
		u.SetPostTransform(i, post)
		u.SetTransform(i, m)

		if got := u.Viewport(i); got != vp {
			t.Errorf("view %d viewport = %+v, want %+v", i, got, vp)
		}
		if got := u.PreTransform(i); got != pre {
			t.Errorf("view %d pre = %+v, want %+v", i, got, pre)
		}
		if got := u.PostTransform(i); got != post {
			t.Errorf("view %d post = %+v, want %+v", i, got, post)
		}
		if got := u.Transform(i); got != m {
			t.Errorf("view %d transform = %v, want %v", i, got, m)
		}
	}
}

func TestDistortionUBO_FieldWritesAreIsolated(t *testing.T) {
	mem := bytes.Repeat([]byte{0xAB}, DistortionUBOSize)
	u := NewDistortionUBO(mem)

	u.SetViewport(0, Viewport{W: 1, H: 1})

	for i := viewportSize; i < DistortionUBOSize; i++ {
		if mem[i] != 0xAB {
			t.Fatalf("byte %d changed by viewport write", i)
		}
	}

	u.SetTransform(1, mgl32.Ident4())
	if mem[transformsOffset] != 0xAB {
		t.Error("transform of view 1 overwrote view 0")
	}
	if got := u.Transform(1); got != mgl32.Ident4() {
		t.Errorf("transform 1 = %v", got)
	}
}

func TestDistortionUBO_LittleEndianViewport(t *testing.T) {
	mem := make([]byte, DistortionUBOSize)
	NewDistortionUBO(mem).SetViewport(1, Viewport{X: 0x01020304})
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(mem[viewportSize:viewportSize+4], want) {
		t.Errorf("bytes = %x, want %x", mem[viewportSize:viewportSize+4], want)
	}
}
