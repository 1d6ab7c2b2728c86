// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/binary"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/xrcomp"
	"github.com/gogpu/xrcomp/distortion"
	"github.com/gogpu/xrcomp/xrmath"
)

func TestShaderSources(t *testing.T) {
	for _, views := range []uint32{1, 2} {
		s, err := shaderSources(views)
		if err != nil {
			t.Fatalf("shaderSources(%d): %v", views, err)
		}

		shared := map[string]string{
			"distortion":          s.Distortion.WGSL,
			"distortion_timewarp": s.DistortionTimewarp.WGSL,
			"clear":               s.Clear.WGSL,
		}
		for name, src := range shared {
			for _, want := range []string{
				"@binding(0) var src0",
				"@binding(32) var src0_sampler",
				"@binding(64) var dist0",
				"@binding(128) var out_image: texture_storage_2d<rgba8unorm, write>",
				"@binding(192) var<uniform> params",
				"@workgroup_size(8, 8, 1)",
				"fn main(",
			} {
				if !strings.Contains(src, want) {
					t.Errorf("%d views: %s shader missing %q", views, name, want)
				}
			}
			hasView1 := strings.Contains(src, "@binding(67) var dist3")
			if hasView1 != (views == 2) {
				t.Errorf("%d views: %s shader declares second view tables = %v", views, name, hasView1)
			}
		}

		if !strings.Contains(s.DistortionTimewarp.WGSL, "params.transforms[view]") {
			t.Error("timewarp shader does not read the per-view transform")
		}
		if strings.Contains(s.Distortion.WGSL, "params.transforms[view]") {
			t.Error("distortion shader reads the timewarp transform")
		}

		for name, src := range map[string]string{"layer": s.Layer.WGSL, "layer_timewarp": s.LayerTimewarp.WGSL} {
			for _, want := range []string{
				"@binding(0) var src0",
				"@binding(128) var out_image",
				"@binding(192) var<uniform> layer: LayerParams",
			} {
				if !strings.Contains(src, want) {
					t.Errorf("%s shader missing %q", name, want)
				}
			}
		}
	}

	if _, err := shaderSources(3); err == nil {
		t.Error("shaderSources(3) should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := config{frames: 1, width: 64, height: 32, views: 2, mode: "timewarp"}
	if err := valid.validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *config)
	}{
		{"zero views", func(c *config) { c.views = 0 }},
		{"too many views", func(c *config) { c.views = xrcomp.MaxViews + 1 }},
		{"zero height", func(c *config) { c.height = 0 }},
		{"narrower than views", func(c *config) { c.width = 1 }},
		{"zero frames", func(c *config) { c.frames = 0 }},
		{"unknown mode", func(c *config) { c.mode = "raster" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.validate(); err == nil {
				t.Error("expected error")
			}
			if err := run(c); err == nil {
				t.Error("run should reject the config")
			}
		})
	}
}

func TestConfigViewports(t *testing.T) {
	c := config{width: 100, height: 40, views: 2}
	got := c.viewports()
	want := []xrcomp.Viewport{
		{X: 0, Y: 0, W: 50, H: 40},
		{X: 50, Y: 0, W: 50, H: 40},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d viewports, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("viewport %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWriteLayerUBO(t *testing.T) {
	b := make([]byte, layerUBOSize)
	vp := xrcomp.Viewport{X: 8, Y: 16, W: 320, H: 240}
	rect := xrmath.NormalizedRect{X: 0.25, Y: 0, W: 0.5, H: 1}
	m := mgl32.Translate3D(1, 2, 3)

	writeLayerUBO(b, vp, rect, m)

	le := binary.LittleEndian
	if got := le.Uint32(b[layerViewportOffset+8:]); got != 320 {
		t.Errorf("viewport width = %d, want 320", got)
	}
	if got := math.Float32frombits(le.Uint32(b[layerUVRectOffset:])); got != 0.25 {
		t.Errorf("uv rect x = %v, want 0.25", got)
	}
	// Column-major: the translation is in elements 12-14.
	if got := math.Float32frombits(le.Uint32(b[layerTransformOffset+4*13:])); got != 2 {
		t.Errorf("transform[13] = %v, want 2", got)
	}
}

func TestHeadPose(t *testing.T) {
	p := headPose(0)
	if p.Orientation != xrmath.IdentityQuat() {
		t.Errorf("headPose(0) = %+v, want identity", p.Orientation)
	}
	q := headPose(45).Orientation
	n := q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
	if math.Abs(float64(n)-1) > 1e-5 {
		t.Errorf("headPose(45) is not normalized: |q|^2 = %v", n)
	}
}

func TestLensModel(t *testing.T) {
	m := lensModel(0.2)
	r := m.Channels[distortion.ChannelRed].K1
	g := m.Channels[distortion.ChannelGreen].K1
	b := m.Channels[distortion.ChannelBlue].K1
	if !(r < g && g < b) {
		t.Errorf("K1 not increasing red to blue: %v %v %v", r, g, b)
	}
	if m.CenterU != 0.5 || m.CenterV != 0.5 {
		t.Errorf("center = (%v, %v), want (0.5, 0.5)", m.CenterU, m.CenterV)
	}

	models := config{views: 2, lens: m}.lensModels()
	if len(models) != 2 || models[1] != m {
		t.Errorf("lensModels = %+v", models)
	}
}

func TestWriteLensPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lens.png")
	if err := writeLensPNG(path, lensModel(0.2), 16, 64); err != nil {
		t.Fatalf("writeLensPNG: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Errorf("preview is %dx%d, want 64x64", b.Dx(), b.Dy())
	}

	if err := writeLensPNG(path, lensModel(0.2), 1, 64); err == nil {
		t.Error("table size 1 should fail")
	}
}

func TestRenderLens_Identity(t *testing.T) {
	tables, err := distortion.Identity(8)
	if err != nil {
		t.Fatal(err)
	}
	img := renderLens(tables)
	// With no distortion every channel sees the same checker cell.
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := img.NRGBAAt(x, y)
			if c.R != c.G || c.G != c.B {
				t.Fatalf("pixel (%d, %d) = %+v, channels differ", x, y, c)
			}
		}
	}
}
