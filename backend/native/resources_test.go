// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"errors"
	"testing"

	"github.com/gogpu/xrcomp"
	"github.com/gogpu/xrcomp/distortion"
	"github.com/gogpu/xrcomp/gpucore"
	"github.com/gogpu/xrcomp/xrmath"
)

func testShaders() Shaders {
	src := ShaderSource{SPIRV: fakeSPIRV}
	return Shaders{
		Layer:              src,
		LayerTimewarp:      src,
		Distortion:         src,
		DistortionTimewarp: src,
		Clear:              src,
	}
}

func newTestResources(t *testing.T, d *Device, viewCount uint32) *Resources {
	t.Helper()
	r, err := NewResources(d, &ResourcesDescriptor{
		Label:          "test",
		ViewCount:      viewCount,
		Shaders:        testShaders(),
		DistortionSize: 8,
	})
	if err != nil {
		t.Fatalf("NewResources: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

func TestNewResources(t *testing.T) {
	for _, vc := range []uint32{1, 2} {
		t.Run(map[uint32]string{1: "mono", 2: "stereo"}[vc], func(t *testing.T) {
			d := newTestDevice(t)
			r := newTestResources(t, d, vc)

			if err := r.Compute().Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if r.Compute().Device != d {
				t.Error("Device is not the native device")
			}
			if r.Bindings != xrcomp.DefaultBindings() {
				t.Errorf("Bindings = %+v, want defaults", r.Bindings)
			}
			for i := uint32(0); i < xrcomp.MaxDistortionImages; i++ {
				set := r.Lens.Views[i] != gpucore.InvalidID
				if want := i < xrcomp.DistortionImagesPerView*vc; set != want {
					t.Errorf("distortion view %d set = %v, want %v", i, set, want)
				}
			}
			want := xrmath.CalcUVToTangentLengthsRect(DefaultFov())
			for i := uint32(0); i < vc; i++ {
				if r.Lens.UVToTanAngle[i] != want {
					t.Errorf("UVToTanAngle[%d] = %+v, want %+v", i, r.Lens.UVToTanAngle[i], want)
				}
			}
			for i, ubo := range r.Layer.UBOs {
				if len(ubo.Mapped) != DefaultLayerUBOSize {
					t.Errorf("layer UBO %d has %d bytes, want %d", i, len(ubo.Mapped), DefaultLayerUBOSize)
				}
			}
		})
	}
}

func TestNewResources_Invalid(t *testing.T) {
	d := newTestDevice(t)
	noShader := testShaders()
	noShader.Clear = ShaderSource{}

	tests := []struct {
		name string
		dev  *Device
		desc *ResourcesDescriptor
	}{
		{"nil device", nil, &ResourcesDescriptor{ViewCount: 1, Shaders: testShaders()}},
		{"nil descriptor", d, nil},
		{"zero views", d, &ResourcesDescriptor{ViewCount: 0, Shaders: testShaders()}},
		{"too many views", d, &ResourcesDescriptor{ViewCount: xrcomp.MaxViews + 1, Shaders: testShaders()}},
		{"missing shader", d, &ResourcesDescriptor{ViewCount: 1, Shaders: noShader}},
		{"bad distortion size", d, &ResourcesDescriptor{ViewCount: 1, Shaders: testShaders(), DistortionSize: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResources(tt.dev, tt.desc)
			if err == nil {
				r.Release()
				t.Fatal("expected error")
			}
		})
	}

	if _, err := NewResources(d, &ResourcesDescriptor{ViewCount: 1, Shaders: testShaders(), DistortionSize: 1}); !errors.Is(err, distortion.ErrInvalidSize) {
		t.Errorf("bad distortion size err = %v, want ErrInvalidSize", err)
	}
}

func TestResources_ReleaseTwice(t *testing.T) {
	d := newTestDevice(t)
	r, err := NewResources(d, &ResourcesDescriptor{ViewCount: 2, Shaders: testShaders(), DistortionSize: 4})
	if err != nil {
		t.Fatalf("NewResources: %v", err)
	}
	r.Release()
	r.Release()

	if len(d.pipelines) != 0 || len(d.images) != 0 || len(d.buffers) != 0 || len(d.samplers) != 0 {
		t.Errorf("registries not empty after Release: %d pipelines, %d images, %d buffers, %d samplers",
			len(d.pipelines), len(d.images), len(d.buffers), len(d.samplers))
	}
}

func stereoViews(r *Resources) []xrcomp.ProjectionView {
	views := make([]xrcomp.ProjectionView, r.ViewCount)
	for i := range views {
		views[i] = xrcomp.ProjectionView{
			Viewport: xrcomp.Viewport{X: uint32(i) * 64, W: 64, H: 64},
			Sampler:  r.Samplers.ClampToEdge,
			Source:   r.Mock.View,
			NormRect: xrmath.FullRect(),
			SrcPose:  xrmath.IdentityPose(),
			SrcFov:   DefaultFov(),
			NewPose:  xrmath.IdentityPose(),
		}
	}
	return views
}

func TestCompute_FramesOnNativeDevice(t *testing.T) {
	d := newTestDevice(t)
	r := newTestResources(t, d, 2)

	target, err := r.CreateTarget("target", 128, 64)
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	c := xrcomp.NewCompute(xrcomp.WithDebugNames(true))
	if err := c.Init(r.Compute()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer c.Fini()

	views := stereoViews(r)
	viewports := []xrcomp.Viewport{views[0].Viewport, views[1].Viewport}
	sources := []xrcomp.LayerSource{
		{Sampler: r.Samplers.ClampToEdge, View: r.Mock.View},
		{Sampler: r.Samplers.ClampToEdge, View: r.Lens.Views[0]},
	}

	passes := []struct {
		name   string
		record func()
	}{
		{"projection", func() { c.Projection(views, target) }},
		{"timewarp", func() { c.ProjectionTimewarp(views, target) }},
		{"clear", func() { c.Clear(viewports, target) }},
		{"layers", func() {
			d.FlushMappedBuffer(r.Layer.UBOs[0])
			c.Layers(c.LayerDescriptorSet(0), r.Layer.UBOs[0].Buffer, sources, target.View, viewports[0], false)
			d.FlushMappedBuffer(r.Layer.UBOs[1])
			c.Layers(c.LayerDescriptorSet(1), r.Layer.UBOs[1].Buffer, sources[:1], target.View, viewports[1], true)
		}},
	}

	for _, p := range passes {
		t.Run(p.name, func(t *testing.T) {
			for frame := 0; frame < 2; frame++ {
				if err := c.Begin(); err != nil {
					t.Fatalf("frame %d: Begin: %v", frame, err)
				}
				p.record()
				if err := c.End(); err != nil {
					t.Fatalf("frame %d: End: %v", frame, err)
				}
				if err := d.Submit(r.Cmd); err != nil {
					t.Fatalf("frame %d: Submit: %v", frame, err)
				}
			}
		})
	}
}

func TestCompute_InitFiniCyclesOnNativeDevice(t *testing.T) {
	d := newTestDevice(t)
	r := newTestResources(t, d, 1)

	c := xrcomp.NewCompute()
	for i := 0; i < 3; i++ {
		if err := c.Init(r.Compute()); err != nil {
			t.Fatalf("cycle %d: Init: %v", i, err)
		}
		if got := len(d.descPools[r.DescriptorPool].sets); got != xrcomp.MaxLayerRuns+1 {
			t.Errorf("cycle %d: %d sets allocated, want %d", i, got, xrcomp.MaxLayerRuns+1)
		}
		c.Fini()
		if got := len(d.descPools[r.DescriptorPool].sets); got != 0 {
			t.Errorf("cycle %d: %d sets after Fini, want 0", i, got)
		}
	}
}
