// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/xrcomp"
	"github.com/gogpu/xrcomp/distortion"
	"github.com/gogpu/xrcomp/gpucore"
	"github.com/gogpu/xrcomp/xrmath"
)

// Provisioning defaults.
const (
	DefaultDistortionSize = 64
	DefaultLayerUBOSize   = 256
)

// DefaultFov is the symmetric 90 degree field of view used for views
// without an explicit one.
func DefaultFov() xrmath.Fov {
	const a = math.Pi / 4
	return xrmath.Fov{AngleLeft: -a, AngleRight: a, AngleUp: a, AngleDown: -a}
}

// mockTexel is the color of the 1x1 mock image.
var mockTexel = [4]byte{0x20, 0x20, 0x20, 0xff}

// ResourcesDescriptor configures NewResources.
type ResourcesDescriptor struct {
	// Label prefixes every object label.
	Label string

	// ViewCount is the number of views, 1 to xrcomp.MaxViews.
	ViewCount uint32

	Shaders Shaders

	// TargetFormat is the storage format of target images.
	// Defaults to RGBA8Unorm.
	TargetFormat gputypes.TextureFormat

	// Lens holds the distortion model of each view. Missing views use
	// distortion.IdentityModel.
	Lens []distortion.Model

	// Fov holds the field of view of each view, used for the distortion
	// pre-transform. Missing views use DefaultFov.
	Fov []xrmath.Fov

	// DistortionSize is the edge of every distortion table.
	// Defaults to DefaultDistortionSize.
	DistortionSize uint32

	// LayerUBOSize is the size of each layer uniform buffer.
	// Defaults to DefaultLayerUBOSize.
	LayerUBOSize uint64
}

func (desc *ResourcesDescriptor) withDefaults() ResourcesDescriptor {
	out := *desc
	if out.Label == "" {
		out.Label = "xrcomp"
	}
	if out.TargetFormat == gputypes.TextureFormatUndefined {
		out.TargetFormat = gputypes.TextureFormatRGBA8Unorm
	}
	if out.DistortionSize == 0 {
		out.DistortionSize = DefaultDistortionSize
	}
	if out.LayerUBOSize == 0 {
		out.LayerUBOSize = DefaultLayerUBOSize
	}
	return out
}

func (desc *ResourcesDescriptor) lens(view uint32) distortion.Model {
	if int(view) < len(desc.Lens) {
		return desc.Lens[view]
	}
	return distortion.IdentityModel()
}

func (desc *ResourcesDescriptor) fov(view uint32) xrmath.Fov {
	if int(view) < len(desc.Fov) {
		return desc.Fov[view]
	}
	return DefaultFov()
}

// Resources is a fully provisioned xrcomp.Resources on a native Device.
// Release frees every object it created.
type Resources struct {
	xrcomp.Resources

	dev          *Device
	label        string
	targetFormat gputypes.TextureFormat

	// release holds the destroy calls of every created object, in
	// creation order.
	release []func()
}

// NewResources provisions the command buffer, pools, layouts, pipelines,
// samplers, mock image, distortion images and uniform buffers the compute
// passes record against.
func NewResources(dev *Device, desc *ResourcesDescriptor) (*Resources, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: nil device", ErrInvalidDescriptor)
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrInvalidDescriptor)
	}
	if desc.ViewCount == 0 || desc.ViewCount > xrcomp.MaxViews {
		return nil, fmt.Errorf("%w: view count %d", ErrInvalidDescriptor, desc.ViewCount)
	}
	d := desc.withDefaults()

	r := &Resources{dev: dev, label: d.Label, targetFormat: d.TargetFormat}
	r.Device = dev
	r.ViewCount = d.ViewCount
	r.Bindings = xrcomp.DefaultBindings()

	steps := []struct {
		name string
		fn   func(*ResourcesDescriptor) error
	}{
		{"commands", r.createCommands},
		{"layouts", r.createLayouts},
		{"pipelines", r.createPipelines},
		{"samplers", r.createSamplers},
		{"mock image", r.createMock},
		{"distortion images", r.createDistortion},
		{"uniform buffers", r.createUBOs},
	}
	for _, s := range steps {
		if err := s.fn(&d); err != nil {
			r.Release()
			return nil, fmt.Errorf("native: provision %s: %w", s.name, err)
		}
	}

	if err := r.Validate(); err != nil {
		r.Release()
		return nil, err
	}

	xrcomp.Logger().Info("native: resources provisioned",
		"label", d.Label,
		"views", d.ViewCount,
		"distortion_size", d.DistortionSize)
	return r, nil
}

// Compute returns the resources to hand to xrcomp.Compute.Init.
func (r *Resources) Compute() *xrcomp.Resources {
	return &r.Resources
}

// Release destroys every object NewResources and CreateTarget created, in
// reverse order. It is safe to call more than once.
func (r *Resources) Release() {
	for i := len(r.release) - 1; i >= 0; i-- {
		r.release[i]()
	}
	r.release = nil
}

func (r *Resources) onRelease(fn func()) {
	r.release = append(r.release, fn)
}

func (r *Resources) name(s string) string {
	return r.label + "_" + s
}

func (r *Resources) createCommands(_ *ResourcesDescriptor) error {
	dev := r.dev

	r.CommandPool = dev.CreateCommandPool()
	pool := r.CommandPool
	r.onRelease(func() { dev.DestroyCommandPool(pool) })

	cmd, err := dev.AllocateCommandBuffer(pool, r.name("cmd"))
	if err != nil {
		return err
	}
	r.Cmd = cmd

	r.QueryPool = dev.CreateQueryPool(2)
	qp := r.QueryPool
	r.onRelease(func() { dev.DestroyQueryPool(qp) })

	r.DescriptorPool = dev.CreateDescriptorPool(xrcomp.MaxLayerRuns + 1)
	dp := r.DescriptorPool
	r.onRelease(func() { dev.DestroyDescriptorPool(dp) })
	return nil
}

// LayerLayoutEntries returns the descriptor set layout of the layer pass.
func LayerLayoutEntries(b xrcomp.Bindings, targetFormat gputypes.TextureFormat) []LayoutEntry {
	return []LayoutEntry{
		{Binding: b.Src, Type: gpucore.DescriptorTypeCombinedImageSampler, Count: xrcomp.MaxImages},
		{Binding: b.Target, Type: gpucore.DescriptorTypeStorageImage, Count: 1, StorageFormat: targetFormat},
		{Binding: b.UBO, Type: gpucore.DescriptorTypeUniformBuffer, Count: 1},
	}
}

// DistortionLayoutEntries returns the descriptor set layout shared by the
// projection, projection timewarp and clear passes for viewCount views.
func DistortionLayoutEntries(b xrcomp.Bindings, viewCount uint32, targetFormat gputypes.TextureFormat) []LayoutEntry {
	return []LayoutEntry{
		{Binding: b.Src, Type: gpucore.DescriptorTypeCombinedImageSampler, Count: viewCount},
		{Binding: b.Distortion, Type: gpucore.DescriptorTypeCombinedImageSampler, Count: xrcomp.DistortionImagesPerView * viewCount},
		{Binding: b.Target, Type: gpucore.DescriptorTypeStorageImage, Count: 1, StorageFormat: targetFormat},
		{Binding: b.UBO, Type: gpucore.DescriptorTypeUniformBuffer, Count: 1},
	}
}

func (r *Resources) createLayouts(d *ResourcesDescriptor) error {
	dev := r.dev

	layer, err := dev.CreateDescriptorSetLayout(r.name("layer_set_layout"), LayerLayoutEntries(r.Bindings, d.TargetFormat))
	if err != nil {
		return err
	}
	r.onRelease(func() { dev.DestroyDescriptorSetLayout(layer) })
	r.Layer.DescriptorSetLayout = layer

	layerPL, err := dev.CreatePipelineLayout(r.name("layer_pipeline_layout"), layer)
	if err != nil {
		return err
	}
	r.onRelease(func() { dev.DestroyPipelineLayout(layerPL) })
	r.Layer.PipelineLayout = layerPL

	dist, err := dev.CreateDescriptorSetLayout(r.name("distortion_set_layout"),
		DistortionLayoutEntries(r.Bindings, d.ViewCount, d.TargetFormat))
	if err != nil {
		return err
	}
	r.onRelease(func() { dev.DestroyDescriptorSetLayout(dist) })
	r.Distortion.DescriptorSetLayout = dist

	distPL, err := dev.CreatePipelineLayout(r.name("distortion_pipeline_layout"), dist)
	if err != nil {
		return err
	}
	r.onRelease(func() { dev.DestroyPipelineLayout(distPL) })
	r.Distortion.PipelineLayout = distPL
	return nil
}

func (r *Resources) createPipelines(d *ResourcesDescriptor) error {
	pipelines := []struct {
		name   string
		src    ShaderSource
		layout gpucore.PipelineLayout
		dst    *gpucore.Pipeline
	}{
		{"layer", d.Shaders.Layer, r.Layer.PipelineLayout, &r.Layer.NonTimewarpPipeline},
		{"layer_timewarp", d.Shaders.LayerTimewarp, r.Layer.PipelineLayout, &r.Layer.TimewarpPipeline},
		{"distortion", d.Shaders.Distortion, r.Distortion.PipelineLayout, &r.Distortion.Pipeline},
		{"distortion_timewarp", d.Shaders.DistortionTimewarp, r.Distortion.PipelineLayout, &r.Distortion.TimewarpPipeline},
		{"clear", d.Shaders.Clear, r.Distortion.PipelineLayout, &r.Clear.Pipeline},
	}

	dev := r.dev
	for _, p := range pipelines {
		spirv, err := p.src.spirv()
		if err != nil {
			return fmt.Errorf("%s shader: %w", p.name, err)
		}
		id, err := dev.CreateComputePipeline(r.name(p.name), p.layout, spirv, p.src.entryPoint())
		if err != nil {
			return err
		}
		r.onRelease(func() { dev.DestroyPipeline(id) })
		*p.dst = id
	}
	return nil
}

func (r *Resources) createSamplers(_ *ResourcesDescriptor) error {
	dev := r.dev
	samplers := []struct {
		name string
		dst  *gpucore.Sampler
	}{
		{"clamp_to_edge_sampler", &r.Samplers.ClampToEdge},
		{"mock_sampler", &r.Samplers.Mock},
	}
	for _, s := range samplers {
		id, err := dev.CreateSampler(&hal.SamplerDescriptor{
			Label:        r.name(s.name),
			AddressModeU: gputypes.AddressModeClampToEdge,
			AddressModeV: gputypes.AddressModeClampToEdge,
			AddressModeW: gputypes.AddressModeClampToEdge,
			MagFilter:    gputypes.FilterModeLinear,
			MinFilter:    gputypes.FilterModeLinear,
			MipmapFilter: gputypes.FilterModeLinear,
		})
		if err != nil {
			return err
		}
		r.onRelease(func() { dev.DestroySampler(id) })
		*s.dst = id
	}
	return nil
}

// createImage creates a sampled 2D image and its view.
func (r *Resources) createImage(label string, w, h uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (gpucore.Image, gpucore.ImageView, error) {
	dev := r.dev
	img, err := dev.CreateImage(&hal.TextureDescriptor{
		Label:         r.name(label),
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return gpucore.InvalidID, gpucore.InvalidID, err
	}
	r.onRelease(func() { dev.DestroyImage(img) })

	view, err := dev.CreateImageView(img, &hal.TextureViewDescriptor{
		Label: r.name(label + "_view"),
	})
	if err != nil {
		return gpucore.InvalidID, gpucore.InvalidID, err
	}
	r.onRelease(func() { dev.DestroyImageView(view) })
	return img, view, nil
}

func (r *Resources) createMock(_ *ResourcesDescriptor) error {
	img, view, err := r.createImage("mock_image", 1, 1, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return err
	}
	if err := r.dev.WriteImage(img, mockTexel[:], 4, 1, 1); err != nil {
		return err
	}
	r.Mock = xrcomp.MockImage{Image: img, View: view}
	return r.dev.SetFallbackImage(r.Samplers.Mock, view)
}

func (r *Resources) createDistortion(d *ResourcesDescriptor) error {
	size := d.DistortionSize
	for v := uint32(0); v < d.ViewCount; v++ {
		tables, err := distortion.Compute(d.lens(v), int(size))
		if err != nil {
			return fmt.Errorf("view %d: %w", v, err)
		}
		for ch := range tables {
			t := &tables[ch]
			img, view, err := r.createImage(fmt.Sprintf("distortion_%d_%d", v, ch), size, size,
				gputypes.TextureFormatRG32Float,
				gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
			if err != nil {
				return err
			}
			if err := r.dev.WriteImage(img, t.Bytes(), t.BytesPerRow(), size, size); err != nil {
				return err
			}
			r.Lens.Views[v*xrcomp.DistortionImagesPerView+uint32(ch)] = view
		}
		r.Lens.UVToTanAngle[v] = xrmath.CalcUVToTangentLengthsRect(d.fov(v))
	}
	return nil
}

func (r *Resources) createUBOs(d *ResourcesDescriptor) error {
	dev := r.dev
	ubos := []struct {
		name string
		size uint64
		dst  *gpucore.MappedBuffer
	}{
		{"distortion_ubo", xrcomp.DistortionUBOSize, &r.Distortion.UBO},
		{"clear_ubo", xrcomp.DistortionUBOSize, &r.Clear.UBO},
	}
	for i := range r.Layer.UBOs {
		ubos = append(ubos, struct {
			name string
			size uint64
			dst  *gpucore.MappedBuffer
		}{fmt.Sprintf("layer_ubo_%d", i), d.LayerUBOSize, &r.Layer.UBOs[i]})
	}

	for _, u := range ubos {
		buf, err := dev.CreateMappedBuffer(r.name(u.name), u.size)
		if err != nil {
			return err
		}
		id := buf.Buffer
		r.onRelease(func() { dev.DestroyBuffer(id) })
		*u.dst = buf
	}
	return nil
}

// CreateTarget creates a storage image the passes can write, sized to
// cover the given viewports. It is released with the resources.
func (r *Resources) CreateTarget(label string, width, height uint32) (xrcomp.Target, error) {
	img, view, err := r.createImage(label, width, height, r.targetFormat,
		gputypes.TextureUsageStorageBinding|gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopySrc)
	if err != nil {
		return xrcomp.Target{}, fmt.Errorf("native: create target: %w", err)
	}
	return xrcomp.Target{Image: img, View: view}, nil
}
