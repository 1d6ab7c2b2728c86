// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import (
	"fmt"

	"github.com/gogpu/xrcomp/gpucore"
	"github.com/gogpu/xrcomp/xrmath"
)

// Target is the image a pass writes, with the storage view bound to the
// target binding.
type Target struct {
	Image gpucore.Image
	View  gpucore.ImageView
}

// ProjectionView is the per-view input of the projection passes.
type ProjectionView struct {
	// Viewport is the view's region of the target.
	Viewport Viewport

	// Sampler and Source sample the rendered view.
	Sampler gpucore.Sampler
	Source  gpucore.ImageView

	// NormRect is the normalized region of Source holding the view. It is
	// written as the post-transform.
	NormRect xrmath.NormalizedRect

	// SrcPose and SrcFov are what the view was rendered with, NewPose is
	// the predicted display pose. Only ProjectionTimewarp reads them.
	SrcPose xrmath.Pose
	SrcFov  xrmath.Fov
	NewPose xrmath.Pose
}

// Compute records the compute passes of one frame.
//
// The zero value is inactive; NewCompute only applies options. Init
// activates it against a Resources, Fini deactivates it. A Compute is
// driven by a single goroutine and does no locking.
type Compute struct {
	r *Resources

	layerSets [MaxLayerRuns]gpucore.DescriptorSet
	sharedSet gpucore.DescriptorSet

	opts computeOptions
	b    bindingBuilder
}

// NewCompute creates an inactive Compute.
func NewCompute(opts ...ComputeOption) *Compute {
	c := &Compute{opts: defaultOptions()}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

// Active reports whether the Compute is between Init and Fini.
func (c *Compute) Active() bool {
	return c.r != nil
}

// Resources returns the borrowed resources, nil while inactive.
func (c *Compute) Resources() *Resources {
	return c.r
}

// LayerDescriptorSet returns reusable layer set i for Layers.
func (c *Compute) LayerDescriptorSet(i int) gpucore.DescriptorSet {
	c.mustActive("LayerDescriptorSet")
	return c.layerSets[i]
}

// SharedDescriptorSet returns the multi-view set used by the projection and
// clear passes.
func (c *Compute) SharedDescriptorSet() gpucore.DescriptorSet {
	c.mustActive("SharedDescriptorSet")
	return c.sharedSet
}

func (c *Compute) mustActive(op string) {
	if c.r == nil {
		panic("xrcomp: " + op + " on inactive Compute (missing Init or after Fini)")
	}
}

// Init allocates MaxLayerRuns layer sets and one shared set from the
// resources' descriptor pool and activates the Compute.
//
// Init panics if the Compute is already active. On error it stays inactive;
// sets allocated before the failure are left in the pool until the owner
// resets or destroys it.
func (c *Compute) Init(r *Resources) error {
	if c.r != nil {
		panic("xrcomp: Init on active Compute")
	}
	if r == nil {
		panic("xrcomp: Init with nil Resources")
	}
	if c.opts.timeWarp == nil {
		c.opts = defaultOptions()
	}
	if err := r.Validate(); err != nil {
		return err
	}

	dev := r.Device
	for i := range c.layerSets {
		set, err := dev.AllocateDescriptorSet(r.DescriptorPool, r.Layer.DescriptorSetLayout)
		if err != nil {
			c.clearSets()
			return fmt.Errorf("%w: layer set %d: %w", ErrAllocate, i, err)
		}
		c.layerSets[i] = set
		c.nameSet(dev, set, "xrcomp layer descriptor set")
	}

	set, err := dev.AllocateDescriptorSet(r.DescriptorPool, r.Distortion.DescriptorSetLayout)
	if err != nil {
		c.clearSets()
		return fmt.Errorf("%w: shared set: %w", ErrAllocate, err)
	}
	c.sharedSet = set
	c.nameSet(dev, set, "xrcomp shared descriptor set")

	c.r = r

	slogger().Info("xrcomp: compute initialized",
		"views", r.ViewCount,
		"layerSets", MaxLayerRuns,
	)
	return nil
}

func (c *Compute) nameSet(dev gpucore.Device, set gpucore.DescriptorSet, name string) {
	if !c.opts.debugNames {
		return
	}
	if n, ok := dev.(gpucore.Namer); ok {
		n.SetDescriptorSetName(set, name)
	}
}

func (c *Compute) clearSets() {
	c.sharedSet = gpucore.InvalidID
	for i := range c.layerSets {
		c.layerSets[i] = gpucore.InvalidID
	}
}

// Fini invalidates every descriptor set, resets the whole descriptor pool
// and deactivates the Compute. It panics if the Compute is inactive.
func (c *Compute) Fini() {
	c.mustActive("Fini")

	// Reclaimed by the pool reset.
	c.clearSets()

	if err := c.r.Device.ResetDescriptorPool(c.r.DescriptorPool); err != nil {
		slogger().Warn("xrcomp: descriptor pool reset failed", "error", err)
	}

	c.r = nil
	slogger().Info("xrcomp: compute finalized")
}

// Begin resets the command pool, opens a one-time recording, resets the
// two timestamp queries and writes the frame start timestamp.
func (c *Compute) Begin() error {
	c.mustActive("Begin")

	dev := c.r.Device
	cmd := c.r.Cmd

	if err := dev.ResetCommandPool(c.r.CommandPool); err != nil {
		return fmt.Errorf("%w: reset command pool: %w", ErrBegin, err)
	}
	if err := dev.BeginCommandBuffer(cmd, gpucore.CommandBufferUsageOneTimeSubmit); err != nil {
		return fmt.Errorf("%w: %w", ErrBegin, err)
	}

	dev.CmdResetQueryPool(cmd, c.r.QueryPool, 0, queryCount)
	dev.CmdWriteTimestamp(cmd, gpucore.PipelineStageTopOfPipe, c.r.QueryPool, 0)
	return nil
}

// End writes the frame end timestamp and closes the recording. The command
// buffer is then ready for submission by the caller.
func (c *Compute) End() error {
	c.mustActive("End")

	dev := c.r.Device
	cmd := c.r.Cmd

	dev.CmdWriteTimestamp(cmd, gpucore.PipelineStageBottomOfPipe, c.r.QueryPool, 1)

	if err := dev.EndCommandBuffer(cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrEnd, err)
	}
	return nil
}

// Layers records one layer composition dispatch into target.
//
// set is managed by the caller, usually one of LayerDescriptorSet, and ubo
// must already hold the layer data. timewarp selects the layer pipeline.
// No barriers are recorded; the caller owns the target's layout across
// the layer runs.
func (c *Compute) Layers(set gpucore.DescriptorSet, ubo gpucore.Buffer, sources []LayerSource, target gpucore.ImageView, viewport Viewport, timewarp bool) {
	c.mustActive("Layers")
	if len(sources) > MaxImages {
		panic(fmt.Sprintf("xrcomp: Layers: %d sources exceed MaxImages (%d)", len(sources), MaxImages))
	}

	r := c.r
	r.Device.UpdateDescriptorSets(c.b.layer(r.Bindings, set, sources, target, ubo))

	pipeline := r.Layer.NonTimewarpPipeline
	if timewarp {
		pipeline = r.Layer.TimewarpPipeline
	}

	x, y := CalcDispatchDims(viewport)
	c.record(&passRecipe{
		mode:     PassLayerCompose,
		pipeline: pipeline,
		layout:   r.Layer.PipelineLayout,
		set:      set,
		target:   gpucore.InvalidID,
		gridX:    x,
		gridY:    y,
		depth:    1,
	})
}

// ProjectionTimewarp records the distortion pass with timewarp for every
// view. views must hold exactly Resources.ViewCount entries.
func (c *Compute) ProjectionTimewarp(views []ProjectionView, target Target) {
	c.projection(PassProjectionTimewarp, views, target)
}

// Projection records the distortion pass without timewarp. The transform
// of every view is left as it is in the uniform buffer and the timewarp
// routine is not called.
func (c *Compute) Projection(views []ProjectionView, target Target) {
	c.projection(PassProjection, views, target)
}

func (c *Compute) projection(mode PassMode, views []ProjectionView, target Target) {
	c.mustActive(mode.String())
	r := c.r
	n := c.mustViewCount(mode, len(views))

	ubo := NewDistortionUBO(r.Distortion.UBO.Mapped)
	for i := range views {
		v := &views[i]
		ubo.SetViewport(i, v.Viewport)
		ubo.SetPreTransform(i, r.Lens.UVToTanAngle[i])
		if mode == PassProjectionTimewarp {
			ubo.SetTransform(i, c.opts.timeWarp(v.SrcPose, v.SrcFov, v.NewPose))
		}
		ubo.SetPostTransform(i, v.NormRect)
	}
	c.flushUBO(r.Distortion.UBO)

	for i := range views {
		c.b.setSource(i, views[i].Sampler, views[i].Source)
	}
	for i := 0; i < DistortionImagesPerView*n; i++ {
		c.b.setDistortion(i, r.Samplers.ClampToEdge, r.Lens.Views[i])
	}
	r.Device.UpdateDescriptorSets(c.b.shared(r.Bindings, c.sharedSet, uint32(n), target.View, r.Distortion.UBO.Buffer))

	pipeline := r.Distortion.Pipeline
	if mode == PassProjectionTimewarp {
		pipeline = r.Distortion.TimewarpPipeline
	}

	c.recordViews(mode, pipeline, target.Image, views)
}

// Clear records the debug pass: every source and distortion slot samples
// the mock image through the mock sampler, and every view's transform is
// the identity.
func (c *Compute) Clear(viewports []Viewport, target Target) {
	c.mustActive("Clear")
	r := c.r
	n := c.mustViewCount(PassClear, len(viewports))

	ubo := NewDistortionUBO(r.Clear.UBO.Mapped)
	for i, vp := range viewports {
		ubo.SetViewport(i, vp)
		ubo.SetTransform(i, xrmath.Identity())
	}
	c.flushUBO(r.Clear.UBO)

	mock := r.Samplers.Mock
	for i := 0; i < n; i++ {
		c.b.setSource(i, mock, r.Mock.View)
		for ch := 0; ch < DistortionImagesPerView; ch++ {
			c.b.setDistortion(i*DistortionImagesPerView+ch, mock, r.Mock.View)
		}
	}
	r.Device.UpdateDescriptorSets(c.b.shared(r.Bindings, c.sharedSet, uint32(n), target.View, r.Clear.UBO.Buffer))

	x, y := CalcDispatchDimsViews(viewports, uint32(n))
	c.record(&passRecipe{
		mode:     PassClear,
		pipeline: r.Clear.Pipeline,
		layout:   r.Distortion.PipelineLayout,
		set:      c.sharedSet,
		target:   target.Image,
		gridX:    x,
		gridY:    y,
		depth:    viewDepth,
	})
}

// RebindTarget rewrites only the target and uniform buffer bindings of set,
// for callers that keep the sources of a set bound across frames.
func (c *Compute) RebindTarget(set gpucore.DescriptorSet, target gpucore.ImageView, ubo gpucore.Buffer) {
	c.mustActive("RebindTarget")
	c.r.Device.UpdateDescriptorSets(c.b.targetOnly(c.r.Bindings, set, target, ubo))
}

func (c *Compute) recordViews(mode PassMode, pipeline gpucore.Pipeline, target gpucore.Image, views []ProjectionView) {
	var vps [MaxViews]Viewport
	for i := range views {
		vps[i] = views[i].Viewport
	}
	x, y := CalcDispatchDimsViews(vps[:], uint32(len(views)))

	c.record(&passRecipe{
		mode:     mode,
		pipeline: pipeline,
		layout:   c.r.Distortion.PipelineLayout,
		set:      c.sharedSet,
		target:   target,
		gridX:    x,
		gridY:    y,
		depth:    viewDepth,
	})
}

func (c *Compute) mustViewCount(mode PassMode, n int) int {
	if n != int(c.r.ViewCount) {
		panic(fmt.Sprintf("xrcomp: %s: %d views, resources have %d", mode, n, c.r.ViewCount))
	}
	return n
}

// flushUBO makes the host writes to buf visible before the dispatch that
// reads it is recorded.
func (c *Compute) flushUBO(buf gpucore.MappedBuffer) {
	if f, ok := c.r.Device.(gpucore.MappedBufferFlusher); ok {
		f.FlushMappedBuffer(buf)
	}
}
