// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import (
	"errors"
	"fmt"

	"github.com/gogpu/xrcomp/gpucore"
	"github.com/gogpu/xrcomp/xrmath"
)

// eventKind names a recorded device call.
type eventKind int

const (
	evResetCommandPool eventKind = iota
	evBegin
	evEnd
	evResetQueryPool
	evTimestamp
	evBindPipeline
	evBindSet
	evDispatch
	evBarrier
	evUpdate
	evFlush
)

func (k eventKind) String() string {
	return [...]string{
		"ResetCommandPool", "Begin", "End", "ResetQueryPool", "Timestamp",
		"BindPipeline", "BindSet", "Dispatch", "Barrier", "Update", "Flush",
	}[k]
}

// event is one recorded call with the arguments that matter for the tests.
type event struct {
	kind     eventKind
	cmd      gpucore.CommandBuffer
	usage    gpucore.CommandBufferUsage
	stage    gpucore.PipelineStage
	query    uint32
	count    uint32
	pipeline gpucore.Pipeline
	layout   gpucore.PipelineLayout
	set      gpucore.DescriptorSet
	x, y, z  uint32
	barrier  gpucore.ImageBarrier
	writes   []gpucore.DescriptorWrite
	buffer   gpucore.Buffer
}

var errMock = errors.New("mock failure")

// mockDevice records every call. Allocation tracks live sets per pool so
// tests can observe pool resets.
type mockDevice struct {
	events []event

	nextSet   uint64
	live      map[gpucore.DescriptorPool]int
	allocs    int
	failAlloc int // 1-based allocation that fails, 0 never

	resetCmdErr  error
	beginErr     error
	endErr       error
	resetPoolErr error

	names map[gpucore.DescriptorSet]string
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		nextSet: 1000,
		live:    make(map[gpucore.DescriptorPool]int),
		names:   make(map[gpucore.DescriptorSet]string),
	}
}

func (d *mockDevice) AllocateDescriptorSet(pool gpucore.DescriptorPool, layout gpucore.DescriptorSetLayout) (gpucore.DescriptorSet, error) {
	d.allocs++
	if d.failAlloc != 0 && d.allocs == d.failAlloc {
		return gpucore.InvalidID, fmt.Errorf("allocate %d: %w", d.allocs, errMock)
	}
	if layout == gpucore.InvalidID {
		return gpucore.InvalidID, errors.New("invalid layout")
	}
	d.nextSet++
	d.live[pool]++
	return gpucore.DescriptorSet(d.nextSet), nil
}

func (d *mockDevice) ResetDescriptorPool(pool gpucore.DescriptorPool) error {
	if d.resetPoolErr != nil {
		return d.resetPoolErr
	}
	d.live[pool] = 0
	return nil
}

func (d *mockDevice) UpdateDescriptorSets(writes []gpucore.DescriptorWrite) {
	// Deep copy: the writes alias scratch storage reused by the next pass.
	cp := make([]gpucore.DescriptorWrite, len(writes))
	for i, w := range writes {
		cp[i] = w
		cp[i].Images = append([]gpucore.DescriptorImageInfo(nil), w.Images...)
		cp[i].Buffers = append([]gpucore.DescriptorBufferInfo(nil), w.Buffers...)
	}
	d.events = append(d.events, event{kind: evUpdate, writes: cp})
}

func (d *mockDevice) ResetCommandPool(gpucore.CommandPool) error {
	d.events = append(d.events, event{kind: evResetCommandPool})
	return d.resetCmdErr
}

func (d *mockDevice) BeginCommandBuffer(cmd gpucore.CommandBuffer, usage gpucore.CommandBufferUsage) error {
	if d.beginErr != nil {
		return d.beginErr
	}
	d.events = append(d.events, event{kind: evBegin, cmd: cmd, usage: usage})
	return nil
}

func (d *mockDevice) EndCommandBuffer(cmd gpucore.CommandBuffer) error {
	if d.endErr != nil {
		return d.endErr
	}
	d.events = append(d.events, event{kind: evEnd, cmd: cmd})
	return nil
}

func (d *mockDevice) CmdResetQueryPool(cmd gpucore.CommandBuffer, _ gpucore.QueryPool, first, count uint32) {
	d.events = append(d.events, event{kind: evResetQueryPool, cmd: cmd, query: first, count: count})
}

func (d *mockDevice) CmdWriteTimestamp(cmd gpucore.CommandBuffer, stage gpucore.PipelineStage, _ gpucore.QueryPool, query uint32) {
	d.events = append(d.events, event{kind: evTimestamp, cmd: cmd, stage: stage, query: query})
}

func (d *mockDevice) CmdBindPipeline(cmd gpucore.CommandBuffer, p gpucore.Pipeline) {
	d.events = append(d.events, event{kind: evBindPipeline, cmd: cmd, pipeline: p})
}

func (d *mockDevice) CmdBindDescriptorSet(cmd gpucore.CommandBuffer, layout gpucore.PipelineLayout, set gpucore.DescriptorSet) {
	d.events = append(d.events, event{kind: evBindSet, cmd: cmd, layout: layout, set: set})
}

func (d *mockDevice) CmdDispatch(cmd gpucore.CommandBuffer, x, y, z uint32) {
	d.events = append(d.events, event{kind: evDispatch, cmd: cmd, x: x, y: y, z: z})
}

func (d *mockDevice) CmdImageBarrier(cmd gpucore.CommandBuffer, b gpucore.ImageBarrier) {
	d.events = append(d.events, event{kind: evBarrier, cmd: cmd, barrier: b})
}

func (d *mockDevice) SetDescriptorSetName(set gpucore.DescriptorSet, name string) {
	d.names[set] = name
}

func (d *mockDevice) FlushMappedBuffer(buf gpucore.MappedBuffer) {
	d.events = append(d.events, event{kind: evFlush, buffer: buf.Buffer})
}

// kinds returns the recorded event kinds, in order.
func (d *mockDevice) kinds() []eventKind {
	out := make([]eventKind, len(d.events))
	for i, e := range d.events {
		out[i] = e.kind
	}
	return out
}

// only returns the recorded events of kind k.
func (d *mockDevice) only(k eventKind) []event {
	var out []event
	for _, e := range d.events {
		if e.kind == k {
			out = append(out, e)
		}
	}
	return out
}

func (d *mockDevice) reset() { d.events = d.events[:0] }

// discardDevice implements gpucore.Device without recording anything.
type discardDevice struct{ next uint64 }

func (d *discardDevice) AllocateDescriptorSet(gpucore.DescriptorPool, gpucore.DescriptorSetLayout) (gpucore.DescriptorSet, error) {
	d.next++
	return gpucore.DescriptorSet(d.next), nil
}

func (*discardDevice) ResetDescriptorPool(gpucore.DescriptorPool) error { return nil }

func (*discardDevice) UpdateDescriptorSets([]gpucore.DescriptorWrite) {}

func (*discardDevice) ResetCommandPool(gpucore.CommandPool) error { return nil }

func (*discardDevice) BeginCommandBuffer(gpucore.CommandBuffer, gpucore.CommandBufferUsage) error {
	return nil
}

func (*discardDevice) EndCommandBuffer(gpucore.CommandBuffer) error { return nil }

func (*discardDevice) CmdResetQueryPool(gpucore.CommandBuffer, gpucore.QueryPool, uint32, uint32) {}

func (*discardDevice) CmdWriteTimestamp(gpucore.CommandBuffer, gpucore.PipelineStage, gpucore.QueryPool, uint32) {
}

func (*discardDevice) CmdBindPipeline(gpucore.CommandBuffer, gpucore.Pipeline) {}

func (*discardDevice) CmdBindDescriptorSet(gpucore.CommandBuffer, gpucore.PipelineLayout, gpucore.DescriptorSet) {
}

func (*discardDevice) CmdDispatch(gpucore.CommandBuffer, uint32, uint32, uint32) {}

func (*discardDevice) CmdImageBarrier(gpucore.CommandBuffer, gpucore.ImageBarrier) {}

// Fixture handles.
const (
	testCommandPool   gpucore.CommandPool         = 1
	testCmd           gpucore.CommandBuffer       = 2
	testQueryPool     gpucore.QueryPool           = 3
	testDescPool      gpucore.DescriptorPool      = 4
	testLayerSetLay   gpucore.DescriptorSetLayout = 10
	testLayerPipeLay  gpucore.PipelineLayout      = 11
	testLayerTW       gpucore.Pipeline            = 12
	testLayerNoTW     gpucore.Pipeline            = 13
	testDistSetLay    gpucore.DescriptorSetLayout = 20
	testDistPipeLay   gpucore.PipelineLayout      = 21
	testDistPipe      gpucore.Pipeline            = 22
	testDistTWPipe    gpucore.Pipeline            = 23
	testDistUBO       gpucore.Buffer              = 24
	testClearPipe     gpucore.Pipeline            = 30
	testClearUBO      gpucore.Buffer              = 31
	testClampSampler  gpucore.Sampler             = 40
	testMockSampler   gpucore.Sampler             = 41
	testMockImage     gpucore.Image               = 50
	testMockView      gpucore.ImageView           = 51
	testLensViewBase  gpucore.ImageView           = 60
	testTargetImage   gpucore.Image               = 70
	testTargetView    gpucore.ImageView           = 71
	testSourceBase    gpucore.ImageView           = 80
	testSrcSampler    gpucore.Sampler             = 90
	testLayerUBOFirst gpucore.Buffer              = 100
)

func newTestResources(dev gpucore.Device, viewCount uint32) *Resources {
	r := &Resources{
		Device:         dev,
		ViewCount:      viewCount,
		CommandPool:    testCommandPool,
		Cmd:            testCmd,
		QueryPool:      testQueryPool,
		DescriptorPool: testDescPool,
		Bindings:       DefaultBindings(),
		Layer: LayerResources{
			DescriptorSetLayout: testLayerSetLay,
			PipelineLayout:      testLayerPipeLay,
			TimewarpPipeline:    testLayerTW,
			NonTimewarpPipeline: testLayerNoTW,
		},
		Distortion: DistortionResources{
			DescriptorSetLayout: testDistSetLay,
			PipelineLayout:      testDistPipeLay,
			Pipeline:            testDistPipe,
			TimewarpPipeline:    testDistTWPipe,
			UBO:                 gpucore.MappedBuffer{Buffer: testDistUBO, Mapped: make([]byte, DistortionUBOSize)},
		},
		Clear: ClearResources{
			Pipeline: testClearPipe,
			UBO:      gpucore.MappedBuffer{Buffer: testClearUBO, Mapped: make([]byte, DistortionUBOSize)},
		},
		Samplers: Samplers{ClampToEdge: testClampSampler, Mock: testMockSampler},
		Mock:     MockImage{Image: testMockImage, View: testMockView},
	}
	for i := range r.Layer.UBOs {
		r.Layer.UBOs[i] = gpucore.MappedBuffer{Buffer: testLayerUBOFirst + gpucore.Buffer(i), Mapped: make([]byte, 256)}
	}
	for i := range r.Lens.Views {
		r.Lens.Views[i] = testLensViewBase + gpucore.ImageView(i)
	}
	for i := range r.Lens.UVToTanAngle {
		f := float32(i + 1)
		r.Lens.UVToTanAngle[i] = xrmath.NormalizedRect{X: -f, Y: -f, W: 2 * f, H: 2 * f}
	}
	return r
}

// testViews returns n projection views with distinct inputs.
func testViews(n int) []ProjectionView {
	views := make([]ProjectionView, n)
	for i := range views {
		f := float32(i)
		views[i] = ProjectionView{
			Viewport: Viewport{X: uint32(i) * 1920, W: 1920 - uint32(i)*320, H: 1080 + uint32(i)*120},
			Sampler:  testSrcSampler,
			Source:   testSourceBase + gpucore.ImageView(i),
			NormRect: xrmath.NormalizedRect{X: 0.5 * f, Y: 0, W: 0.5, H: 1},
			SrcPose:  xrmath.Pose{Orientation: xrmath.Quat{Y: 0.1 * f, W: 1}, Position: xrmath.Vec3{X: f}},
			SrcFov:   xrmath.Fov{AngleLeft: -0.8, AngleRight: 0.7 + 0.01*f, AngleUp: 0.8, AngleDown: -0.9},
			NewPose:  xrmath.Pose{Orientation: xrmath.Quat{X: 0.01, Y: 0.1*f + 0.02, W: 1}},
		}
	}
	return views
}

func testTarget() Target {
	return Target{Image: testTargetImage, View: testTargetView}
}
