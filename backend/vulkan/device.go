// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"fmt"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/xrcomp"
	"github.com/gogpu/xrcomp/gpucore"
)

// registry maps gpucore handles of one kind to Vulkan handles.
type registry[H ~uint64, V any] struct {
	m map[H]V
}

func newRegistry[H ~uint64, V any]() registry[H, V] {
	return registry[H, V]{m: make(map[H]V)}
}

func (r registry[H, V]) get(id H) (V, bool) {
	v, ok := r.m[id]
	return v, ok
}

// mappedMemory is the memory behind a registered uniform buffer.
type mappedMemory struct {
	memory   vk.DeviceMemory
	coherent bool
}

// Device implements gpucore.Device with goki/vulkan calls. The caller
// creates every Vulkan object and registers it to obtain a gpucore handle;
// only descriptor sets are allocated through the device.
//
// Thread Safety: registration is protected by a mutex. Recording into one
// command buffer must happen from a single goroutine.
type Device struct {
	mu  sync.Mutex
	dev vk.Device

	// ID generation
	nextID atomic.Uint64

	images          registry[gpucore.Image, vk.Image]
	views           registry[gpucore.ImageView, vk.ImageView]
	samplers        registry[gpucore.Sampler, vk.Sampler]
	buffers         registry[gpucore.Buffer, vk.Buffer]
	memories        registry[gpucore.Buffer, mappedMemory]
	setLayouts      registry[gpucore.DescriptorSetLayout, vk.DescriptorSetLayout]
	pipelineLayouts registry[gpucore.PipelineLayout, vk.PipelineLayout]
	pipelines       registry[gpucore.Pipeline, vk.Pipeline]
	descPools       registry[gpucore.DescriptorPool, vk.DescriptorPool]
	sets            registry[gpucore.DescriptorSet, vk.DescriptorSet]
	cmdPools        registry[gpucore.CommandPool, vk.CommandPool]
	cmds            registry[gpucore.CommandBuffer, vk.CommandBuffer]
	queryPools      registry[gpucore.QueryPool, vk.QueryPool]

	// poolSets lists the sets allocated from each pool.
	poolSets map[gpucore.DescriptorPool][]gpucore.DescriptorSet

	// deferred is the first error of a command without an error return.
	// EndCommandBuffer reports and clears it.
	deferred error

	timestamps bool
}

var (
	_ gpucore.Device              = (*Device)(nil)
	_ gpucore.MappedBufferFlusher = (*Device)(nil)
	_ gpucore.TimestampSupporter  = (*Device)(nil)
)

// NewDevice wraps a logical device. timestamps reports whether the queue
// family records timestamps (timestampValidBits != 0).
func NewDevice(dev vk.Device, timestamps bool) *Device {
	d := &Device{
		dev:             dev,
		images:          newRegistry[gpucore.Image, vk.Image](),
		views:           newRegistry[gpucore.ImageView, vk.ImageView](),
		samplers:        newRegistry[gpucore.Sampler, vk.Sampler](),
		buffers:         newRegistry[gpucore.Buffer, vk.Buffer](),
		memories:        newRegistry[gpucore.Buffer, mappedMemory](),
		setLayouts:      newRegistry[gpucore.DescriptorSetLayout, vk.DescriptorSetLayout](),
		pipelineLayouts: newRegistry[gpucore.PipelineLayout, vk.PipelineLayout](),
		pipelines:       newRegistry[gpucore.Pipeline, vk.Pipeline](),
		descPools:       newRegistry[gpucore.DescriptorPool, vk.DescriptorPool](),
		sets:            newRegistry[gpucore.DescriptorSet, vk.DescriptorSet](),
		cmdPools:        newRegistry[gpucore.CommandPool, vk.CommandPool](),
		cmds:            newRegistry[gpucore.CommandBuffer, vk.CommandBuffer](),
		queryPools:      newRegistry[gpucore.QueryPool, vk.QueryPool](),
		poolSets:        make(map[gpucore.DescriptorPool][]gpucore.DescriptorSet),
		timestamps:      timestamps,
	}

	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)

	if !timestamps {
		xrcomp.Logger().Warn("vulkan: queue has no timestamp support, GPU timing disabled")
	}
	return d
}

func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// register stores v under a fresh handle.
func register[H ~uint64, V any](d *Device, r registry[H, V], v V) H {
	id := H(d.newID())
	d.mu.Lock()
	r.m[id] = v
	d.mu.Unlock()
	return id
}

// === Registration ===

// RegisterImage registers an image.
func (d *Device) RegisterImage(img vk.Image) gpucore.Image {
	return register(d, d.images, img)
}

// RegisterImageView registers an image view.
func (d *Device) RegisterImageView(view vk.ImageView) gpucore.ImageView {
	return register(d, d.views, view)
}

// RegisterSampler registers a sampler.
func (d *Device) RegisterSampler(s vk.Sampler) gpucore.Sampler {
	return register(d, d.samplers, s)
}

// RegisterMappedBuffer registers a uniform buffer whose memory is mapped
// at mapped (see MappedBytes). Non-coherent memory is flushed by
// FlushMappedBuffer.
func (d *Device) RegisterMappedBuffer(buf vk.Buffer, memory vk.DeviceMemory, mapped []byte, coherent bool) gpucore.MappedBuffer {
	id := register(d, d.buffers, buf)
	d.mu.Lock()
	d.memories.m[id] = mappedMemory{memory: memory, coherent: coherent}
	d.mu.Unlock()
	return gpucore.MappedBuffer{Buffer: id, Mapped: mapped}
}

// RegisterDescriptorSetLayout registers a descriptor set layout.
func (d *Device) RegisterDescriptorSetLayout(l vk.DescriptorSetLayout) gpucore.DescriptorSetLayout {
	return register(d, d.setLayouts, l)
}

// RegisterPipelineLayout registers a pipeline layout.
func (d *Device) RegisterPipelineLayout(l vk.PipelineLayout) gpucore.PipelineLayout {
	return register(d, d.pipelineLayouts, l)
}

// RegisterPipeline registers a compute pipeline.
func (d *Device) RegisterPipeline(p vk.Pipeline) gpucore.Pipeline {
	return register(d, d.pipelines, p)
}

// RegisterDescriptorPool registers a descriptor pool.
func (d *Device) RegisterDescriptorPool(p vk.DescriptorPool) gpucore.DescriptorPool {
	return register(d, d.descPools, p)
}

// RegisterCommandPool registers a command pool.
func (d *Device) RegisterCommandPool(p vk.CommandPool) gpucore.CommandPool {
	return register(d, d.cmdPools, p)
}

// RegisterCommandBuffer registers a primary command buffer.
func (d *Device) RegisterCommandBuffer(cmd vk.CommandBuffer) gpucore.CommandBuffer {
	return register(d, d.cmds, cmd)
}

// RegisterQueryPool registers a timestamp query pool.
func (d *Device) RegisterQueryPool(p vk.QueryPool) gpucore.QueryPool {
	return register(d, d.queryPools, p)
}

// CommandBuffer returns the Vulkan command buffer of cmd for submission.
func (d *Device) CommandBuffer(cmd gpucore.CommandBuffer) (vk.CommandBuffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cmds.get(cmd)
}

func (d *Device) deferErr(err error) {
	if d.deferred == nil {
		d.deferred = err
	}
	xrcomp.Logger().Warn("vulkan: command failed", "err", err)
}

func unknown(kind string, id uint64) error {
	return fmt.Errorf("%w: %s %d", ErrUnknownHandle, kind, id)
}

// === gpucore.Device: Descriptor Sets ===

// AllocateDescriptorSet allocates one set with vkAllocateDescriptorSets.
func (d *Device) AllocateDescriptorSet(pool gpucore.DescriptorPool, layout gpucore.DescriptorSetLayout) (gpucore.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.descPools.get(pool)
	if !ok {
		return gpucore.InvalidID, unknown("descriptor pool", uint64(pool))
	}
	l, ok := d.setLayouts.get(layout)
	if !ok {
		return gpucore.InvalidID, unknown("descriptor set layout", uint64(layout))
	}

	sets := make([]vk.DescriptorSet, 1)
	ret := vk.AllocateDescriptorSets(d.dev, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l},
	}, &sets[0])
	if err := vk.Error(ret); err != nil {
		return gpucore.InvalidID, fmt.Errorf("failed to allocate descriptor set: %w", err)
	}

	id := gpucore.DescriptorSet(d.newID())
	d.sets.m[id] = sets[0]
	d.poolSets[pool] = append(d.poolSets[pool], id)
	return id, nil
}

// ResetDescriptorPool resets the pool and forgets its sets.
func (d *Device) ResetDescriptorPool(pool gpucore.DescriptorPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.descPools.get(pool)
	if !ok {
		return unknown("descriptor pool", uint64(pool))
	}
	if err := vk.Error(vk.ResetDescriptorPool(d.dev, p, 0)); err != nil {
		return fmt.Errorf("failed to reset descriptor pool: %w", err)
	}
	for _, id := range d.poolSets[pool] {
		delete(d.sets.m, id)
	}
	delete(d.poolSets, pool)
	return nil
}

// UpdateDescriptorSets converts the writes and calls vkUpdateDescriptorSets
// once. A write naming an unknown handle is dropped and reported by the
// next EndCommandBuffer.
func (d *Device) UpdateDescriptorSets(writes []gpucore.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]vk.WriteDescriptorSet, 0, len(writes))
	for i := range writes {
		w, err := d.convertWrite(&writes[i])
		if err != nil {
			d.deferErr(fmt.Errorf("descriptor write %d: %w", i, err))
			continue
		}
		out = append(out, w)
	}
	if len(out) > 0 {
		vk.UpdateDescriptorSets(d.dev, uint32(len(out)), out, 0, nil)
	}
}

func (d *Device) convertWrite(w *gpucore.DescriptorWrite) (vk.WriteDescriptorSet, error) {
	set, ok := d.sets.get(w.Set)
	if !ok {
		return vk.WriteDescriptorSet{}, unknown("descriptor set", uint64(w.Set))
	}
	typ, ok := descriptorType(w.Type)
	if !ok {
		return vk.WriteDescriptorSet{}, fmt.Errorf("%w: %v", ErrUnsupported, w.Type)
	}

	out := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      w.Binding,
		DstArrayElement: w.ArrayElement,
		DescriptorCount: w.Count(),
		DescriptorType:  typ,
	}

	if w.Type == gpucore.DescriptorTypeUniformBuffer {
		infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
		for i, b := range w.Buffers {
			buf, ok := d.buffers.get(b.Buffer)
			if !ok {
				return vk.WriteDescriptorSet{}, unknown("buffer", uint64(b.Buffer))
			}
			infos[i] = vk.DescriptorBufferInfo{
				Buffer: buf,
				Offset: vk.DeviceSize(b.Offset),
				Range:  vk.DeviceSize(b.Range),
			}
		}
		out.PBufferInfo = infos
		return out, nil
	}

	infos := make([]vk.DescriptorImageInfo, len(w.Images))
	for i, img := range w.Images {
		view, ok := d.views.get(img.View)
		if !ok {
			return vk.WriteDescriptorSet{}, unknown("image view", uint64(img.View))
		}
		info := vk.DescriptorImageInfo{
			ImageView:   view,
			ImageLayout: imageLayout(img.Layout),
		}
		if w.Type == gpucore.DescriptorTypeCombinedImageSampler {
			s, ok := d.samplers.get(img.Sampler)
			if !ok {
				return vk.WriteDescriptorSet{}, unknown("sampler", uint64(img.Sampler))
			}
			info.Sampler = s
		}
		infos[i] = info
	}
	out.PImageInfo = infos
	return out, nil
}

// FlushMappedBuffer flushes non-coherent mapped memory.
func (d *Device) FlushMappedBuffer(buf gpucore.MappedBuffer) {
	d.mu.Lock()
	mem, ok := d.memories.get(buf.Buffer)
	d.mu.Unlock()
	if !ok || mem.coherent {
		return
	}
	ret := vk.FlushMappedMemoryRanges(d.dev, 1, []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: mem.memory,
		Offset: 0,
		Size:   vk.DeviceSize(vk.WholeSize),
	}})
	if err := vk.Error(ret); err != nil {
		xrcomp.Logger().Warn("vulkan: flush mapped memory failed", "err", err)
	}
}

// SupportsTimestamps reports the value given to NewDevice.
func (d *Device) SupportsTimestamps() bool {
	return d.timestamps
}

// === gpucore.Device: Command Recording ===

// ResetCommandPool calls vkResetCommandPool.
func (d *Device) ResetCommandPool(pool gpucore.CommandPool) error {
	d.mu.Lock()
	p, ok := d.cmdPools.get(pool)
	d.mu.Unlock()
	if !ok {
		return unknown("command pool", uint64(pool))
	}
	if err := vk.Error(vk.ResetCommandPool(d.dev, p, 0)); err != nil {
		return fmt.Errorf("failed to reset command pool: %w", err)
	}
	return nil
}

// BeginCommandBuffer calls vkBeginCommandBuffer.
func (d *Device) BeginCommandBuffer(cmd gpucore.CommandBuffer, usage gpucore.CommandBufferUsage) error {
	d.mu.Lock()
	c, ok := d.cmds.get(cmd)
	d.deferred = nil
	d.mu.Unlock()
	if !ok {
		return unknown("command buffer", uint64(cmd))
	}

	ret := vk.BeginCommandBuffer(c, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: commandBufferUsage(usage),
	})
	if err := vk.Error(ret); err != nil {
		return fmt.Errorf("failed to begin command buffer: %w", err)
	}
	return nil
}

// EndCommandBuffer calls vkEndCommandBuffer and reports the first error
// of a command recorded since BeginCommandBuffer.
func (d *Device) EndCommandBuffer(cmd gpucore.CommandBuffer) error {
	d.mu.Lock()
	c, ok := d.cmds.get(cmd)
	deferred := d.deferred
	d.deferred = nil
	d.mu.Unlock()
	if !ok {
		return unknown("command buffer", uint64(cmd))
	}

	if err := vk.Error(vk.EndCommandBuffer(c)); err != nil {
		return fmt.Errorf("failed to end command buffer: %w", err)
	}
	return deferred
}

// cmd returns the Vulkan command buffer, deferring an error if unknown.
func (d *Device) cmd(cmd gpucore.CommandBuffer) (vk.CommandBuffer, bool) {
	c, ok := d.cmds.get(cmd)
	if !ok {
		d.deferErr(unknown("command buffer", uint64(cmd)))
	}
	return c, ok
}

// CmdResetQueryPool records vkCmdResetQueryPool.
func (d *Device) CmdResetQueryPool(cmd gpucore.CommandBuffer, pool gpucore.QueryPool, first, count uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.cmd(cmd)
	if !ok {
		return
	}
	qp, ok := d.queryPools.get(pool)
	if !ok {
		d.deferErr(unknown("query pool", uint64(pool)))
		return
	}
	vk.CmdResetQueryPool(c, qp, first, count)
}

// CmdWriteTimestamp records vkCmdWriteTimestamp.
func (d *Device) CmdWriteTimestamp(cmd gpucore.CommandBuffer, stage gpucore.PipelineStage, pool gpucore.QueryPool, query uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.cmd(cmd)
	if !ok {
		return
	}
	qp, ok := d.queryPools.get(pool)
	if !ok {
		d.deferErr(unknown("query pool", uint64(pool)))
		return
	}
	vk.CmdWriteTimestamp(c, pipelineStageBits(stage), qp, query)
}

// CmdBindPipeline binds a compute pipeline.
func (d *Device) CmdBindPipeline(cmd gpucore.CommandBuffer, pipeline gpucore.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.cmd(cmd)
	if !ok {
		return
	}
	p, ok := d.pipelines.get(pipeline)
	if !ok {
		d.deferErr(unknown("pipeline", uint64(pipeline)))
		return
	}
	vk.CmdBindPipeline(c, vk.PipelineBindPointCompute, p)
}

// CmdBindDescriptorSet binds set as set 0 for compute.
func (d *Device) CmdBindDescriptorSet(cmd gpucore.CommandBuffer, layout gpucore.PipelineLayout, set gpucore.DescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.cmd(cmd)
	if !ok {
		return
	}
	l, ok := d.pipelineLayouts.get(layout)
	if !ok {
		d.deferErr(unknown("pipeline layout", uint64(layout)))
		return
	}
	s, ok := d.sets.get(set)
	if !ok {
		d.deferErr(unknown("descriptor set", uint64(set)))
		return
	}
	vk.CmdBindDescriptorSets(c, vk.PipelineBindPointCompute, l, 0, 1, []vk.DescriptorSet{s}, 0, nil)
}

// CmdDispatch records vkCmdDispatch.
func (d *Device) CmdDispatch(cmd gpucore.CommandBuffer, x, y, z uint32) {
	d.mu.Lock()
	c, ok := d.cmd(cmd)
	d.mu.Unlock()
	if ok {
		vk.CmdDispatch(c, x, y, z)
	}
}

// CmdImageBarrier records a single image memory barrier.
func (d *Device) CmdImageBarrier(cmd gpucore.CommandBuffer, b gpucore.ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.cmd(cmd)
	if !ok {
		return
	}
	img, ok := d.images.get(b.Image)
	if !ok {
		d.deferErr(unknown("image", uint64(b.Image)))
		return
	}
	vk.CmdPipelineBarrier(c,
		pipelineStages(b.SrcStage), pipelineStages(b.DstStage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{imageBarrier(b, img)},
	)
}
