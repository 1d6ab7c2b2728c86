// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/xrcomp"
	"github.com/gogpu/xrcomp/gpucore"
)

// submitTimeout bounds the wait in Submit.
const submitTimeout = 5 * time.Second

// Device implements gpucore.Device using gogpu/wgpu/hal directly.
// It maps gpucore handles to HAL objects and translates the Vulkan-shaped
// recording model onto HAL command encoders and compute passes.
//
// Thread Safety: registry operations are protected by a mutex. Recording
// into one command buffer must still happen from a single goroutine.
type Device struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpucore IDs to hal resources
	images          map[gpucore.Image]hal.Texture
	views           map[gpucore.ImageView]hal.TextureView
	samplers        map[gpucore.Sampler]hal.Sampler
	buffers         map[gpucore.Buffer]*bufferEntry
	setLayouts      map[gpucore.DescriptorSetLayout]*setLayout
	pipelineLayouts map[gpucore.PipelineLayout]hal.PipelineLayout
	pipelines       map[gpucore.Pipeline]*pipelineEntry
	descPools       map[gpucore.DescriptorPool]*descriptorPool
	sets            map[gpucore.DescriptorSet]*descriptorSet
	cmdPools        map[gpucore.CommandPool]*commandPool
	cmds            map[gpucore.CommandBuffer]*commandBuffer
	queryPools      map[gpucore.QueryPool]uint32

	// retired bind groups may still be referenced by submitted work. They
	// are destroyed on the next command pool reset.
	retired []hal.BindGroup

	// deferred is the first error hit by a command without an error
	// return. EndCommandBuffer reports and clears it.
	deferred error

	// fallback fills combined image sampler slots no write has reached.
	fallbackView    hal.TextureView
	fallbackSampler hal.Sampler

	timestampWarn sync.Once
}

type bufferEntry struct {
	buf    hal.Buffer
	size   uint64
	shadow []byte
}

type pipelineEntry struct {
	module   hal.ShaderModule
	pipeline hal.ComputePipeline
}

type descriptorPool struct {
	maxSets uint32
	sets    []gpucore.DescriptorSet
}

type descriptorSet struct {
	pool    gpucore.DescriptorPool
	layout  *setLayout
	name    string
	entries []gputypes.BindGroupEntry
	written []bool

	// group is the bind group of the current contents; nil when dirty.
	group hal.BindGroup
}

type commandPool struct {
	cmds []gpucore.CommandBuffer
}

type cmdState uint8

const (
	cmdInitial cmdState = iota
	cmdRecording
	cmdExecutable
)

type commandBuffer struct {
	pool    gpucore.CommandPool
	label   string
	encoder hal.CommandEncoder
	state   cmdState

	// executable holds the ended recording until the pool is reset.
	executable hal.CommandBuffer

	pipeline hal.ComputePipeline
	group    hal.BindGroup
}

var (
	_ gpucore.Device              = (*Device)(nil)
	_ gpucore.Namer               = (*Device)(nil)
	_ gpucore.MappedBufferFlusher = (*Device)(nil)
	_ gpucore.TimestampSupporter  = (*Device)(nil)
)

// NewDevice creates a Device wrapping the given HAL device and queue.
// The caller keeps ownership of both.
func NewDevice(device hal.Device, queue hal.Queue) *Device {
	d := &Device{
		device:          device,
		queue:           queue,
		images:          make(map[gpucore.Image]hal.Texture),
		views:           make(map[gpucore.ImageView]hal.TextureView),
		samplers:        make(map[gpucore.Sampler]hal.Sampler),
		buffers:         make(map[gpucore.Buffer]*bufferEntry),
		setLayouts:      make(map[gpucore.DescriptorSetLayout]*setLayout),
		pipelineLayouts: make(map[gpucore.PipelineLayout]hal.PipelineLayout),
		pipelines:       make(map[gpucore.Pipeline]*pipelineEntry),
		descPools:       make(map[gpucore.DescriptorPool]*descriptorPool),
		sets:            make(map[gpucore.DescriptorSet]*descriptorSet),
		cmdPools:        make(map[gpucore.CommandPool]*commandPool),
		cmds:            make(map[gpucore.CommandBuffer]*commandBuffer),
		queryPools:      make(map[gpucore.QueryPool]uint32),
	}

	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)

	return d
}

// newID generates a unique resource ID.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// HAL returns the wrapped HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) {
	return d.device, d.queue
}

// deferErr keeps the first error of a command that cannot return one.
// Callers hold d.mu.
func (d *Device) deferErr(err error) {
	if d.deferred == nil {
		d.deferred = err
	}
	xrcomp.Logger().Warn("native: command failed", "err", err)
}

// === Images and Samplers ===

// CreateImage creates a texture and registers it.
func (d *Device) CreateImage(desc *hal.TextureDescriptor) (gpucore.Image, error) {
	tex, err := d.device.CreateTexture(desc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}
	return d.RegisterImage(tex), nil
}

// RegisterImage registers an externally created texture, such as a
// swapchain image. The device destroys it only through DestroyImage.
func (d *Device) RegisterImage(tex hal.Texture) gpucore.Image {
	id := gpucore.Image(d.newID())
	d.mu.Lock()
	d.images[id] = tex
	d.mu.Unlock()
	return id
}

// UnregisterImage forgets an image without destroying the texture.
func (d *Device) UnregisterImage(id gpucore.Image) {
	d.mu.Lock()
	delete(d.images, id)
	d.mu.Unlock()
}

// DestroyImage destroys a texture.
func (d *Device) DestroyImage(id gpucore.Image) {
	d.mu.Lock()
	tex, ok := d.images[id]
	delete(d.images, id)
	d.mu.Unlock()

	if ok && tex != nil {
		d.device.DestroyTexture(tex)
	}
}

// CreateImageView creates a view of a registered image.
func (d *Device) CreateImageView(img gpucore.Image, desc *hal.TextureViewDescriptor) (gpucore.ImageView, error) {
	d.mu.Lock()
	tex, ok := d.images[img]
	d.mu.Unlock()
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: image %d", ErrUnknownHandle, img)
	}

	view, err := d.device.CreateTextureView(tex, desc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("failed to create texture view %q: %w", desc.Label, err)
	}
	return d.RegisterImageView(view), nil
}

// RegisterImageView registers an externally created texture view.
func (d *Device) RegisterImageView(view hal.TextureView) gpucore.ImageView {
	id := gpucore.ImageView(d.newID())
	d.mu.Lock()
	d.views[id] = view
	d.mu.Unlock()
	return id
}

// UnregisterImageView forgets a view without destroying it.
func (d *Device) UnregisterImageView(id gpucore.ImageView) {
	d.mu.Lock()
	delete(d.views, id)
	d.mu.Unlock()
}

// DestroyImageView destroys a texture view.
func (d *Device) DestroyImageView(id gpucore.ImageView) {
	d.mu.Lock()
	view, ok := d.views[id]
	delete(d.views, id)
	if ok && view == d.fallbackView {
		d.fallbackView = nil
	}
	d.mu.Unlock()

	if ok && view != nil {
		d.device.DestroyTextureView(view)
	}
}

// WriteImage uploads tightly packed texel rows into mip 0 of an image.
func (d *Device) WriteImage(img gpucore.Image, data []byte, bytesPerRow, width, height uint32) error {
	d.mu.Lock()
	tex, ok := d.images[img]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: image %d", ErrUnknownHandle, img)
	}
	if uint64(len(data)) < uint64(bytesPerRow)*uint64(height) {
		return fmt.Errorf("native: image data has %d bytes, need %d", len(data), bytesPerRow*height)
	}

	dst := &hal.ImageCopyTexture{
		Texture:  tex,
		MipLevel: 0,
		Origin:   hal.Origin3D{X: 0, Y: 0, Z: 0},
		Aspect:   gputypes.TextureAspectAll,
	}
	layout := &hal.ImageDataLayout{
		Offset:       0,
		BytesPerRow:  bytesPerRow,
		RowsPerImage: height,
	}
	size := &hal.Extent3D{
		Width:              width,
		Height:             height,
		DepthOrArrayLayers: 1,
	}
	d.queue.WriteTexture(dst, data, layout, size)
	return nil
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *hal.SamplerDescriptor) (gpucore.Sampler, error) {
	s, err := d.device.CreateSampler(desc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("failed to create sampler %q: %w", desc.Label, err)
	}
	id := gpucore.Sampler(d.newID())
	d.mu.Lock()
	d.samplers[id] = s
	d.mu.Unlock()
	return id, nil
}

// DestroySampler destroys a sampler.
func (d *Device) DestroySampler(id gpucore.Sampler) {
	d.mu.Lock()
	s, ok := d.samplers[id]
	delete(d.samplers, id)
	if ok && s == d.fallbackSampler {
		d.fallbackSampler = nil
	}
	d.mu.Unlock()

	if ok && s != nil {
		d.device.DestroySampler(s)
	}
}

// === Buffers ===

// CreateMappedBuffer creates a uniform buffer with a host shadow of size
// bytes. Writes to the returned Mapped slice reach the GPU on
// FlushMappedBuffer.
func (d *Device) CreateMappedBuffer(label string, size uint64) (gpucore.MappedBuffer, error) {
	if size == 0 {
		return gpucore.MappedBuffer{}, fmt.Errorf("native: buffer %q has zero size", label)
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.MappedBuffer{}, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}

	id := gpucore.Buffer(d.newID())
	entry := &bufferEntry{buf: buf, size: size, shadow: make([]byte, size)}
	d.mu.Lock()
	d.buffers[id] = entry
	d.mu.Unlock()

	return gpucore.MappedBuffer{Buffer: id, Mapped: entry.shadow}, nil
}

// FlushMappedBuffer uploads the host shadow of buf.
func (d *Device) FlushMappedBuffer(buf gpucore.MappedBuffer) {
	d.mu.Lock()
	entry, ok := d.buffers[buf.Buffer]
	d.mu.Unlock()
	if !ok {
		return
	}
	d.queue.WriteBuffer(entry.buf, 0, entry.shadow)
}

// DestroyBuffer destroys a buffer. Its shadow must no longer be used.
func (d *Device) DestroyBuffer(id gpucore.Buffer) {
	d.mu.Lock()
	entry, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()

	if ok && entry.buf != nil {
		d.device.DestroyBuffer(entry.buf)
	}
}

// === Layouts and Pipelines ===

// CreateDescriptorSetLayout creates a bind group layout from gpucore
// binding descriptions. See Slot for the HAL binding numbers.
func (d *Device) CreateDescriptorSetLayout(label string, entries []LayoutEntry) (gpucore.DescriptorSetLayout, error) {
	halEntries, err := halLayoutEntries(entries)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: layout %q: %w", label, err)
	}

	l, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: halEntries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("failed to create bind group layout %q: %w", label, err)
	}

	id := gpucore.DescriptorSetLayout(d.newID())
	d.mu.Lock()
	d.setLayouts[id] = newSetLayout(l, entries, halEntries)
	d.mu.Unlock()
	return id, nil
}

// DestroyDescriptorSetLayout destroys a bind group layout.
func (d *Device) DestroyDescriptorSetLayout(id gpucore.DescriptorSetLayout) {
	d.mu.Lock()
	sl, ok := d.setLayouts[id]
	delete(d.setLayouts, id)
	d.mu.Unlock()

	if ok && sl.hal != nil {
		d.device.DestroyBindGroupLayout(sl.hal)
	}
}

// CreatePipelineLayout creates a pipeline layout with a single set.
func (d *Device) CreatePipelineLayout(label string, set gpucore.DescriptorSetLayout) (gpucore.PipelineLayout, error) {
	d.mu.Lock()
	sl, ok := d.setLayouts[set]
	d.mu.Unlock()
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: descriptor set layout %d", ErrUnknownHandle, set)
	}

	pl, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: []hal.BindGroupLayout{sl.hal},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("failed to create pipeline layout %q: %w", label, err)
	}

	id := gpucore.PipelineLayout(d.newID())
	d.mu.Lock()
	d.pipelineLayouts[id] = pl
	d.mu.Unlock()
	return id, nil
}

// DestroyPipelineLayout destroys a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayout) {
	d.mu.Lock()
	pl, ok := d.pipelineLayouts[id]
	delete(d.pipelineLayouts, id)
	d.mu.Unlock()

	if ok && pl != nil {
		d.device.DestroyPipelineLayout(pl)
	}
}

// CreateComputePipeline creates a compute pipeline from SPIR-V bytecode.
func (d *Device) CreateComputePipeline(label string, layout gpucore.PipelineLayout, spirv []uint32, entryPoint string) (gpucore.Pipeline, error) {
	if len(spirv) == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: pipeline %q: empty SPIR-V bytecode", label)
	}

	d.mu.Lock()
	pl, ok := d.pipelineLayouts[layout]
	d.mu.Unlock()
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline layout %d", ErrUnknownHandle, layout)
	}

	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirv,
		},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("failed to create shader module %q: %w", label, err)
	}

	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: pl,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		d.device.DestroyShaderModule(module)
		return gpucore.InvalidID, fmt.Errorf("failed to create compute pipeline %q: %w", label, err)
	}

	id := gpucore.Pipeline(d.newID())
	d.mu.Lock()
	d.pipelines[id] = &pipelineEntry{module: module, pipeline: pipeline}
	d.mu.Unlock()
	return id, nil
}

// DestroyPipeline destroys a compute pipeline and its shader module.
func (d *Device) DestroyPipeline(id gpucore.Pipeline) {
	d.mu.Lock()
	p, ok := d.pipelines[id]
	delete(d.pipelines, id)
	d.mu.Unlock()

	if !ok {
		return
	}
	if p.pipeline != nil {
		d.device.DestroyComputePipeline(p.pipeline)
	}
	if p.module != nil {
		d.device.DestroyShaderModule(p.module)
	}
}

// === Pools ===

// CreateDescriptorPool creates a pool that holds up to maxSets sets.
func (d *Device) CreateDescriptorPool(maxSets uint32) gpucore.DescriptorPool {
	id := gpucore.DescriptorPool(d.newID())
	d.mu.Lock()
	d.descPools[id] = &descriptorPool{maxSets: maxSets}
	d.mu.Unlock()
	return id
}

// DestroyDescriptorPool frees every set of the pool and forgets it.
func (d *Device) DestroyDescriptorPool(id gpucore.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.descPools[id]; ok {
		d.freeSets(p)
		delete(d.descPools, id)
	}
}

// CreateCommandPool creates an empty command pool.
func (d *Device) CreateCommandPool() gpucore.CommandPool {
	id := gpucore.CommandPool(d.newID())
	d.mu.Lock()
	d.cmdPools[id] = &commandPool{}
	d.mu.Unlock()
	return id
}

// AllocateCommandBuffer allocates a command buffer from pool.
func (d *Device) AllocateCommandBuffer(pool gpucore.CommandPool, label string) (gpucore.CommandBuffer, error) {
	d.mu.Lock()
	p, ok := d.cmdPools[pool]
	d.mu.Unlock()
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: command pool %d", ErrUnknownHandle, pool)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("failed to create command encoder %q: %w", label, err)
	}

	id := gpucore.CommandBuffer(d.newID())
	d.mu.Lock()
	d.cmds[id] = &commandBuffer{pool: pool, label: label, encoder: encoder}
	p.cmds = append(p.cmds, id)
	d.mu.Unlock()
	return id, nil
}

// DestroyCommandPool frees every command buffer of the pool.
func (d *Device) DestroyCommandPool(id gpucore.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.cmdPools[id]
	if !ok {
		return
	}
	for _, cid := range p.cmds {
		if c, ok := d.cmds[cid]; ok {
			d.resetCmd(c)
			delete(d.cmds, cid)
		}
	}
	delete(d.cmdPools, id)
}

// CreateQueryPool creates a timestamp query pool with count slots.
// HAL query sets are not wired, so the pool only validates recording.
func (d *Device) CreateQueryPool(count uint32) gpucore.QueryPool {
	id := gpucore.QueryPool(d.newID())
	d.mu.Lock()
	d.queryPools[id] = count
	d.mu.Unlock()
	return id
}

// DestroyQueryPool forgets a query pool.
func (d *Device) DestroyQueryPool(id gpucore.QueryPool) {
	d.mu.Lock()
	delete(d.queryPools, id)
	d.mu.Unlock()
}

// === gpucore.Device: Descriptor Sets ===

// AllocateDescriptorSet allocates one set with layout from pool.
func (d *Device) AllocateDescriptorSet(pool gpucore.DescriptorPool, layout gpucore.DescriptorSetLayout) (gpucore.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.descPools[pool]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: descriptor pool %d", ErrUnknownHandle, pool)
	}
	sl, ok := d.setLayouts[layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: descriptor set layout %d", ErrUnknownHandle, layout)
	}
	if uint32(len(p.sets)) >= p.maxSets {
		return gpucore.InvalidID, fmt.Errorf("%w: %d sets", ErrPoolExhausted, p.maxSets)
	}

	s := &descriptorSet{
		pool:    pool,
		layout:  sl,
		entries: make([]gputypes.BindGroupEntry, len(sl.slots)),
		written: make([]bool, len(sl.slots)),
	}
	for i, slot := range sl.slots {
		s.entries[i].Binding = slot
	}

	id := gpucore.DescriptorSet(d.newID())
	d.sets[id] = s
	p.sets = append(p.sets, id)
	return id, nil
}

// ResetDescriptorPool frees every set allocated from pool.
func (d *Device) ResetDescriptorPool(pool gpucore.DescriptorPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.descPools[pool]
	if !ok {
		return fmt.Errorf("%w: descriptor pool %d", ErrUnknownHandle, pool)
	}
	d.freeSets(p)
	return nil
}

// freeSets retires the bind groups of every set in p. Callers hold d.mu.
func (d *Device) freeSets(p *descriptorPool) {
	for _, id := range p.sets {
		if s, ok := d.sets[id]; ok {
			if s.group != nil {
				d.retired = append(d.retired, s.group)
			}
			delete(d.sets, id)
		}
	}
	p.sets = p.sets[:0]
}

// SetDescriptorSetName labels the bind groups built for set.
func (d *Device) SetDescriptorSetName(set gpucore.DescriptorSet, name string) {
	d.mu.Lock()
	if s, ok := d.sets[set]; ok {
		s.name = name
	}
	d.mu.Unlock()
}

// UpdateDescriptorSets applies the writes in order. A write naming an
// unknown handle is skipped and reported by the next EndCommandBuffer.
func (d *Device) UpdateDescriptorSets(writes []gpucore.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range writes {
		if err := d.applyWrite(&writes[i]); err != nil {
			d.deferErr(fmt.Errorf("descriptor write %d: %w", i, err))
		}
	}
}

// applyWrite stores one write into its set. Callers hold d.mu.
func (d *Device) applyWrite(w *gpucore.DescriptorWrite) error {
	s, ok := d.sets[w.Set]
	if !ok {
		return fmt.Errorf("%w: descriptor set %d", ErrUnknownHandle, w.Set)
	}
	le, ok := s.layout.entry(w.Binding)
	if !ok {
		return fmt.Errorf("native: binding %d not in layout", w.Binding)
	}
	if le.Type != w.Type {
		return fmt.Errorf("native: binding %d is %v, write is %v", w.Binding, le.Type, w.Type)
	}
	if w.ArrayElement+w.Count() > le.Count {
		return fmt.Errorf("native: binding %d: elements [%d, %d) exceed count %d",
			w.Binding, w.ArrayElement, w.ArrayElement+w.Count(), le.Count)
	}

	// Resolve every element before touching the set so a bad handle
	// leaves it as it was.
	updates := make([]slotUpdate, 0, 2*w.Count())
	for i := uint32(0); i < w.Count(); i++ {
		el := w.ArrayElement + i

		switch w.Type {
		case gpucore.DescriptorTypeCombinedImageSampler:
			info := w.Images[i]
			view, err := d.viewBinding(info.View)
			if err != nil {
				return err
			}
			smp, ok := d.samplers[info.Sampler]
			if !ok {
				return fmt.Errorf("%w: sampler %d", ErrUnknownHandle, info.Sampler)
			}
			updates = append(updates,
				slotUpdate{Slot(w.Binding, el), view},
				slotUpdate{SamplerSlot(w.Binding, el), gputypes.SamplerBinding{
					Sampler: uintptr(smp.NativeHandle()),
				}},
			)

		case gpucore.DescriptorTypeStorageImage:
			view, err := d.viewBinding(w.Images[i].View)
			if err != nil {
				return err
			}
			updates = append(updates, slotUpdate{Slot(w.Binding, el), view})

		case gpucore.DescriptorTypeUniformBuffer:
			info := w.Buffers[i]
			entry, ok := d.buffers[info.Buffer]
			if !ok {
				return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, info.Buffer)
			}
			size := info.Range
			if size == gpucore.WholeSize {
				size = entry.size - info.Offset
			}
			updates = append(updates, slotUpdate{Slot(w.Binding, el), gputypes.BufferBinding{
				Buffer: entry.buf.NativeHandle(),
				Offset: info.Offset,
				Size:   size,
			}})
		}
	}

	// Bound groups are immutable; submitted work keeps the old one.
	if s.group != nil {
		d.retired = append(d.retired, s.group)
		s.group = nil
	}
	for _, u := range updates {
		s.slot(u.binding).Resource = u.resource
	}
	return nil
}

// slotUpdate is one resolved HAL binding of a descriptor write.
type slotUpdate struct {
	binding  uint32
	resource gputypes.BindingResource
}

func (d *Device) viewBinding(id gpucore.ImageView) (gputypes.TextureViewBinding, error) {
	view, ok := d.views[id]
	if !ok {
		return gputypes.TextureViewBinding{}, fmt.Errorf("%w: image view %d", ErrUnknownHandle, id)
	}
	return gputypes.TextureViewBinding{
		TextureView: uintptr(view.NativeHandle()),
	}, nil
}

// slot returns the bind group entry of a HAL binding and marks it written.
func (s *descriptorSet) slot(binding uint32) *gputypes.BindGroupEntry {
	i := s.layout.index[binding]
	s.written[i] = true
	return &s.entries[i]
}

// bindGroup returns a bind group holding the current contents of s,
// building one if the contents changed. Callers hold d.mu.
func (d *Device) bindGroup(id gpucore.DescriptorSet, s *descriptorSet) (hal.BindGroup, error) {
	if s.group != nil {
		return s.group, nil
	}
	for i, ok := range s.written {
		if !ok && !d.fillFallback(s, i) {
			return nil, fmt.Errorf("%w: set %d binding %d", ErrIncompleteSet, id, s.entries[i].Binding)
		}
	}

	label := s.name
	if label == "" {
		label = fmt.Sprintf("xrcomp_set_%d", id)
	}
	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  s.layout.hal,
		Entries: s.entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %q: %w", label, err)
	}
	s.group = g
	return g, nil
}

// SetFallbackImage sets the sampler and view bound to combined image
// sampler elements that were never written, such as the unused sources of
// a layer set. Callers typically pass the mock image.
func (d *Device) SetFallbackImage(sampler gpucore.Sampler, view gpucore.ImageView) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	smp, ok := d.samplers[sampler]
	if !ok {
		return fmt.Errorf("%w: sampler %d", ErrUnknownHandle, sampler)
	}
	v, ok := d.views[view]
	if !ok {
		return fmt.Errorf("%w: image view %d", ErrUnknownHandle, view)
	}
	d.fallbackSampler = smp
	d.fallbackView = v
	return nil
}

// fillFallback binds the fallback to unwritten entry i of s if it belongs
// to a combined image sampler. Callers hold d.mu.
func (d *Device) fillFallback(s *descriptorSet, i int) bool {
	if d.fallbackView == nil || d.fallbackSampler == nil {
		return false
	}
	slot := s.entries[i].Binding
	le, ok := s.layout.entry(slot / slotsPerBinding)
	if !ok || le.Type != gpucore.DescriptorTypeCombinedImageSampler {
		return false
	}
	if slot%slotsPerBinding < MaxArrayElements {
		s.entries[i].Resource = gputypes.TextureViewBinding{
			TextureView: uintptr(d.fallbackView.NativeHandle()),
		}
	} else {
		s.entries[i].Resource = gputypes.SamplerBinding{
			Sampler: uintptr(d.fallbackSampler.NativeHandle()),
		}
	}
	return true
}

// === gpucore.Device: Command Recording ===

// ResetCommandPool discards every recording of the pool and destroys bind
// groups retired since the previous reset.
func (d *Device) ResetCommandPool(pool gpucore.CommandPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.cmdPools[pool]
	if !ok {
		return fmt.Errorf("%w: command pool %d", ErrUnknownHandle, pool)
	}
	for _, id := range p.cmds {
		d.resetCmd(d.cmds[id])
	}
	d.destroyRetired()
	return nil
}

// resetCmd returns c to the initial state. Callers hold d.mu.
func (d *Device) resetCmd(c *commandBuffer) {
	switch c.state {
	case cmdRecording:
		c.encoder.DiscardEncoding()
	case cmdExecutable:
		if c.executable != nil {
			d.device.FreeCommandBuffer(c.executable)
			c.executable = nil
		}
	}
	c.state = cmdInitial
	c.pipeline = nil
	c.group = nil
}

func (d *Device) destroyRetired() {
	for _, g := range d.retired {
		d.device.DestroyBindGroup(g)
	}
	d.retired = d.retired[:0]
}

// BeginCommandBuffer opens a recording. An executable command buffer is
// reset implicitly.
func (d *Device) BeginCommandBuffer(cmd gpucore.CommandBuffer, _ gpucore.CommandBufferUsage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.cmds[cmd]
	if !ok {
		return fmt.Errorf("%w: command buffer %d", ErrUnknownHandle, cmd)
	}
	if c.state == cmdRecording {
		return ErrAlreadyRecording
	}
	d.resetCmd(c)

	if err := c.encoder.BeginEncoding(c.label); err != nil {
		return fmt.Errorf("failed to begin encoding: %w", err)
	}
	c.state = cmdRecording
	d.deferred = nil
	return nil
}

// EndCommandBuffer closes the recording. It also reports the first error
// hit by a command recorded since BeginCommandBuffer.
func (d *Device) EndCommandBuffer(cmd gpucore.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.cmds[cmd]
	if !ok {
		return fmt.Errorf("%w: command buffer %d", ErrUnknownHandle, cmd)
	}
	if c.state != cmdRecording {
		return ErrNotRecording
	}

	cb, err := c.encoder.EndEncoding()
	if err != nil {
		c.state = cmdInitial
		return fmt.Errorf("failed to end encoding: %w", err)
	}
	c.executable = cb
	c.state = cmdExecutable

	if d.deferred != nil {
		err := d.deferred
		d.deferred = nil
		return err
	}
	return nil
}

// recording returns the open command buffer cmd, deferring an error if it
// is not open. Callers hold d.mu.
func (d *Device) recording(cmd gpucore.CommandBuffer) *commandBuffer {
	c, ok := d.cmds[cmd]
	if !ok {
		d.deferErr(fmt.Errorf("%w: command buffer %d", ErrUnknownHandle, cmd))
		return nil
	}
	if c.state != cmdRecording {
		d.deferErr(ErrNotRecording)
		return nil
	}
	return c
}

// CmdResetQueryPool validates the query range. Timestamps are not recorded.
func (d *Device) CmdResetQueryPool(cmd gpucore.CommandBuffer, pool gpucore.QueryPool, first, count uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recording(cmd) == nil {
		return
	}
	d.checkQuery(pool, first, count)
}

// CmdWriteTimestamp validates the query slot. Timestamps are not recorded.
func (d *Device) CmdWriteTimestamp(cmd gpucore.CommandBuffer, _ gpucore.PipelineStage, pool gpucore.QueryPool, query uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recording(cmd) == nil {
		return
	}
	d.checkQuery(pool, query, 1)
}

func (d *Device) checkQuery(pool gpucore.QueryPool, first, count uint32) {
	n, ok := d.queryPools[pool]
	if !ok {
		d.deferErr(fmt.Errorf("%w: query pool %d", ErrUnknownHandle, pool))
		return
	}
	if first+count > n {
		d.deferErr(fmt.Errorf("native: queries [%d, %d) exceed pool size %d", first, first+count, n))
		return
	}
	d.timestampWarn.Do(func() {
		xrcomp.Logger().Warn("native: timestamp queries are not supported, GPU timing disabled")
	})
}

// SupportsTimestamps reports false: HAL query sets are not wired.
func (d *Device) SupportsTimestamps() bool {
	return false
}

// CmdBindPipeline binds a compute pipeline for the following dispatches.
func (d *Device) CmdBindPipeline(cmd gpucore.CommandBuffer, pipeline gpucore.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.recording(cmd)
	if c == nil {
		return
	}
	p, ok := d.pipelines[pipeline]
	if !ok {
		d.deferErr(fmt.Errorf("%w: pipeline %d", ErrUnknownHandle, pipeline))
		return
	}
	c.pipeline = p.pipeline
}

// CmdBindDescriptorSet binds the bind group of set for the following
// dispatches.
func (d *Device) CmdBindDescriptorSet(cmd gpucore.CommandBuffer, layout gpucore.PipelineLayout, set gpucore.DescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.recording(cmd)
	if c == nil {
		return
	}
	if _, ok := d.pipelineLayouts[layout]; !ok {
		d.deferErr(fmt.Errorf("%w: pipeline layout %d", ErrUnknownHandle, layout))
		return
	}
	s, ok := d.sets[set]
	if !ok {
		d.deferErr(fmt.Errorf("%w: descriptor set %d", ErrUnknownHandle, set))
		return
	}
	g, err := d.bindGroup(set, s)
	if err != nil {
		d.deferErr(err)
		return
	}
	c.group = g
}

// CmdDispatch records one compute pass holding a single dispatch.
func (d *Device) CmdDispatch(cmd gpucore.CommandBuffer, x, y, z uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.recording(cmd)
	if c == nil {
		return
	}
	if c.pipeline == nil || c.group == nil {
		d.deferErr(fmt.Errorf("native: dispatch without bound pipeline and set"))
		return
	}

	pass := c.encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: c.label,
	})
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, c.group, nil)
	pass.Dispatch(x, y, z)
	pass.End()
}

// CmdImageBarrier records the barrier as a texture usage transition.
func (d *Device) CmdImageBarrier(cmd gpucore.CommandBuffer, b gpucore.ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.recording(cmd)
	if c == nil {
		return
	}
	tex, ok := d.images[b.Image]
	if !ok {
		d.deferErr(fmt.Errorf("%w: image %d", ErrUnknownHandle, b.Image))
		return
	}
	c.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: usageForLayout(b.OldLayout),
			NewUsage: usageForLayout(b.NewLayout),
		},
	}})
}

// usageForLayout maps an image layout to the texture usage HAL tracks.
func usageForLayout(l gpucore.ImageLayout) gputypes.TextureUsage {
	switch l {
	case gpucore.ImageLayoutGeneral:
		return gputypes.TextureUsageStorageBinding
	case gpucore.ImageLayoutShaderReadOnlyOptimal:
		return gputypes.TextureUsageTextureBinding
	case gpucore.ImageLayoutPresentSrc:
		return gputypes.TextureUsageRenderAttachment
	default:
		return 0
	}
}

// === Submission ===

// Submit submits an ended command buffer and waits for the GPU.
func (d *Device) Submit(cmd gpucore.CommandBuffer) error {
	d.mu.Lock()
	c, ok := d.cmds[cmd]
	var cb hal.CommandBuffer
	if ok && c.state == cmdExecutable {
		cb = c.executable
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: command buffer %d", ErrUnknownHandle, cmd)
	}
	if cb == nil {
		return ErrNotExecutable
	}

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("failed to create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cb}, fence, 1); err != nil {
		return fmt.Errorf("failed to submit: %w", err)
	}

	done, err := d.device.Wait(fence, 1, submitTimeout)
	if err != nil {
		return fmt.Errorf("failed to wait for GPU: %w", err)
	}
	if !done {
		return fmt.Errorf("%w after %v", ErrGPUTimeout, submitTimeout)
	}
	return nil
}

// Close frees every bind group the device built. Registered HAL objects
// are left to their Destroy methods; the HAL device stays with the caller.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.descPools {
		d.freeSets(p)
	}
	for _, c := range d.cmds {
		d.resetCmd(c)
	}
	d.destroyRetired()
}
