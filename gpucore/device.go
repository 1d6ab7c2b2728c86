// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// Device abstracts over the GPU APIs the compute compositor records against.
//
// This interface is the core abstraction that allows the compute passes to
// work with multiple backends (gogpu/wgpu HAL, Vulkan via goki/vulkan).
// Unlike most of the Go GPU stack it is NOT safe for concurrent use: a
// device is driven by the single goroutine that owns the frame recording.
//
// Resource lifecycle:
//   - Pipelines, layouts, pools, samplers and images are provisioned outside
//     this interface and referenced by handle
//   - Descriptor sets are allocated from a pool and only released in bulk
//     by ResetDescriptorPool
//   - Handles become invalid after the owning pool is reset
type Device interface {
	// === Descriptor Sets ===

	// AllocateDescriptorSet allocates one descriptor set with the given
	// layout from pool.
	//
	// Returns the set or an error if the pool is exhausted or the handles
	// are unknown.
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)

	// ResetDescriptorPool returns every set allocated from pool back to it.
	// All set handles from the pool become invalid.
	ResetDescriptorPool(pool DescriptorPool) error

	// UpdateDescriptorSets applies the writes in order. The written slots
	// are fully overwritten; slots not named by any write keep their
	// previous contents.
	UpdateDescriptorSets(writes []DescriptorWrite)

	// === Command Recording ===

	// ResetCommandPool resets every command buffer allocated from pool.
	// The GPU must be done with previously submitted work from the pool.
	ResetCommandPool(pool CommandPool) error

	// BeginCommandBuffer opens a recording on cmd.
	BeginCommandBuffer(cmd CommandBuffer, usage CommandBufferUsage) error

	// EndCommandBuffer closes the recording on cmd.
	EndCommandBuffer(cmd CommandBuffer) error

	// CmdResetQueryPool resets count queries starting at first.
	CmdResetQueryPool(cmd CommandBuffer, pool QueryPool, first, count uint32)

	// CmdWriteTimestamp writes a GPU timestamp into query once every
	// previous command reached stage.
	CmdWriteTimestamp(cmd CommandBuffer, stage PipelineStage, pool QueryPool, query uint32)

	// CmdBindPipeline binds a compute pipeline.
	CmdBindPipeline(cmd CommandBuffer, pipeline Pipeline)

	// CmdBindDescriptorSet binds set as set 0 of layout for compute.
	CmdBindDescriptorSet(cmd CommandBuffer, layout PipelineLayout, set DescriptorSet)

	// CmdDispatch dispatches x*y*z compute work-groups.
	CmdDispatch(cmd CommandBuffer, x, y, z uint32)

	// CmdImageBarrier records an image memory barrier.
	CmdImageBarrier(cmd CommandBuffer, barrier ImageBarrier)
}

// Namer is implemented by devices that can attach debug names to objects.
type Namer interface {
	// SetDescriptorSetName names a descriptor set for debugging tools.
	SetDescriptorSetName(set DescriptorSet, name string)
}

// MappedBufferFlusher is implemented by devices whose mapped memory needs an
// explicit step before the GPU sees host writes.
type MappedBufferFlusher interface {
	// FlushMappedBuffer makes all host writes to buf visible to work
	// submitted afterwards.
	FlushMappedBuffer(buf MappedBuffer)
}

// TimestampSupporter is implemented by devices that can report whether
// timestamp queries actually record anything.
type TimestampSupporter interface {
	// SupportsTimestamps reports whether CmdWriteTimestamp records real
	// GPU timestamps.
	SupportsTimestamps() bool
}
