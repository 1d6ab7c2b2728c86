// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "fmt"

// Resource handles
//
// These opaque IDs represent GPU objects. Each device implementation
// maintains a mapping between IDs and actual backend objects.
// IDs are uint64 to accommodate various backend handle sizes.

// Image is an opaque handle to a GPU image.
type Image uint64

// ImageView is an opaque handle to a view of a GPU image.
type ImageView uint64

// Sampler is an opaque handle to a sampler object.
type Sampler uint64

// Buffer is an opaque handle to a GPU buffer.
type Buffer uint64

// DescriptorSet is an opaque handle to a descriptor set allocated from a
// DescriptorPool.
type DescriptorSet uint64

// DescriptorSetLayout is an opaque handle to a descriptor set layout.
type DescriptorSetLayout uint64

// DescriptorPool is an opaque handle to a descriptor pool.
type DescriptorPool uint64

// Pipeline is an opaque handle to a compute pipeline.
type Pipeline uint64

// PipelineLayout is an opaque handle to a pipeline layout.
type PipelineLayout uint64

// CommandBuffer is an opaque handle to a command buffer.
type CommandBuffer uint64

// CommandPool is an opaque handle to the pool a CommandBuffer is allocated from.
type CommandPool uint64

// QueryPool is an opaque handle to a timestamp query pool.
type QueryPool uint64

// InvalidID is the zero value, representing an invalid/null handle.
const InvalidID = 0

// Sentinel range values.
const (
	// RemainingMipLevels selects every mip level from the base level on.
	RemainingMipLevels = ^uint32(0)

	// RemainingArrayLayers selects every array layer from the base layer on.
	RemainingArrayLayers = ^uint32(0)

	// WholeSize binds a buffer from the offset to its end.
	WholeSize = ^uint64(0)
)

// ImageLayout is the memory layout an image is in, or is transitioned to.
type ImageLayout uint32

// Image layouts.
const (
	// ImageLayoutUndefined means the previous contents may be discarded.
	ImageLayoutUndefined ImageLayout = iota

	// ImageLayoutGeneral allows storage (read-write) access from shaders.
	ImageLayoutGeneral

	// ImageLayoutShaderReadOnlyOptimal is used for sampled source images.
	ImageLayoutShaderReadOnlyOptimal

	// ImageLayoutPresentSrc is the layout a swapchain image is presented from.
	ImageLayoutPresentSrc
)

// String returns the string representation of ImageLayout.
func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "Undefined"
	case ImageLayoutGeneral:
		return "General"
	case ImageLayoutShaderReadOnlyOptimal:
		return "ShaderReadOnlyOptimal"
	case ImageLayoutPresentSrc:
		return "PresentSrc"
	default:
		return fmt.Sprintf("ImageLayout(%d)", uint32(l))
	}
}

// AccessFlags is a bitmask of memory access types.
type AccessFlags uint32

// Access flags.
const (
	// AccessNone means no prior access needs to be made visible.
	AccessNone AccessFlags = 0

	// AccessShaderWrite covers storage writes from shaders.
	AccessShaderWrite AccessFlags = 1 << 0

	// AccessMemoryRead covers any read by any later consumer.
	AccessMemoryRead AccessFlags = 1 << 1
)

// PipelineStage is a bitmask of pipeline stages.
type PipelineStage uint32

// Pipeline stages.
const (
	// PipelineStageTopOfPipe is the earliest point in the pipeline.
	PipelineStageTopOfPipe PipelineStage = 1 << 0

	// PipelineStageComputeShader is the compute shader stage.
	PipelineStageComputeShader PipelineStage = 1 << 1

	// PipelineStageBottomOfPipe is the latest point in the pipeline.
	PipelineStageBottomOfPipe PipelineStage = 1 << 2

	// PipelineStageAllCommands covers every stage.
	PipelineStageAllCommands PipelineStage = 1 << 3
)

// String returns the string representation of PipelineStage.
func (s PipelineStage) String() string {
	switch s {
	case PipelineStageTopOfPipe:
		return "TopOfPipe"
	case PipelineStageComputeShader:
		return "ComputeShader"
	case PipelineStageBottomOfPipe:
		return "BottomOfPipe"
	case PipelineStageAllCommands:
		return "AllCommands"
	default:
		return fmt.Sprintf("PipelineStage(%#x)", uint32(s))
	}
}

// DescriptorType is the type of resource bound at a descriptor binding.
type DescriptorType uint32

// Descriptor types.
const (
	// DescriptorTypeCombinedImageSampler is a sampled image plus its sampler.
	DescriptorTypeCombinedImageSampler DescriptorType = iota + 1

	// DescriptorTypeStorageImage is a writable image.
	DescriptorTypeStorageImage

	// DescriptorTypeUniformBuffer is a uniform buffer range.
	DescriptorTypeUniformBuffer
)

// String returns the string representation of DescriptorType.
func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeCombinedImageSampler:
		return "CombinedImageSampler"
	case DescriptorTypeStorageImage:
		return "StorageImage"
	case DescriptorTypeUniformBuffer:
		return "UniformBuffer"
	default:
		return fmt.Sprintf("DescriptorType(%d)", uint32(t))
	}
}

// ImageAspect selects the aspects of an image covered by a range.
type ImageAspect uint32

// Image aspects.
const (
	// ImageAspectColor is the color aspect.
	ImageAspectColor ImageAspect = 1 << 0
)

// CommandBufferUsage describes how a recording will be submitted.
type CommandBufferUsage uint32

// Command buffer usages.
const (
	// CommandBufferUsageOneTimeSubmit means the recording is submitted once
	// and then reset.
	CommandBufferUsageOneTimeSubmit CommandBufferUsage = 1 << 0
)

// DescriptorImageInfo describes one image element of a descriptor write.
type DescriptorImageInfo struct {
	// Sampler is used for combined image samplers, InvalidID otherwise.
	Sampler Sampler

	// View is the image view to bind.
	View ImageView

	// Layout is the layout the image is in when the shader accesses it.
	Layout ImageLayout
}

// DescriptorBufferInfo describes a buffer range of a descriptor write.
type DescriptorBufferInfo struct {
	// Buffer is the buffer to bind.
	Buffer Buffer

	// Offset is the byte offset into the buffer.
	Offset uint64

	// Range is the size of the bound range. Use WholeSize for the rest of
	// the buffer.
	Range uint64
}

// DescriptorWrite overwrites consecutive array elements of one binding.
type DescriptorWrite struct {
	// Set is the descriptor set to update.
	Set DescriptorSet

	// Binding is the binding index within the set.
	Binding uint32

	// ArrayElement is the first array element written.
	ArrayElement uint32

	// Type is the descriptor type of the binding.
	Type DescriptorType

	// Images holds one entry per element for image descriptor types.
	Images []DescriptorImageInfo

	// Buffers holds one entry per element for buffer descriptor types.
	Buffers []DescriptorBufferInfo
}

// Count returns the number of array elements the write covers.
func (w *DescriptorWrite) Count() uint32 {
	if w.Type == DescriptorTypeUniformBuffer {
		return uint32(len(w.Buffers))
	}
	return uint32(len(w.Images))
}

// ImageSubresourceRange selects mip levels and array layers of an image.
type ImageSubresourceRange struct {
	Aspect         ImageAspect
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// FullColorRange covers every mip level and array layer of a color image.
func FullColorRange() ImageSubresourceRange {
	return ImageSubresourceRange{
		Aspect:         ImageAspectColor,
		BaseMipLevel:   0,
		LevelCount:     RemainingMipLevels,
		BaseArrayLayer: 0,
		LayerCount:     RemainingArrayLayers,
	}
}

// ImageBarrier is an image memory barrier with a layout transition.
type ImageBarrier struct {
	Image     Image
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess AccessFlags
	DstAccess AccessFlags
	OldLayout ImageLayout
	NewLayout ImageLayout
	Range     ImageSubresourceRange
}

// MappedBuffer is a uniform buffer together with its persistently mapped
// host memory.
type MappedBuffer struct {
	// Buffer is the GPU buffer.
	Buffer Buffer

	// Mapped is the host-visible window onto the buffer contents.
	Mapped []byte
}

// Valid reports whether the buffer has a handle and a mapping.
func (b MappedBuffer) Valid() bool {
	return b.Buffer != InvalidID && len(b.Mapped) > 0
}
