// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/xrcomp/gpucore"
)

// imageLayout converts a gpucore image layout.
func imageLayout(l gpucore.ImageLayout) vk.ImageLayout {
	switch l {
	case gpucore.ImageLayoutGeneral:
		return vk.ImageLayoutGeneral
	case gpucore.ImageLayoutShaderReadOnlyOptimal:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpucore.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

// accessFlags converts gpucore access flags bit by bit.
func accessFlags(a gpucore.AccessFlags) vk.AccessFlags {
	var out vk.AccessFlagBits
	if a&gpucore.AccessShaderWrite != 0 {
		out |= vk.AccessShaderWriteBit
	}
	if a&gpucore.AccessMemoryRead != 0 {
		out |= vk.AccessMemoryReadBit
	}
	return vk.AccessFlags(out)
}

// pipelineStageBits converts gpucore pipeline stages bit by bit.
func pipelineStageBits(s gpucore.PipelineStage) vk.PipelineStageFlagBits {
	var out vk.PipelineStageFlagBits
	if s&gpucore.PipelineStageTopOfPipe != 0 {
		out |= vk.PipelineStageTopOfPipeBit
	}
	if s&gpucore.PipelineStageComputeShader != 0 {
		out |= vk.PipelineStageComputeShaderBit
	}
	if s&gpucore.PipelineStageBottomOfPipe != 0 {
		out |= vk.PipelineStageBottomOfPipeBit
	}
	if s&gpucore.PipelineStageAllCommands != 0 {
		out |= vk.PipelineStageAllCommandsBit
	}
	return out
}

func pipelineStages(s gpucore.PipelineStage) vk.PipelineStageFlags {
	return vk.PipelineStageFlags(pipelineStageBits(s))
}

// descriptorType converts a gpucore descriptor type. ok is false for types
// without a Vulkan equivalent.
func descriptorType(t gpucore.DescriptorType) (vk.DescriptorType, bool) {
	switch t {
	case gpucore.DescriptorTypeCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler, true
	case gpucore.DescriptorTypeStorageImage:
		return vk.DescriptorTypeStorageImage, true
	case gpucore.DescriptorTypeUniformBuffer:
		return vk.DescriptorTypeUniformBuffer, true
	default:
		return 0, false
	}
}

// subresourceRange converts a range. gpucore's remaining-levels and
// remaining-layers markers share Vulkan's values.
func subresourceRange(r gpucore.ImageSubresourceRange) vk.ImageSubresourceRange {
	var aspect vk.ImageAspectFlagBits
	if r.Aspect&gpucore.ImageAspectColor != 0 {
		aspect |= vk.ImageAspectColorBit
	}
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(aspect),
		BaseMipLevel:   r.BaseMipLevel,
		LevelCount:     r.LevelCount,
		BaseArrayLayer: r.BaseArrayLayer,
		LayerCount:     r.LayerCount,
	}
}

// imageBarrier builds the Vulkan barrier for b on img.
func imageBarrier(b gpucore.ImageBarrier, img vk.Image) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       accessFlags(b.SrcAccess),
		DstAccessMask:       accessFlags(b.DstAccess),
		OldLayout:           imageLayout(b.OldLayout),
		NewLayout:           imageLayout(b.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    subresourceRange(b.Range),
	}
}

// commandBufferUsage converts gpucore usage flags.
func commandBufferUsage(u gpucore.CommandBufferUsage) vk.CommandBufferUsageFlags {
	var out vk.CommandBufferUsageFlagBits
	if u&gpucore.CommandBufferUsageOneTimeSubmit != 0 {
		out |= vk.CommandBufferUsageOneTimeSubmitBit
	}
	return vk.CommandBufferUsageFlags(out)
}

// MappedBytes returns the size bytes at ptr, a pointer obtained from
// vk.MapMemory, as the Mapped window of a gpucore.MappedBuffer. The slice
// is valid until the memory is unmapped.
func MappedBytes(ptr unsafe.Pointer, size uint64) []byte {
	if ptr == nil || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), size)
}
