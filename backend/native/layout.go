// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/xrcomp/gpucore"
)

// Binding slot mapping.
//
// WebGPU has no combined image sampler and no binding arrays, so every
// array element of a gpucore binding gets its own HAL binding. Element e of
// binding b lives at Slot(b, e); a combined image sampler additionally
// places its sampler at SamplerSlot(b, e). Shaders written for this backend
// declare their bindings with these numbers.
const (
	// MaxArrayElements is the largest descriptor count of one binding.
	MaxArrayElements = 32

	slotsPerBinding = 2 * MaxArrayElements
)

// Slot returns the HAL binding of element of a gpucore binding. It is the
// texture of a combined image sampler, the storage texture of a storage
// image or the buffer of a uniform buffer.
func Slot(binding, element uint32) uint32 {
	return binding*slotsPerBinding + element
}

// SamplerSlot returns the HAL binding of the sampler half of a combined
// image sampler element.
func SamplerSlot(binding, element uint32) uint32 {
	return binding*slotsPerBinding + MaxArrayElements + element
}

// LayoutEntry describes one binding of a descriptor set layout.
type LayoutEntry struct {
	Binding uint32
	Type    gpucore.DescriptorType

	// Count is the number of array elements, 1 to MaxArrayElements.
	Count uint32

	// StorageFormat is the texel format of a StorageImage binding.
	StorageFormat gputypes.TextureFormat
}

// setLayout is the registry entry of a descriptor set layout.
type setLayout struct {
	hal     hal.BindGroupLayout
	entries []LayoutEntry

	// slots is the HAL binding of every bind group entry, in entry order.
	slots []uint32

	// index maps a HAL binding to its position in slots.
	index map[uint32]int
}

// halLayoutEntries expands gpucore layout entries into HAL layout entries.
func halLayoutEntries(entries []LayoutEntry) ([]gputypes.BindGroupLayoutEntry, error) {
	var out []gputypes.BindGroupLayoutEntry
	seen := make(map[uint32]bool, len(entries))

	for _, e := range entries {
		if e.Count == 0 || e.Count > MaxArrayElements {
			return nil, fmt.Errorf("binding %d: count %d out of range [1, %d]", e.Binding, e.Count, MaxArrayElements)
		}
		if seen[e.Binding] {
			return nil, fmt.Errorf("binding %d: declared twice", e.Binding)
		}
		seen[e.Binding] = true

		for el := uint32(0); el < e.Count; el++ {
			switch e.Type {
			case gpucore.DescriptorTypeCombinedImageSampler:
				out = append(out,
					gputypes.BindGroupLayoutEntry{
						Binding:    Slot(e.Binding, el),
						Visibility: gputypes.ShaderStageCompute,
						Texture: &gputypes.TextureBindingLayout{
							SampleType:    gputypes.TextureSampleTypeFloat,
							ViewDimension: gputypes.TextureViewDimension2D,
						},
					},
					gputypes.BindGroupLayoutEntry{
						Binding:    SamplerSlot(e.Binding, el),
						Visibility: gputypes.ShaderStageCompute,
						Sampler: &gputypes.SamplerBindingLayout{
							Type: gputypes.SamplerBindingTypeFiltering,
						},
					},
				)
			case gpucore.DescriptorTypeStorageImage:
				out = append(out, gputypes.BindGroupLayoutEntry{
					Binding:    Slot(e.Binding, el),
					Visibility: gputypes.ShaderStageCompute,
					StorageTexture: &gputypes.StorageTextureBindingLayout{
						Access:        gputypes.StorageTextureAccessWriteOnly,
						Format:        e.StorageFormat,
						ViewDimension: gputypes.TextureViewDimension2D,
					},
				})
			case gpucore.DescriptorTypeUniformBuffer:
				out = append(out, gputypes.BindGroupLayoutEntry{
					Binding:    Slot(e.Binding, el),
					Visibility: gputypes.ShaderStageCompute,
					Buffer: &gputypes.BufferBindingLayout{
						Type: gputypes.BufferBindingTypeUniform,
					},
				})
			default:
				return nil, fmt.Errorf("binding %d: unsupported descriptor type %v", e.Binding, e.Type)
			}
		}
	}
	return out, nil
}

func newSetLayout(l hal.BindGroupLayout, entries []LayoutEntry, halEntries []gputypes.BindGroupLayoutEntry) *setLayout {
	sl := &setLayout{
		hal:     l,
		entries: append([]LayoutEntry(nil), entries...),
		slots:   make([]uint32, len(halEntries)),
		index:   make(map[uint32]int, len(halEntries)),
	}
	for i, e := range halEntries {
		sl.slots[i] = e.Binding
		sl.index[e.Binding] = i
	}
	return sl
}

// entry returns the layout entry of a gpucore binding.
func (l *setLayout) entry(binding uint32) (LayoutEntry, bool) {
	for _, e := range l.entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return LayoutEntry{}, false
}
