// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import "github.com/gogpu/xrcomp/gpucore"

// LayerSource is one sampled source of a layer pass.
type LayerSource struct {
	Sampler gpucore.Sampler
	View    gpucore.ImageView
}

// bindingBuilder assembles descriptor writes in fixed scratch storage, so
// building the writes for a pass never allocates. The returned slices alias
// the builder and are only valid until the next call.
type bindingBuilder struct {
	src        [MaxImages]gpucore.DescriptorImageInfo
	distortion [MaxDistortionImages]gpucore.DescriptorImageInfo
	target     [1]gpucore.DescriptorImageInfo
	buffer     [1]gpucore.DescriptorBufferInfo
	writes     [4]gpucore.DescriptorWrite
}

// setSource stages shared source i.
func (b *bindingBuilder) setSource(i int, s gpucore.Sampler, v gpucore.ImageView) {
	b.src[i] = gpucore.DescriptorImageInfo{
		Sampler: s,
		View:    v,
		Layout:  gpucore.ImageLayoutShaderReadOnlyOptimal,
	}
}

// setDistortion stages distortion image i.
func (b *bindingBuilder) setDistortion(i int, s gpucore.Sampler, v gpucore.ImageView) {
	b.distortion[i] = gpucore.DescriptorImageInfo{
		Sampler: s,
		View:    v,
		Layout:  gpucore.ImageLayoutShaderReadOnlyOptimal,
	}
}

func (b *bindingBuilder) targetWrite(set gpucore.DescriptorSet, binding uint32, target gpucore.ImageView) gpucore.DescriptorWrite {
	b.target[0] = gpucore.DescriptorImageInfo{
		View:   target,
		Layout: gpucore.ImageLayoutGeneral,
	}
	return gpucore.DescriptorWrite{
		Set:     set,
		Binding: binding,
		Type:    gpucore.DescriptorTypeStorageImage,
		Images:  b.target[:],
	}
}

func (b *bindingBuilder) uboWrite(set gpucore.DescriptorSet, binding uint32, ubo gpucore.Buffer) gpucore.DescriptorWrite {
	b.buffer[0] = gpucore.DescriptorBufferInfo{
		Buffer: ubo,
		Offset: 0,
		Range:  gpucore.WholeSize,
	}
	return gpucore.DescriptorWrite{
		Set:     set,
		Binding: binding,
		Type:    gpucore.DescriptorTypeUniformBuffer,
		Buffers: b.buffer[:],
	}
}

// layer builds the writes of a layer set: sources, target and uniform buffer.
func (b *bindingBuilder) layer(bind Bindings, set gpucore.DescriptorSet, sources []LayerSource, target gpucore.ImageView, ubo gpucore.Buffer) []gpucore.DescriptorWrite {
	for i, s := range sources {
		b.src[i] = gpucore.DescriptorImageInfo{
			Sampler: s.Sampler,
			View:    s.View,
			Layout:  gpucore.ImageLayoutShaderReadOnlyOptimal,
		}
	}

	n := 0
	if len(sources) > 0 {
		b.writes[n] = gpucore.DescriptorWrite{
			Set:     set,
			Binding: bind.Src,
			Type:    gpucore.DescriptorTypeCombinedImageSampler,
			Images:  b.src[:len(sources)],
		}
		n++
	}
	b.writes[n] = b.targetWrite(set, bind.Target, target)
	b.writes[n+1] = b.uboWrite(set, bind.UBO, ubo)
	return b.writes[:n+2]
}

// shared builds the writes of the multi-view set from the staged sources and
// distortion images: viewCount sources, DistortionImagesPerView*viewCount
// distortion images, target and uniform buffer.
func (b *bindingBuilder) shared(bind Bindings, set gpucore.DescriptorSet, viewCount uint32, target gpucore.ImageView, ubo gpucore.Buffer) []gpucore.DescriptorWrite {
	b.writes[0] = gpucore.DescriptorWrite{
		Set:     set,
		Binding: bind.Src,
		Type:    gpucore.DescriptorTypeCombinedImageSampler,
		Images:  b.src[:viewCount],
	}
	b.writes[1] = gpucore.DescriptorWrite{
		Set:     set,
		Binding: bind.Distortion,
		Type:    gpucore.DescriptorTypeCombinedImageSampler,
		Images:  b.distortion[:DistortionImagesPerView*viewCount],
	}
	b.writes[2] = b.targetWrite(set, bind.Target, target)
	b.writes[3] = b.uboWrite(set, bind.UBO, ubo)
	return b.writes[:4]
}

// targetOnly builds the writes for just the target and uniform buffer.
func (b *bindingBuilder) targetOnly(bind Bindings, set gpucore.DescriptorSet, target gpucore.ImageView, ubo gpucore.Buffer) []gpucore.DescriptorWrite {
	b.writes[0] = b.targetWrite(set, bind.Target, target)
	b.writes[1] = b.uboWrite(set, bind.UBO, ubo)
	return b.writes[:2]
}
