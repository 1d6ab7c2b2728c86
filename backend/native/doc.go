// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements the compute compositor's gpucore.Device on top
// of gogpu/wgpu/hal, the Pure Go WebGPU HAL.
//
// # Architecture
//
//	xrcomp.Compute
//	      │ gpucore.Device
//	      ▼
//	native.Device ── registries: gpucore handle → hal object
//	      │
//	      ▼
//	hal.Device / hal.Queue (Vulkan, Metal, DX12, GLES, noop)
//
// The recording model differs from WebGPU in two places:
//
//   - Descriptor sets are mutable. A set keeps its written bindings and is
//     turned into an immutable hal.BindGroup when bound. Writing to a set
//     that already has a bind group retires the group until the next
//     command pool reset.
//   - Combined image samplers do not exist in WGSL. Each element takes two
//     HAL bindings, see Slot and SamplerSlot.
//
// Commands without an error return (dispatch, binds, barriers) report
// failures through the next EndCommandBuffer.
//
// # Provisioning
//
// NewResources creates everything a Compute records against from a
// ResourcesDescriptor: layouts, the five pipelines (WGSL compiled with
// naga, or SPIR-V), samplers, the mock image, distortion images from the
// distortion package and the uniform buffers.
//
//	dev := native.NewDevice(halDevice, halQueue)
//	res, err := native.NewResources(dev, &native.ResourcesDescriptor{
//	    ViewCount: 2,
//	    Shaders:   shaders,
//	})
//	if err != nil {
//	    return err
//	}
//	defer res.Release()
//
// Timestamp queries are accepted but not recorded; SupportsTimestamps
// reports false.
package native
