// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package vulkan implements the compute compositor's gpucore.Device with
// raw Vulkan calls through github.com/goki/vulkan.
//
// The device does not create Vulkan objects. A compositor that already owns
// a VkDevice registers its images, views, samplers, uniform buffers,
// layouts, pipelines and pools and hands the returned handles to
// xrcomp.Resources:
//
//	dev := vulkan.NewDevice(vkDevice, timestampValidBits != 0)
//	res.Device = dev
//	res.Cmd = dev.RegisterCommandBuffer(cmd)
//	res.Distortion.UBO = dev.RegisterMappedBuffer(buf, mem,
//	    vulkan.MappedBytes(ptr, size), coherent)
//
// Every gpucore command maps to exactly one vkCmd* call. Commands without
// an error return that name an unregistered handle are skipped and the
// failure is returned by the next EndCommandBuffer.
//
// The device does not implement gpucore.Namer: naming objects needs
// VK_EXT_debug_utils, which is an instance extension the caller enables.
package vulkan
