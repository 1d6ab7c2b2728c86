// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore provides the GPU abstraction consumed by the xrcomp
// compute compositor.
//
// This package defines the [Device] interface, a command-recording surface
// shaped after explicit graphics APIs (descriptor pools, one-shot command
// buffers, timestamp query pools, image layout barriers). The same compute
// passes can then be recorded against:
//   - gogpu/wgpu (Pure Go WebGPU via HAL), see backend/native
//   - Vulkan through goki/vulkan, see backend/vulkan
//
// # Architecture
//
//	               +-----------------+
//	               |     xrcomp      |
//	               | (Compute passes)|
//	               +--------+--------+
//	                        |
//	                 gpucore.Device
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  native device  |          |  vulkan device  |
//	|  (hal.Device)   |          |  (vk.Device)    |
//	+--------+--------+          +--------+--------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|   gogpu/wgpu    |          |  goki/vulkan    |
//	|   (Pure Go)     |          |     (cgo)       |
//	+-----------------+          +-----------------+
//
// # Resource Handles
//
// GPU objects are referenced via opaque IDs ([Image], [DescriptorSet], etc.).
// Each device implementation keeps the mapping between IDs and the actual
// backend objects. [InvalidID] is the null sentinel for every handle type.
//
// # Recording Model
//
// Recording calls (the Cmd* methods and UpdateDescriptorSets) do not return
// errors. Failures surface from the pool resets, BeginCommandBuffer,
// EndCommandBuffer and AllocateDescriptorSet, which the caller checks once
// per frame.
package gpucore
