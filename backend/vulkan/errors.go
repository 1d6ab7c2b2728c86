// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import "errors"

// Sentinel errors for the Vulkan backend.
var (
	// ErrUnknownHandle is returned when a gpucore handle was never
	// registered with the device.
	ErrUnknownHandle = errors.New("vulkan: unknown handle")

	// ErrUnsupported is returned for descriptor types Vulkan has no
	// equivalent for.
	ErrUnsupported = errors.New("vulkan: unsupported descriptor type")
)
