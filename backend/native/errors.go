// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

// Package errors for the HAL backend.
var (
	// ErrUnknownHandle is returned when a gpucore handle was never
	// registered with the device or has been released.
	ErrUnknownHandle = errors.New("native: unknown handle")

	// ErrPoolExhausted is returned when a descriptor pool has no free sets.
	ErrPoolExhausted = errors.New("native: descriptor pool exhausted")

	// ErrIncompleteSet is returned when a descriptor set is bound before
	// every binding of its layout was written.
	ErrIncompleteSet = errors.New("native: descriptor set has unwritten bindings")

	// ErrNotRecording is returned when a command is recorded into a command
	// buffer that is not between Begin and End.
	ErrNotRecording = errors.New("native: command buffer not recording")

	// ErrAlreadyRecording is returned by BeginCommandBuffer on a command
	// buffer that is still open.
	ErrAlreadyRecording = errors.New("native: command buffer already recording")

	// ErrNotExecutable is returned by Submit for a command buffer that has
	// not been ended since its last reset.
	ErrNotExecutable = errors.New("native: command buffer not executable")

	// ErrNilProvider is returned when a nil provider is passed.
	ErrNilProvider = errors.New("native: nil device provider")

	// ErrNoHAL is returned when a provider does not expose HAL types.
	ErrNoHAL = errors.New("native: provider does not expose HAL device and queue")

	// ErrInvalidDescriptor is returned when a ResourcesDescriptor is
	// missing a required field.
	ErrInvalidDescriptor = errors.New("native: invalid resources descriptor")

	// ErrGPUTimeout is returned when a submission does not complete in time.
	ErrGPUTimeout = errors.New("native: GPU timeout")
)
