// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import "errors"

// Errors returned by Resources.Validate and Compute.Init.
var (
	// ErrNilDevice is returned when Resources has no device.
	ErrNilDevice = errors.New("xrcomp: resources have no device")

	// ErrInvalidViewCount is returned for a view count outside 1..MaxViews.
	ErrInvalidViewCount = errors.New("xrcomp: invalid view count")

	// ErrMissingHandle is returned when a required handle is InvalidID.
	ErrMissingHandle = errors.New("xrcomp: missing handle")

	// ErrUBOTooSmall is returned when a mapped uniform buffer cannot hold
	// the distortion uniform block.
	ErrUBOTooSmall = errors.New("xrcomp: uniform buffer too small")
)

// Errors returned by the recording calls.
var (
	// ErrBegin wraps failures to open the frame recording.
	ErrBegin = errors.New("xrcomp: begin recording")

	// ErrEnd wraps failures to close the frame recording.
	ErrEnd = errors.New("xrcomp: end recording")

	// ErrAllocate wraps descriptor set allocation failures.
	ErrAllocate = errors.New("xrcomp: allocate descriptor set")
)
