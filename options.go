// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/xrcomp/xrmath"
)

// TimeWarpFunc computes the reprojection matrix for a view rendered at
// srcPose with srcFov and displayed at newPose.
type TimeWarpFunc func(srcPose xrmath.Pose, srcFov xrmath.Fov, newPose xrmath.Pose) mgl32.Mat4

// ComputeOption configures a Compute during creation.
// Use functional options to customize Compute behavior.
//
// Example:
//
//	// Default timewarp math from xrmath
//	c := xrcomp.NewCompute()
//
//	// Name descriptor sets for debugging tools
//	c := xrcomp.NewCompute(xrcomp.WithDebugNames(true))
type ComputeOption func(*computeOptions)

// computeOptions holds optional configuration for Compute creation.
type computeOptions struct {
	timeWarp   TimeWarpFunc
	debugNames bool
}

// defaultOptions returns the default compute options.
func defaultOptions() computeOptions {
	return computeOptions{
		timeWarp: xrmath.CalcTimeWarpMatrix,
	}
}

// WithTimeWarpFunc replaces the timewarp matrix routine used by
// ProjectionTimewarp. A nil f keeps the default xrmath.CalcTimeWarpMatrix.
func WithTimeWarpFunc(f TimeWarpFunc) ComputeOption {
	return func(o *computeOptions) {
		if f != nil {
			o.timeWarp = f
		}
	}
}

// WithDebugNames attaches debug names to the descriptor sets allocated by
// Init when the device implements gpucore.Namer.
func WithDebugNames(enabled bool) ComputeOption {
	return func(o *computeOptions) {
		o.debugNames = enabled
	}
}
