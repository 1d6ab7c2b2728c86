// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package xrcomp records the compute passes of an XR compositor: lens
// distortion correction, timewarp reprojection, layer composition and a
// debug clear, written into the frame's target image.
//
// # Overview
//
// xrcomp does not create GPU objects. Pipelines, layouts, pools, samplers,
// the mapped uniform buffers and the command buffer are provisioned by the
// caller (see backend/native.NewResources) and handed over as a
// [Resources]. A [Compute] borrows them between Init and Fini and records
// through the [gpucore.Device] interface, so the same passes run on the
// gogpu/wgpu HAL backend and on Vulkan.
//
// # Quick Start
//
//	c := xrcomp.NewCompute()
//	if err := c.Init(res); err != nil {
//	    return err
//	}
//	defer c.Fini()
//
//	// Per frame:
//	if err := c.Begin(); err != nil {
//	    return err // abandon the frame
//	}
//	c.ProjectionTimewarp(views, target)
//	if err := c.End(); err != nil {
//	    return err
//	}
//	// submit res.Cmd
//
// # Passes
//
// Every pass follows the same sequence: write the uniform data, update the
// descriptor set, transition the target to General, bind, dispatch, then
// transition the target to PresentSrc. The multi-view passes dispatch a
// grid of 8x8 work-groups sized for the largest view with a Z depth of 2,
// one slice per eye. Layers dispatches a single view with depth 1 and
// records no barriers.
//
// # Errors
//
// Begin, End and Init return errors from the device; the caller abandons
// the frame. Misuse (passes before Init or after Fini, double Init, view
// count mismatches, empty viewports) panics.
//
// # Logging
//
// xrcomp is silent by default. Use [SetLogger] to route diagnostics to a
// [log/slog] logger.
package xrcomp
