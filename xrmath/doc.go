// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package xrmath provides the pose and field-of-view math used by the
// compute compositor: timewarp reprojection matrices and the lens UV to
// tangent-length transform.
//
// Matrices use github.com/go-gl/mathgl and are column major, matching the
// std140 layout the compute shaders read.
package xrmath
