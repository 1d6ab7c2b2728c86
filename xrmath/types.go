// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrmath

import "github.com/go-gl/mathgl/mgl64"

// Vec3 is a 3D vector in meters.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a unit quaternion orientation.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat returns the quaternion with no rotation.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// quat64 converts q to a mathgl double precision quaternion.
func (q Quat) quat64() mgl64.Quat {
	return mgl64.Quat{
		W: float64(q.W),
		V: mgl64.Vec3{float64(q.X), float64(q.Y), float64(q.Z)},
	}
}

// Pose is a position and orientation in a tracking space.
type Pose struct {
	Orientation Quat
	Position    Vec3
}

// IdentityPose returns the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: IdentityQuat()}
}

// Fov describes a view frustum by its four half angles in radians.
// Left and Down are usually negative.
type Fov struct {
	AngleLeft  float32
	AngleRight float32
	AngleUp    float32
	AngleDown  float32
}

// NormalizedRect is a rectangle in normalized (or tangent) coordinates.
type NormalizedRect struct {
	X, Y, W, H float32
}

// FullRect covers the whole [0,1]x[0,1] range.
func FullRect() NormalizedRect {
	return NormalizedRect{W: 1, H: 1}
}
