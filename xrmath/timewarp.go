// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// projectionNear is the near plane of the infinite projection used to
// reproject source views.
const projectionNear = 0.5

// Identity returns the 4x4 identity matrix.
func Identity() mgl32.Mat4 {
	return mgl32.Ident4()
}

// CalcProjection returns an infinite projection matrix for a possibly
// asymmetric field of view. The depth terms are the forward GL-style ones
// (a33 = -1, a43 = -2*near); only the x/y rows matter for reprojection.
func CalcProjection(fov Fov) mgl32.Mat4 {
	return toMat32(calcProjection64(fov))
}

func calcProjection64(fov Fov) mgl64.Mat4 {
	tanLeft := math.Tan(float64(fov.AngleLeft))
	tanRight := math.Tan(float64(fov.AngleRight))
	tanDown := math.Tan(float64(fov.AngleDown))
	tanUp := math.Tan(float64(fov.AngleUp))

	tanWidth := tanRight - tanLeft
	tanHeight := tanUp - tanDown

	a11 := 2 / tanWidth
	a22 := 2 / tanHeight
	a31 := (tanRight + tanLeft) / tanWidth
	a32 := (tanUp + tanDown) / tanHeight
	a33 := -1.0
	a43 := -2 * projectionNear

	// Column major.
	return mgl64.Mat4{
		a11, 0, 0, 0,
		0, a22, 0, 0,
		a31, a32, a33, -1,
		0, 0, a43, 0,
	}
}

// CalcTimeWarpMatrix returns the matrix that maps a direction seen from
// newPose into clip space of the source view rendered at srcPose with srcFov.
//
// Only the orientations take part; positional reprojection is not done.
// The math is carried out in float64 and converted at the end.
func CalcTimeWarpMatrix(srcPose Pose, srcFov Fov, newPose Pose) mgl32.Mat4 {
	srcProj := calcProjection64(srcFov)

	// Model matrices, that is inverted view matrices.
	srcRotInv := srcPose.Orientation.quat64().Mat4()
	newRotInv := newPose.Orientation.quat64().Mat4()

	newRot := newRotInv.Inv()
	deltaRot := newRot.Mul4(srcRotInv)

	return toMat32(srcProj.Mul4(deltaRot.Inv()))
}

// CalcUVToTangentLengthsRect returns the transform from [0,1] view UVs to
// tangent-space lengths for fov. Y grows downwards in the result.
func CalcUVToTangentLengthsRect(fov Fov) NormalizedRect {
	tanLeft := math.Tan(float64(fov.AngleLeft))
	tanRight := math.Tan(float64(fov.AngleRight))
	tanDown := math.Tan(float64(fov.AngleDown))
	tanUp := math.Tan(float64(fov.AngleUp))

	tanWidth := tanRight - tanLeft
	tanHeight := tanUp - tanDown

	return NormalizedRect{
		X: float32(((tanRight + tanLeft) - tanWidth) / 2),
		Y: float32((-(tanUp + tanDown) - tanHeight) / 2),
		W: float32(tanWidth),
		H: float32(tanHeight),
	}
}

func toMat32(m mgl64.Mat4) mgl32.Mat4 {
	var out mgl32.Mat4
	for i := range m {
		out[i] = float32(m[i])
	}
	return out
}
