// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

// WorkgroupSize is the edge of the square pixel tile one compute work-group
// covers. Every compute shader bound by the passes declares
// @workgroup_size(8, 8, 1).
const WorkgroupSize = 8

// Viewport is one view's region within the target image, in pixels.
type Viewport struct {
	X, Y uint32
	W, H uint32
}

// divideRoundUp returns ceil(a/b) without overflowing near math.MaxUint32.
func divideRoundUp(a, b uint32) uint32 {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// CalcDispatchDims returns the work-group grid covering a single viewport.
// The caller guarantees a non-empty viewport.
func CalcDispatchDims(v Viewport) (x, y uint32) {
	return divideRoundUp(v.W, WorkgroupSize), divideRoundUp(v.H, WorkgroupSize)
}

// CalcDispatchDimsViews returns the work-group grid covering the largest of
// the first count views. One dispatch handles every view through its Z
// dimension, so the grid has to fit the widest and the tallest view.
func CalcDispatchDimsViews(views []Viewport, count uint32) (x, y uint32) {
	var w, h uint32
	for i := uint32(0); i < count; i++ {
		w = max(w, views[i].W)
		h = max(h, views[i].H)
	}
	return CalcDispatchDims(Viewport{W: w, H: h})
}

// mustGrid panics on an empty grid. A zero dimension means a degenerate
// viewport reached a pass, which is a caller bug.
func mustGrid(mode PassMode, x, y uint32) {
	if x == 0 || y == 0 {
		panic("xrcomp: " + mode.String() + ": zero sized dispatch grid")
	}
}
