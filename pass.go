// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/xrcomp/gpucore"
)

// PassMode identifies one of the compute passes.
type PassMode uint8

// Pass modes.
const (
	// PassLayerCompose blends layers into the target, one set per run.
	PassLayerCompose PassMode = iota

	// PassProjection distorts the projection views into the target.
	PassProjection

	// PassProjectionTimewarp distorts and reprojects the projection views.
	PassProjectionTimewarp

	// PassClear fills the target from the mock image.
	PassClear
)

// String returns the string representation of PassMode.
func (m PassMode) String() string {
	switch m {
	case PassLayerCompose:
		return "LayerCompose"
	case PassProjection:
		return "Projection"
	case PassProjectionTimewarp:
		return "ProjectionTimewarp"
	case PassClear:
		return "Clear"
	default:
		return fmt.Sprintf("PassMode(%d)", uint8(m))
	}
}

// passRecipe is what varies between passes. record turns it into the fixed
// command sequence: optional target transition to General, pipeline and
// set bind, dispatch, optional target transition to PresentSrc.
type passRecipe struct {
	mode     PassMode
	pipeline gpucore.Pipeline
	layout   gpucore.PipelineLayout
	set      gpucore.DescriptorSet

	// target is transitioned around the dispatch. InvalidID skips both
	// barriers.
	target gpucore.Image

	gridX, gridY, depth uint32
}

// Barriers around a multi-view dispatch. The target's previous contents are
// discarded; the whole image is rewritten.
func preDispatchBarrier(target gpucore.Image) gpucore.ImageBarrier {
	return gpucore.ImageBarrier{
		Image:     target,
		SrcStage:  gpucore.PipelineStageAllCommands,
		DstStage:  gpucore.PipelineStageAllCommands,
		SrcAccess: gpucore.AccessNone,
		DstAccess: gpucore.AccessShaderWrite,
		OldLayout: gpucore.ImageLayoutUndefined,
		NewLayout: gpucore.ImageLayoutGeneral,
		Range:     gpucore.FullColorRange(),
	}
}

func postDispatchBarrier(target gpucore.Image) gpucore.ImageBarrier {
	return gpucore.ImageBarrier{
		Image:     target,
		SrcStage:  gpucore.PipelineStageComputeShader,
		DstStage:  gpucore.PipelineStageTopOfPipe,
		SrcAccess: gpucore.AccessShaderWrite,
		DstAccess: gpucore.AccessMemoryRead,
		OldLayout: gpucore.ImageLayoutGeneral,
		NewLayout: gpucore.ImageLayoutPresentSrc,
		Range:     gpucore.FullColorRange(),
	}
}

// record emits the recipe into the open command buffer.
func (c *Compute) record(p *passRecipe) {
	mustGrid(p.mode, p.gridX, p.gridY)

	dev := c.r.Device
	cmd := c.r.Cmd

	if p.target != gpucore.InvalidID {
		dev.CmdImageBarrier(cmd, preDispatchBarrier(p.target))
	}

	dev.CmdBindPipeline(cmd, p.pipeline)
	dev.CmdBindDescriptorSet(cmd, p.layout, p.set)
	dev.CmdDispatch(cmd, p.gridX, p.gridY, p.depth)

	if p.target != gpucore.InvalidID {
		dev.CmdImageBarrier(cmd, postDispatchBarrier(p.target))
	}

	if debugEnabled() {
		slogger().Debug("xrcomp: pass recorded",
			slog.String("mode", p.mode.String()),
			slog.Uint64("x", uint64(p.gridX)),
			slog.Uint64("y", uint64(p.gridY)),
			slog.Uint64("z", uint64(p.depth)),
		)
	}
}
