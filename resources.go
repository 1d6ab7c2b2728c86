// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrcomp

import (
	"fmt"

	"github.com/gogpu/xrcomp/gpucore"
	"github.com/gogpu/xrcomp/xrmath"
)

// Capacity limits. Every per-frame array in the package has one of these as
// its fixed length.
const (
	// MaxViews is the largest number of views one multi-view pass covers.
	MaxViews = 2

	// MaxImages is the largest number of sources one layer pass samples.
	MaxImages = 16

	// MaxLayerRuns is the number of reusable layer descriptor sets a
	// Compute allocates.
	MaxLayerRuns = MaxViews

	// DistortionImagesPerView is the number of per-channel distortion
	// tables every view samples.
	DistortionImagesPerView = 3

	// MaxDistortionImages is the size of the distortion binding array.
	MaxDistortionImages = DistortionImagesPerView * MaxViews
)

// viewDepth is the Z size of every multi-view dispatch; the shader picks its
// view from the Z work-group index.
const viewDepth = 2

// queryCount is the number of timestamp slots of the query pool.
const queryCount = 2

// Bindings holds the binding numbers shared by every compute layout.
type Bindings struct {
	Src        uint32
	Distortion uint32
	Target     uint32
	UBO        uint32
}

// DefaultBindings returns the binding numbers the bundled shaders use.
func DefaultBindings() Bindings {
	return Bindings{Src: 0, Distortion: 1, Target: 2, UBO: 3}
}

// LayerResources are the objects used by the layer composition pass.
type LayerResources struct {
	DescriptorSetLayout gpucore.DescriptorSetLayout
	PipelineLayout      gpucore.PipelineLayout
	TimewarpPipeline    gpucore.Pipeline
	NonTimewarpPipeline gpucore.Pipeline

	// UBOs are the per-run layer uniform buffers, filled by the caller.
	UBOs [MaxLayerRuns]gpucore.MappedBuffer
}

// DistortionResources are shared by the projection, projection timewarp and
// clear passes.
type DistortionResources struct {
	DescriptorSetLayout gpucore.DescriptorSetLayout
	PipelineLayout      gpucore.PipelineLayout
	Pipeline            gpucore.Pipeline
	TimewarpPipeline    gpucore.Pipeline
	UBO                 gpucore.MappedBuffer
}

// ClearResources are the objects used by the clear pass. It records
// against the distortion pipeline layout.
type ClearResources struct {
	Pipeline gpucore.Pipeline
	UBO      gpucore.MappedBuffer
}

// Samplers holds the fixed samplers.
type Samplers struct {
	// ClampToEdge samples sources and distortion tables.
	ClampToEdge gpucore.Sampler

	// Mock samples the mock image in the clear pass.
	Mock gpucore.Sampler
}

// MockImage is the 1x1 color image bound by the clear pass.
type MockImage struct {
	Image gpucore.Image
	View  gpucore.ImageView
}

// DistortionImages are the device's static lens tables.
type DistortionImages struct {
	// Views holds DistortionImagesPerView entries per view, ordered
	// view-major: view i channel c is at i*DistortionImagesPerView + c.
	Views [MaxDistortionImages]gpucore.ImageView

	// UVToTanAngle is the per-view pre-transform written to the uniform
	// buffer.
	UVToTanAngle [MaxViews]xrmath.NormalizedRect
}

// Resources is the set of provisioned GPU objects the passes record
// against. It is owned by the frame driver and borrowed by a Compute
// between Init and Fini.
type Resources struct {
	// Device records every command.
	Device gpucore.Device

	// ViewCount is the number of views, 1 to MaxViews.
	ViewCount uint32

	CommandPool gpucore.CommandPool
	Cmd         gpucore.CommandBuffer

	// QueryPool has two timestamp slots: frame start and frame end.
	QueryPool gpucore.QueryPool

	// DescriptorPool is reset as a whole by Compute.Fini and must not be
	// shared with unrelated consumers.
	DescriptorPool gpucore.DescriptorPool

	Bindings   Bindings
	Layer      LayerResources
	Distortion DistortionResources
	Clear      ClearResources
	Samplers   Samplers
	Mock       MockImage
	Lens       DistortionImages
}

// Validate checks that every handle a pass records against is set.
func (r *Resources) Validate() error {
	if r.Device == nil {
		return ErrNilDevice
	}
	if r.ViewCount == 0 || r.ViewCount > MaxViews {
		return fmt.Errorf("%w: %d (max %d)", ErrInvalidViewCount, r.ViewCount, MaxViews)
	}

	handles := []struct {
		name string
		id   uint64
	}{
		{"command pool", uint64(r.CommandPool)},
		{"command buffer", uint64(r.Cmd)},
		{"query pool", uint64(r.QueryPool)},
		{"descriptor pool", uint64(r.DescriptorPool)},
		{"layer set layout", uint64(r.Layer.DescriptorSetLayout)},
		{"layer pipeline layout", uint64(r.Layer.PipelineLayout)},
		{"layer timewarp pipeline", uint64(r.Layer.TimewarpPipeline)},
		{"layer pipeline", uint64(r.Layer.NonTimewarpPipeline)},
		{"distortion set layout", uint64(r.Distortion.DescriptorSetLayout)},
		{"distortion pipeline layout", uint64(r.Distortion.PipelineLayout)},
		{"distortion pipeline", uint64(r.Distortion.Pipeline)},
		{"distortion timewarp pipeline", uint64(r.Distortion.TimewarpPipeline)},
		{"clear pipeline", uint64(r.Clear.Pipeline)},
		{"clamp-to-edge sampler", uint64(r.Samplers.ClampToEdge)},
		{"mock sampler", uint64(r.Samplers.Mock)},
		{"mock image", uint64(r.Mock.Image)},
		{"mock image view", uint64(r.Mock.View)},
	}
	for _, h := range handles {
		if h.id == gpucore.InvalidID {
			return fmt.Errorf("%w: %s", ErrMissingHandle, h.name)
		}
	}

	for i := uint32(0); i < DistortionImagesPerView*r.ViewCount; i++ {
		if r.Lens.Views[i] == gpucore.InvalidID {
			return fmt.Errorf("%w: distortion image %d", ErrMissingHandle, i)
		}
	}

	if err := checkUBO("distortion", r.Distortion.UBO); err != nil {
		return err
	}
	return checkUBO("clear", r.Clear.UBO)
}

func checkUBO(name string, b gpucore.MappedBuffer) error {
	if !b.Valid() {
		return fmt.Errorf("%w: %s uniform buffer", ErrMissingHandle, name)
	}
	if len(b.Mapped) < DistortionUBOSize {
		return fmt.Errorf("%w: %s has %d bytes, need %d", ErrUBOTooSmall, name, len(b.Mapped), DistortionUBOSize)
	}
	return nil
}
