// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command xrcdemo drives the XR compute compositor headlessly on the noop
// HAL device.
//
// It provisions every resource the compositor records against, then runs
// the frame loop Begin, pass, End, Submit for the selected mode:
//
//	xrcdemo -mode timewarp -frames 120 -width 2048 -height 1024 -v
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/xrcomp"
	"github.com/gogpu/xrcomp/backend/native"
	"github.com/gogpu/xrcomp/distortion"
	"github.com/gogpu/xrcomp/xrmath"
)

func main() {
	var (
		frames  = flag.Int("frames", 60, "number of frames to record and submit")
		width   = flag.Uint("width", 1024, "target width, split evenly between views")
		height  = flag.Uint("height", 512, "target height")
		views   = flag.Uint("views", 2, "number of views (1 or 2)")
		mode    = flag.String("mode", "timewarp", "pass to run: projection, timewarp, clear or layers")
		k1      = flag.Float64("k1", 0.22, "radial lens distortion coefficient")
		lensPNG = flag.String("lens-png", "", "write a preview of the lens tables to this file")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		xrcomp.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := config{
		frames: *frames,
		width:  uint32(*width),
		height: uint32(*height),
		views:  uint32(*views),
		mode:   *mode,
		lens:   lensModel(float32(*k1)),
	}
	if err := run(cfg); err != nil {
		log.Fatalf("xrcdemo: %v", err)
	}

	if *lensPNG != "" {
		if err := writeLensPNG(*lensPNG, cfg.lens, native.DefaultDistortionSize, 512); err != nil {
			log.Fatalf("xrcdemo: %v", err)
		}
		log.Printf("Lens preview saved to %s\n", *lensPNG)
	}
}

type config struct {
	frames        int
	width, height uint32
	views         uint32
	mode          string
	lens          distortion.Model
}

func (c config) validate() error {
	if c.views < 1 || c.views > xrcomp.MaxViews {
		return fmt.Errorf("-views must be 1 to %d, got %d", xrcomp.MaxViews, c.views)
	}
	if c.width < c.views || c.height == 0 {
		return fmt.Errorf("target %dx%d too small for %d views", c.width, c.height, c.views)
	}
	if c.frames < 1 {
		return fmt.Errorf("-frames must be positive, got %d", c.frames)
	}
	if _, ok := passes[c.mode]; !ok {
		return fmt.Errorf("unknown -mode %q", c.mode)
	}
	return nil
}

// viewports splits the target into side-by-side views.
func (c config) viewports() []xrcomp.Viewport {
	w := c.width / c.views
	vps := make([]xrcomp.Viewport, c.views)
	for i := range vps {
		vps[i] = xrcomp.Viewport{X: uint32(i) * w, Y: 0, W: w, H: c.height}
	}
	return vps
}

// lensModels applies the configured lens to every view.
func (c config) lensModels() []distortion.Model {
	models := make([]distortion.Model, c.views)
	for i := range models {
		models[i] = c.lens
	}
	return models
}

// openNoopDevice opens the first adapter of the noop HAL backend.
func openNoopDevice() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("open adapter: %w", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup, nil
}

func run(cfg config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	halDevice, halQueue, cleanup, err := openNoopDevice()
	if err != nil {
		return err
	}
	defer cleanup()

	dev := native.NewDevice(halDevice, halQueue)
	defer dev.Close()

	shaders, err := shaderSources(cfg.views)
	if err != nil {
		return err
	}
	if shaders, err = compileShaders(shaders); err != nil {
		return err
	}

	res, err := native.NewResources(dev, &native.ResourcesDescriptor{
		Label:        "xrcdemo",
		ViewCount:    cfg.views,
		Shaders:      shaders,
		LayerUBOSize: layerUBOSize,
		Lens:         cfg.lensModels(),
	})
	if err != nil {
		return err
	}
	defer res.Release()

	target, err := res.CreateTarget("xrcdemo_target", cfg.width, cfg.height)
	if err != nil {
		return err
	}

	c := xrcomp.NewCompute(xrcomp.WithDebugNames(true))
	if err := c.Init(res.Compute()); err != nil {
		return err
	}
	defer c.Fini()

	s := &scene{cfg: cfg, res: res, dev: dev, c: c, target: target, viewports: cfg.viewports()}
	record := passes[cfg.mode]

	start := time.Now()
	for frame := 0; frame < cfg.frames; frame++ {
		if err := c.Begin(); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		record(s, frame)
		if err := c.End(); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		if err := dev.Submit(res.Cmd); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
	}
	elapsed := time.Since(start)

	log.Printf("%s: %d frames, %d views, %dx%d target in %v (%v/frame)\n",
		cfg.mode, cfg.frames, cfg.views, cfg.width, cfg.height,
		elapsed.Round(time.Microsecond), (elapsed / time.Duration(cfg.frames)).Round(time.Microsecond))
	return nil
}

// scene is the per-session state the pass functions record from.
type scene struct {
	cfg       config
	res       *native.Resources
	dev       *native.Device
	c         *xrcomp.Compute
	target    xrcomp.Target
	viewports []xrcomp.Viewport
}

// passes maps a -mode value to the recording of one frame.
var passes = map[string]func(s *scene, frame int){
	"projection": func(s *scene, frame int) {
		s.c.Projection(s.projectionViews(frame), s.target)
	},
	"timewarp": func(s *scene, frame int) {
		s.c.ProjectionTimewarp(s.projectionViews(frame), s.target)
	},
	"clear": func(s *scene, _ int) {
		s.c.Clear(s.viewports, s.target)
	},
	"layers": func(s *scene, frame int) {
		s.layers(frame)
	},
}

// headPose is a slow yaw sweep; the predicted pose runs ahead of the
// rendered one.
func headPose(frame float64) xrmath.Pose {
	angle := float32(0.25 * math.Sin(frame/30))
	q := mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})
	return xrmath.Pose{Orientation: xrmath.Quat{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}}
}

func (s *scene) projectionViews(frame int) []xrcomp.ProjectionView {
	views := make([]xrcomp.ProjectionView, s.cfg.views)
	for i := range views {
		views[i] = xrcomp.ProjectionView{
			Viewport: s.viewports[i],
			Sampler:  s.res.Samplers.ClampToEdge,
			Source:   s.res.Mock.View,
			NormRect: xrmath.FullRect(),
			SrcPose:  headPose(float64(frame)),
			SrcFov:   native.DefaultFov(),
			NewPose:  headPose(float64(frame) + 0.5),
		}
	}
	return views
}

// layers composes one quad layer per view, each in its own layer run.
func (s *scene) layers(frame int) {
	sources := []xrcomp.LayerSource{
		{Sampler: s.res.Samplers.ClampToEdge, View: s.res.Mock.View},
	}
	warp := xrmath.CalcTimeWarpMatrix(headPose(float64(frame)), native.DefaultFov(), headPose(float64(frame)+0.5))

	for i, vp := range s.viewports {
		ubo := s.res.Layer.UBOs[i]
		writeLayerUBO(ubo.Mapped, vp, xrmath.FullRect(), warp)
		s.dev.FlushMappedBuffer(ubo)

		// Alternate the two layer pipelines.
		timewarp := frame%2 == 1
		s.c.Layers(s.c.LayerDescriptorSet(i), ubo.Buffer, sources, s.target.View, vp, timewarp)
	}
}
