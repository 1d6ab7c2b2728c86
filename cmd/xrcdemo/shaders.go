// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/xrcomp/backend/native"
)

// Shader sources. The projection and clear shaders are assembled from the
// shared uniform block, the per-view-count binding declarations and the
// entry point.
var (
	//go:embed shaders/distortion_params.wgsl
	distortionParamsWGSL string

	//go:embed shaders/views1.wgsl
	views1WGSL string

	//go:embed shaders/views2.wgsl
	views2WGSL string

	//go:embed shaders/distortion.wgsl
	distortionWGSL string

	//go:embed shaders/distortion_timewarp.wgsl
	distortionTimewarpWGSL string

	//go:embed shaders/clear.wgsl
	clearWGSL string

	//go:embed shaders/layer_params.wgsl
	layerParamsWGSL string

	//go:embed shaders/layer.wgsl
	layerWGSL string

	//go:embed shaders/layer_timewarp.wgsl
	layerTimewarpWGSL string
)

// viewBindings returns the source and distortion declarations for
// viewCount views.
func viewBindings(viewCount uint32) (string, error) {
	switch viewCount {
	case 1:
		return views1WGSL, nil
	case 2:
		return views2WGSL, nil
	default:
		return "", fmt.Errorf("no shaders for %d views", viewCount)
	}
}

// shaderSources assembles the WGSL of the five compute shaders.
func shaderSources(viewCount uint32) (native.Shaders, error) {
	views, err := viewBindings(viewCount)
	if err != nil {
		return native.Shaders{}, err
	}
	shared := distortionParamsWGSL + "\n" + views + "\n"
	layer := layerParamsWGSL + "\n"

	return native.Shaders{
		Layer:              native.ShaderSource{WGSL: layer + layerWGSL},
		LayerTimewarp:      native.ShaderSource{WGSL: layer + layerTimewarpWGSL},
		Distortion:         native.ShaderSource{WGSL: shared + distortionWGSL},
		DistortionTimewarp: native.ShaderSource{WGSL: shared + distortionTimewarpWGSL},
		Clear:              native.ShaderSource{WGSL: shared + clearWGSL},
	}, nil
}

// compileShaders compiles every shader to SPIR-V up front so a WGSL error
// names the shader it is in.
func compileShaders(s native.Shaders) (native.Shaders, error) {
	srcs := []struct {
		name string
		src  *native.ShaderSource
	}{
		{"layer", &s.Layer},
		{"layer_timewarp", &s.LayerTimewarp},
		{"distortion", &s.Distortion},
		{"distortion_timewarp", &s.DistortionTimewarp},
		{"clear", &s.Clear},
	}
	for _, e := range srcs {
		words, err := native.CompileWGSL(e.src.WGSL)
		if err != nil {
			return native.Shaders{}, fmt.Errorf("%s shader: %w", e.name, err)
		}
		e.src.SPIRV = words
	}
	return s, nil
}
