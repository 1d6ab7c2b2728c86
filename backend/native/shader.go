// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/naga"
)

// DefaultEntryPoint is the compute entry point used when a ShaderSource
// names none.
const DefaultEntryPoint = "main"

// ShaderSource is a compute shader given as WGSL or as SPIR-V. SPIR-V wins
// when both are set.
type ShaderSource struct {
	WGSL       string
	SPIRV      []uint32
	EntryPoint string
}

// Shaders holds the five compute shaders of the compositor. Their bindings
// follow Slot and SamplerSlot for the binding numbers of
// xrcomp.DefaultBindings.
type Shaders struct {
	Layer              ShaderSource
	LayerTimewarp      ShaderSource
	Distortion         ShaderSource
	DistortionTimewarp ShaderSource
	Clear              ShaderSource
}

// spirv returns the SPIR-V words of s, compiling WGSL with naga if needed.
func (s ShaderSource) spirv() ([]uint32, error) {
	if len(s.SPIRV) > 0 {
		return s.SPIRV, nil
	}
	if s.WGSL == "" {
		return nil, fmt.Errorf("empty shader source")
	}
	return CompileWGSL(s.WGSL)
}

func (s ShaderSource) entryPoint() string {
	if s.EntryPoint == "" {
		return DefaultEntryPoint
	}
	return s.EntryPoint
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V size %d is not a multiple of 4", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
