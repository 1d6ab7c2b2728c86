// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/xrcomp/gpucore"
)

// The tests below never reach a vk* entry point: they exercise the
// registries and the unknown-handle paths, which run without a driver.

var (
	nullDevice vk.Device
	nullImage  vk.Image
	nullView   vk.ImageView
	nullCmd    vk.CommandBuffer
	nullBuffer vk.Buffer
	nullMemory vk.DeviceMemory
	nullPool   vk.DescriptorPool
)

func TestDevice_Register(t *testing.T) {
	d := NewDevice(nullDevice, true)

	img := d.RegisterImage(nullImage)
	view := d.RegisterImageView(nullView)
	cmd := d.RegisterCommandBuffer(nullCmd)

	seen := map[uint64]bool{}
	for _, id := range []uint64{uint64(img), uint64(view), uint64(cmd)} {
		if id == gpucore.InvalidID {
			t.Fatal("registered handle is InvalidID")
		}
		if seen[id] {
			t.Fatalf("handle %d issued twice", id)
		}
		seen[id] = true
	}

	if _, ok := d.CommandBuffer(cmd); !ok {
		t.Error("registered command buffer not found")
	}
	if _, ok := d.CommandBuffer(cmd + 100); ok {
		t.Error("unregistered command buffer found")
	}
}

func TestDevice_RegisterMappedBuffer(t *testing.T) {
	d := NewDevice(nullDevice, false)
	mapped := make([]byte, 224)

	b := d.RegisterMappedBuffer(nullBuffer, nullMemory, mapped, true)
	if !b.Valid() {
		t.Fatal("mapped buffer is not valid")
	}
	if len(b.Mapped) != len(mapped) {
		t.Errorf("Mapped has %d bytes, want %d", len(b.Mapped), len(mapped))
	}

	// Coherent memory needs no flush, so this must not call into Vulkan.
	d.FlushMappedBuffer(b)
	// Unknown buffers are ignored.
	d.FlushMappedBuffer(gpucore.MappedBuffer{Buffer: b.Buffer + 100})
}

func TestDevice_SupportsTimestamps(t *testing.T) {
	if !NewDevice(nullDevice, true).SupportsTimestamps() {
		t.Error("SupportsTimestamps = false, want true")
	}
	if NewDevice(nullDevice, false).SupportsTimestamps() {
		t.Error("SupportsTimestamps = true, want false")
	}
}

func TestDevice_UnknownHandles(t *testing.T) {
	d := NewDevice(nullDevice, true)
	pool := d.RegisterDescriptorPool(nullPool)

	if _, err := d.AllocateDescriptorSet(pool+100, 1); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("AllocateDescriptorSet(unknown pool) err = %v", err)
	}
	if _, err := d.AllocateDescriptorSet(pool, 12345); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("AllocateDescriptorSet(unknown layout) err = %v", err)
	}
	if err := d.ResetDescriptorPool(pool + 100); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("ResetDescriptorPool err = %v", err)
	}
	if err := d.ResetCommandPool(42); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("ResetCommandPool err = %v", err)
	}
	if err := d.BeginCommandBuffer(42, gpucore.CommandBufferUsageOneTimeSubmit); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("BeginCommandBuffer err = %v", err)
	}
	if err := d.EndCommandBuffer(42); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("EndCommandBuffer err = %v", err)
	}
}

func TestDevice_DeferredErrors(t *testing.T) {
	tests := []struct {
		name   string
		record func(d *Device)
	}{
		{"dispatch", func(d *Device) { d.CmdDispatch(42, 1, 1, 1) }},
		{"bind pipeline", func(d *Device) { d.CmdBindPipeline(42, 1) }},
		{"bind set", func(d *Device) { d.CmdBindDescriptorSet(42, 1, 1) }},
		{"barrier", func(d *Device) { d.CmdImageBarrier(42, gpucore.ImageBarrier{}) }},
		{"timestamp", func(d *Device) { d.CmdWriteTimestamp(42, gpucore.PipelineStageTopOfPipe, 1, 0) }},
		{"reset queries", func(d *Device) { d.CmdResetQueryPool(42, 1, 0, 2) }},
		{"descriptor write", func(d *Device) {
			d.UpdateDescriptorSets([]gpucore.DescriptorWrite{{
				Set:  42,
				Type: gpucore.DescriptorTypeStorageImage,
			}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDevice(nullDevice, true)
			tt.record(d)
			if !errors.Is(d.deferred, ErrUnknownHandle) {
				t.Errorf("deferred = %v, want ErrUnknownHandle", d.deferred)
			}
		})
	}
}

func TestDevice_DeferredKeepsFirst(t *testing.T) {
	d := NewDevice(nullDevice, true)
	first := errors.New("first")
	d.deferErr(first)
	d.deferErr(errors.New("second"))
	if d.deferred != first {
		t.Errorf("deferred = %v, want first", d.deferred)
	}
}
