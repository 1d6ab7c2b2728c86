// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// mockGPUDevice implements gpucontext.Device for testing.
type mockGPUDevice struct{}

func (m *mockGPUDevice) Poll(wait bool) {}
func (m *mockGPUDevice) Destroy()       {}

// mockQueue implements gpucontext.Queue for testing.
type mockQueue struct{}

// mockAdapter implements gpucontext.Adapter for testing.
type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider without HAL access.
type mockProvider struct{}

func (m *mockProvider) Device() gpucontext.Device             { return &mockGPUDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

// mockHALProvider additionally exposes HAL objects.
type mockHALProvider struct {
	mockProvider
	device any
	queue  any
}

func (m *mockHALProvider) HalDevice() any { return m.device }
func (m *mockHALProvider) HalQueue() any  { return m.queue }

func TestNewDeviceFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
		wantErr  error
	}{
		{"nil", nil, ErrNilProvider},
		{"no HAL", &mockProvider{}, ErrNoHAL},
		{"wrong device type", &mockHALProvider{device: "device", queue: queue}, ErrNoHAL},
		{"wrong queue type", &mockHALProvider{device: device, queue: 42}, ErrNoHAL},
		{"valid", &mockHALProvider{device: device, queue: queue}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDeviceFromProvider(tt.provider)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDeviceFromProvider: %v", err)
			}
			if got, _ := d.HAL(); got != device {
				t.Error("device does not wrap the provider's HAL device")
			}
		})
	}
}
