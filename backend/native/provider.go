// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is implemented by providers that expose their HAL objects,
// such as the gogpu application device.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewDeviceFromProvider creates a Device sharing the GPU device of an
// external provider. The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue; it keeps ownership of
// both.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return NewDevice(device, queue), nil
}
