// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/gralloc"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// init registers the software backend on package import.
func init() {
	gralloc.RegisterBackend(gralloc.BackendSoftware, func() gralloc.Backend {
		return Default()
	})
}

var (
	defaultOnce    sync.Once
	defaultBackend *Backend
)

// Default returns the process-wide software backend. Every registry lookup
// of "software" yields this instance, so handles allocated through it can
// be imported by any mapper in the process.
func Default() *Backend {
	defaultOnce.Do(func() {
		defaultBackend = New(NewArena())
	})
	return defaultBackend
}

// Backend keeps buffers in an Arena. It needs no OS support and is always
// available.
type Backend struct {
	arena  *Arena
	caps   gralloc.Capabilities
	device hal.Device
}

var _ gralloc.Backend = (*Backend)(nil)

// New creates a backend over arena. Limits and format support are taken
// from the noop GPU adapter, whose device also serves as the fence waiter
// returned by Device.
func New(arena *Arena) *Backend {
	b := &Backend{arena: arena}

	exposed, device, err := openAdapter()
	if err != nil {
		gralloc.Logger().Warn("software: no GPU adapter, using default limits", "err", err)
		b.caps = gralloc.CapabilitiesFromLimits(gputypes.DefaultLimits())
	} else {
		b.caps = gralloc.CapabilitiesFromLimits(exposed.Capabilities.Limits)
		b.caps.Prober = exposed.Adapter
		b.device = device
	}
	b.caps.Formats = gralloc.AllPixelFormats()
	b.caps.Usage = gralloc.UsageAll
	b.caps.HandleFDs = 1
	return b
}

func openAdapter() (hal.ExposedAdapter, hal.Device, error) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return hal.ExposedAdapter{}, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return hal.ExposedAdapter{}, nil, fmt.Errorf("no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, adapters[0].Capabilities.Limits)
	if err != nil {
		return hal.ExposedAdapter{}, nil, fmt.Errorf("open adapter: %w", err)
	}
	return adapters[0], open.Device, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return gralloc.BackendSoftware }

// Capabilities describes what the arena can hold.
func (b *Backend) Capabilities() gralloc.Capabilities { return b.caps }

// Arena returns the backing arena.
func (b *Backend) Arena() *Arena { return b.arena }

// Device returns a device that can wait on fences, or nil if none could be
// opened. Pass it to gralloc.WithFenceWaiter.
func (b *Backend) Device() hal.Device { return b.device }

// Allocate creates a zeroed buffer for d and returns its raw handle. The
// caller owns the handle's slot and must Release it once every consumer has
// imported the buffer.
func (b *Backend) Allocate(d gralloc.BufferDescriptor) (gralloc.RawHandle, error) {
	info, err := gralloc.DecodeDescriptor(d)
	if err != nil {
		return gralloc.RawHandle{}, err
	}
	if err := b.caps.Check(info); err != nil {
		return gralloc.RawHandle{}, err
	}
	stride := gralloc.AllocationStride(info)
	size, err := gralloc.MinimumSize(info, stride)
	if err != nil {
		return gralloc.RawHandle{}, err
	}
	slot := b.arena.open(make([]byte, size))
	gralloc.Logger().Debug("software: allocated buffer", "slot", slot, "size", size, "format", info.Format)
	return gralloc.NewRawHandle([]int{slot}, gralloc.BufferMetadata{Info: info, Stride: stride, Size: size}), nil
}

// Release closes the slots of a raw handle returned by Allocate.
func (b *Backend) Release(raw gralloc.RawHandle) error {
	for _, slot := range raw.FDs {
		if err := b.arena.close(slot); err != nil {
			return fmt.Errorf("%w: slot %d is not open", err, slot)
		}
	}
	return nil
}

// Import takes a new reference to the block behind fds[0].
func (b *Backend) Import(fds []int, _ gralloc.BufferMetadata) (gralloc.Allocation, error) {
	slot, blk, err := b.arena.dup(fds[0])
	if err != nil {
		return nil, fmt.Errorf("%w: slot %d is not open", err, fds[0])
	}
	return &allocation{arena: b.arena, slot: slot, data: blk.data}, nil
}

type allocation struct {
	arena *Arena
	slot  int
	data  []byte
}

func (a *allocation) FDs() []int           { return []int{a.slot} }
func (a *allocation) Size() uint64         { return uint64(len(a.data)) }
func (a *allocation) Map() ([]byte, error) { return a.data, nil }
func (a *allocation) Flush() error         { return nil }
func (a *allocation) Unmap() error         { return nil }
func (a *allocation) Close() error         { return a.arena.close(a.slot) }
