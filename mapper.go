// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"time"
)

// Mapper is the buffer mapping capability set. Clients depend on Mapper;
// BufferMapper implements it for every Backend.
type Mapper interface {
	CreateDescriptor(info BufferDescriptorInfo) (BufferDescriptor, error)
	ImportBuffer(raw RawHandle) (Handle, error)
	FreeBuffer(h Handle) error
	ValidateBufferSize(h Handle, info BufferDescriptorInfo, stride uint32) error
	GetTransportSize(h Handle) (numFDs, numInts int, err error)
	Lock(h Handle, cpuUsage Usage, region Rect, acquire Fence) (LockedBuffer, error)
	LockYCbCr(h Handle, cpuUsage Usage, region Rect, acquire Fence) (LockedYCbCr, error)
	Unlock(h Handle) (Fence, error)
	IsSupported(info BufferDescriptorInfo) (bool, error)
}

var _ Mapper = (*BufferMapper)(nil)

// BufferMapper validates descriptors, imports handles and coordinates CPU
// access for one Backend.
//
// BufferMapper is safe for concurrent use.
type BufferMapper struct {
	backend      Backend
	caps         Capabilities
	registry     *Registry
	waiter       FenceWaiter
	fenceTimeout time.Duration
}

// NewMapper creates a mapper over b.
func NewMapper(b Backend, opts ...MapperOption) *BufferMapper {
	o := defaultMapperOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	return &BufferMapper{
		backend:      b,
		caps:         b.Capabilities(),
		registry:     o.registry,
		waiter:       o.waiter,
		fenceTimeout: o.fenceTimeout,
	}
}

// Backend returns the backend the mapper was created with.
func (m *BufferMapper) Backend() Backend { return m.backend }

// Registry returns the handle table the mapper uses.
func (m *BufferMapper) Registry() *Registry { return m.registry }

// CreateDescriptor validates info against the backend and encodes it.
func (m *BufferMapper) CreateDescriptor(info BufferDescriptorInfo) (BufferDescriptor, error) {
	if err := m.caps.Check(info); err != nil {
		return nil, err
	}
	return EncodeDescriptor(info), nil
}

// IsSupported reports whether info could ever be allocated on the backend.
// The error is reserved for transport failures and is always nil here.
func (m *BufferMapper) IsSupported(info BufferDescriptorInfo) (bool, error) {
	return m.caps.Check(info) == nil, nil
}

// ImportBuffer imports raw into the mapper's registry.
func (m *BufferMapper) ImportBuffer(raw RawHandle) (Handle, error) {
	return m.registry.Import(m.backend, raw)
}

// FreeBuffer releases h. If h is still locked its mapping outlives the call
// until each lock is ended with Unlock; see Registry.Free.
func (m *BufferMapper) FreeBuffer(h Handle) error {
	return m.registry.Free(h)
}

// GetTransportSize returns the fd and int counts needed to send h.
func (m *BufferMapper) GetTransportSize(h Handle) (numFDs, numInts int, err error) {
	return m.registry.TransportSize(h)
}

// ValidateBufferSize checks that h's backing store is large enough to hold
// info laid out with the given stride. Attributes other than size are not
// compared.
func (m *BufferMapper) ValidateBufferSize(h Handle, info BufferDescriptorInfo, stride uint32) error {
	e, err := m.registry.acquire(h)
	if err != nil {
		return err
	}
	actual := e.alloc.Size()
	e.mu.Unlock()

	need, err := MinimumSize(info, stride)
	if err != nil {
		return err
	}
	if need > actual {
		return statusError(StatusBadValue, "%v holds %d bytes, %dx%d %v at stride %d needs %d",
			h, actual, info.Width, info.Height, info.Format, stride, need)
	}
	return nil
}
