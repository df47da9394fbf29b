// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"slices"

	"github.com/gogpu/gpucontext"
)

// Backend names.
const (
	BackendSHM      = "shm"
	BackendSoftware = "software"
)

// Backend is the platform half of a mapper: it knows what can be allocated
// and how to take ownership of the OS resources inside a raw handle.
type Backend interface {
	// Name returns the backend identifier (e.g., "shm", "software").
	Name() string

	// Capabilities describes what the backend can allocate and map.
	Capabilities() Capabilities

	// Import acquires independent references to the resources in fds.
	// The caller keeps ownership of fds. On error nothing is acquired.
	Import(fds []int, md BufferMetadata) (Allocation, error)
}

// Allocation is a backing store owned by one imported handle.
type Allocation interface {
	// FDs returns the resource slots owned by the allocation.
	FDs() []int

	// Size returns the actual size of the backing store in bytes.
	Size() uint64

	// Map returns a CPU view of the whole backing store. Repeated calls
	// return the same view.
	Map() ([]byte, error)

	// Flush makes CPU writes to the mapped view visible to other users.
	Flush() error

	// Unmap releases the CPU view. Views returned by Map must not be used
	// afterwards.
	Unmap() error

	// Close releases the resource slots.
	Close() error
}

var backends = gpucontext.NewRegistry[Backend](
	gpucontext.WithPriority(BackendSHM, BackendSoftware),
)

// RegisterBackend registers a backend factory under name.
// Backend packages call it from init. Registering an existing name replaces it.
func RegisterBackend(name string, factory func() Backend) {
	backends.Register(name, factory)
}

// UnregisterBackend removes a backend. This is useful for testing.
func UnregisterBackend(name string) {
	backends.Unregister(name)
}

// AvailableBackends returns the sorted names of registered backends.
func AvailableBackends() []string {
	names := backends.Available()
	slices.Sort(names)
	return names
}

// OpenMapper creates a mapper over the named backend. An empty name selects
// the best registered backend (shm, then software).
func OpenMapper(name string, opts ...MapperOption) (*BufferMapper, error) {
	var b Backend
	if name == "" {
		b = backends.Best()
	} else {
		b = backends.Get(name)
	}
	if b == nil {
		return nil, statusError(StatusUnsupported, "backend %q is not available", name)
	}
	return NewMapper(b, opts...), nil
}
