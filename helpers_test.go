// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"errors"
	"sync"
	"testing"
)

// memBackend is an in-memory Backend. Its "fds" are keys into a table of
// byte slices; Import duplicates a key the way dup(2) duplicates an fd.
type memBackend struct {
	caps Capabilities

	mu       sync.Mutex
	stores   map[int][]byte
	nextFD   int
	imported map[int]bool

	failImport error
	failMaps   int
	failFlush  error
	flushes    int
	unmaps     int

	// onImport, when set, runs inside Import before it returns.
	onImport func()
}

func newMemBackend() *memBackend {
	return &memBackend{
		caps: Capabilities{
			Formats:       AllPixelFormats(),
			Usage:         UsageAll,
			MaxLayers:     1,
			MaxDimension:  4096,
			MaxBufferSize: 64 << 20,
			HandleFDs:     1,
		},
		stores:   make(map[int][]byte),
		imported: make(map[int]bool),
		nextFD:   100,
	}
}

func (b *memBackend) Name() string               { return "mem" }
func (b *memBackend) Capabilities() Capabilities { return b.caps }

// allocate plays the external allocator.
func (b *memBackend) allocate(t *testing.T, info BufferDescriptorInfo) RawHandle {
	t.Helper()
	stride := AllocationStride(info)
	size, err := MinimumSize(info, stride)
	if err != nil {
		t.Fatalf("MinimumSize(%+v) = %v", info, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fd := b.nextFD
	b.nextFD++
	b.stores[fd] = make([]byte, size)
	return NewRawHandle([]int{fd}, BufferMetadata{Info: info, Stride: stride, Size: size})
}

func (b *memBackend) Import(fds []int, md BufferMetadata) (Allocation, error) {
	if b.onImport != nil {
		b.onImport()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failImport != nil {
		return nil, b.failImport
	}
	store, ok := b.stores[fds[0]]
	if !ok {
		return nil, statusError(StatusBadBuffer, "fd %d is not open", fds[0])
	}
	fd := b.nextFD
	b.nextFD++
	b.stores[fd] = store
	b.imported[fd] = true
	return &memAllocation{backend: b, fd: fd, store: store}, nil
}

// openImports returns the number of duplicated fds still open.
func (b *memBackend) openImports() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.imported)
}

type memAllocation struct {
	backend *memBackend
	fd      int
	store   []byte
}

func (a *memAllocation) FDs() []int   { return []int{a.fd} }
func (a *memAllocation) Size() uint64 { return uint64(len(a.store)) }

func (a *memAllocation) Map() ([]byte, error) {
	b := a.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failMaps > 0 {
		b.failMaps--
		return nil, errors.New("mapping temporarily unavailable")
	}
	return a.store, nil
}

func (a *memAllocation) Flush() error {
	b := a.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failFlush != nil {
		return b.failFlush
	}
	b.flushes++
	return nil
}

func (a *memAllocation) Unmap() error {
	b := a.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unmaps++
	return nil
}

func (b *memBackend) unmapCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unmaps
}

func (a *memAllocation) Close() error {
	b := a.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stores, a.fd)
	delete(b.imported, a.fd)
	return nil
}

func newTestMapper(t *testing.T, opts ...MapperOption) *BufferMapper {
	t.Helper()
	opts = append([]MapperOption{WithRegistry(NewRegistry())}, opts...)
	return NewMapper(newMemBackend(), opts...)
}

func memOf(m *BufferMapper) *memBackend {
	return m.Backend().(*memBackend)
}

func rgbaInfo(w, h uint32) BufferDescriptorInfo {
	return BufferDescriptorInfo{
		Width:      w,
		Height:     h,
		LayerCount: 1,
		Format:     PixelFormatRGBA8888,
		Usage:      UsageCPUReadOften | UsageCPUWriteOften,
	}
}

func importTestBuffer(t *testing.T, m *BufferMapper, info BufferDescriptorInfo) Handle {
	t.Helper()
	h, err := m.ImportBuffer(memOf(m).allocate(t, info))
	if err != nil {
		t.Fatalf("ImportBuffer(%v) = %v", info.Format, err)
	}
	return h
}

func wantStatus(t *testing.T, err error, want Status) {
	t.Helper()
	if got := StatusOf(err); got != want {
		t.Fatalf("status = %v (err %v), want %v", got, err, want)
	}
}
