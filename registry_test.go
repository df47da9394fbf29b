// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestImportSameRawTwice(t *testing.T) {
	m := newTestMapper(t)
	mem := memOf(m)
	raw := mem.allocate(t, rgbaInfo(16, 16))

	h1, err := m.ImportBuffer(raw)
	require.NoError(t, err)
	h2, err := m.ImportBuffer(raw)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, m.Registry().Len())
	assert.Equal(t, 2, mem.openImports())

	region := FullRect(16, 16)
	lb, err := m.Lock(h1, UsageCPUWriteOften, region, NoFence)
	require.NoError(t, err)
	lb.Data[0] = 0xAB
	_, err = m.Unlock(h1)
	require.NoError(t, err)

	require.NoError(t, m.FreeBuffer(h1))

	lb, err = m.Lock(h2, UsageCPUReadOften, region, NoFence)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), lb.Data[0], "second import must alias the same memory")
	_, err = m.Unlock(h2)
	require.NoError(t, err)
	require.NoError(t, m.FreeBuffer(h2))

	assert.Equal(t, 0, m.Registry().Len())
	assert.Equal(t, 0, mem.openImports())
}

func TestDoubleFree(t *testing.T) {
	m := newTestMapper(t)
	h := importTestBuffer(t, m, rgbaInfo(8, 8))
	other := importTestBuffer(t, m, rgbaInfo(8, 8))

	require.NoError(t, m.FreeBuffer(h))
	for range 3 {
		wantStatus(t, m.FreeBuffer(h), StatusBadBuffer)
		assert.Equal(t, 1, m.Registry().Len())
	}

	// The surviving handle is untouched.
	_, err := m.Lock(other, UsageCPUReadRarely, FullRect(8, 8), NoFence)
	require.NoError(t, err)
	_, err = m.Unlock(other)
	require.NoError(t, err)
}

func TestFreeUnknownHandle(t *testing.T) {
	m := newTestMapper(t)
	wantStatus(t, m.FreeBuffer(Handle{}), StatusBadBuffer)
	wantStatus(t, m.FreeBuffer(Handle{id: 12345}), StatusBadBuffer)
}

func TestImportMalformed(t *testing.T) {
	m := newTestMapper(t)
	mem := memOf(m)
	importTestBuffer(t, m, rgbaInfo(4, 4))

	good := func() RawHandle { return mem.allocate(t, rgbaInfo(4, 4)) }
	tests := []struct {
		name   string
		mutate func(*RawHandle)
	}{
		{"no fds", func(r *RawHandle) { r.FDs = nil }},
		{"two fds", func(r *RawHandle) { r.FDs = append(r.FDs, r.FDs[0]) }},
		{"negative fd", func(r *RawHandle) { r.FDs[0] = -1 }},
		{"closed fd", func(r *RawHandle) { r.FDs[0] = 99999 }},
		{"no ints", func(r *RawHandle) { r.Ints = nil }},
		{"short ints", func(r *RawHandle) { r.Ints = r.Ints[:MetadataInts-1] }},
		{"extra ints", func(r *RawHandle) { r.Ints = append(r.Ints, 0) }},
		{"bad magic", func(r *RawHandle) { r.Ints[0] = 0 }},
		{"bad local magic", func(r *RawHandle) { r.Ints = append(r.Ints, 1, 2, 3, 4) }},
		{"zero width", func(r *RawHandle) { r.Ints[1] = 0 }},
		{"zero layers", func(r *RawHandle) { r.Ints[3] = 0 }},
		{"unknown format", func(r *RawHandle) { r.Ints[4] = 0x7777 }},
		{"stride below width", func(r *RawHandle) { r.Ints[7] = 2 }},
		{"backing store too small", func(r *RawHandle) { r.Ints[1], r.Ints[2], r.Ints[7] = 64, 64, 64 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := good()
			tt.mutate(&raw)
			before := m.Registry().Len()
			open := mem.openImports()

			h, err := m.ImportBuffer(raw)
			wantStatus(t, err, StatusBadBuffer)
			assert.True(t, h.IsZero())
			assert.Equal(t, before, m.Registry().Len())
			assert.Equal(t, open, mem.openImports(), "rejected import leaked an fd")
		})
	}
}

func TestImportBackendFailure(t *testing.T) {
	m := newTestMapper(t)
	mem := memOf(m)
	raw := mem.allocate(t, rgbaInfo(4, 4))

	mem.failImport = errors.New("EMFILE")
	_, err := m.ImportBuffer(raw)
	wantStatus(t, err, StatusNoResources)
	assert.Equal(t, 0, m.Registry().Len())

	// Transient: the identical call succeeds once the condition clears.
	mem.failImport = nil
	h, err := m.ImportBuffer(raw)
	require.NoError(t, err)
	require.NoError(t, m.FreeBuffer(h))
}

func TestWithMaxHandles(t *testing.T) {
	m := newTestMapper(t, WithRegistry(NewRegistry(WithMaxHandles(2))))
	mem := memOf(m)
	raw := mem.allocate(t, rgbaInfo(4, 4))

	h1, err := m.ImportBuffer(raw)
	require.NoError(t, err)
	_, err = m.ImportBuffer(raw)
	require.NoError(t, err)

	_, err = m.ImportBuffer(raw)
	wantStatus(t, err, StatusNoResources)
	assert.Equal(t, 2, m.Registry().Len())

	require.NoError(t, m.FreeBuffer(h1))
	_, err = m.ImportBuffer(raw)
	require.NoError(t, err)
}

func TestTransportSize(t *testing.T) {
	m := newTestMapper(t)
	h := importTestBuffer(t, m, rgbaInfo(4, 4))

	fds, ints, err := m.GetTransportSize(h)
	require.NoError(t, err)
	assert.Equal(t, 1, fds)
	assert.Equal(t, MetadataInts, ints)

	require.NoError(t, m.FreeBuffer(h))
	_, _, err = m.GetTransportSize(h)
	wantStatus(t, err, StatusBadBuffer)
}

func TestRawReimport(t *testing.T) {
	m := newTestMapper(t)
	h := importTestBuffer(t, m, rgbaInfo(32, 8))

	raw, err := m.Registry().Raw(h)
	require.NoError(t, err)
	assert.Len(t, raw.Ints, MetadataInts+LocalInts)
	assert.Equal(t, localMagic, raw.Ints[MetadataInts])

	// The in-process form is itself importable and yields an independent handle.
	h2, err := m.ImportBuffer(raw)
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)
	require.NoError(t, m.FreeBuffer(h))
	require.NoError(t, m.ValidateBufferSize(h2, rgbaInfo(32, 8), 32))
	require.NoError(t, m.FreeBuffer(h2))

	_, err = m.Registry().Raw(h)
	wantStatus(t, err, StatusBadBuffer)
}

func TestRegistrySharedAcrossMappers(t *testing.T) {
	reg := NewRegistry()
	a := NewMapper(newMemBackend(), WithRegistry(reg))
	b := NewMapper(newMemBackend(), WithRegistry(reg))

	h := importTestBuffer(t, a, rgbaInfo(4, 4))
	_, _, err := b.GetTransportSize(h)
	require.NoError(t, err)
	require.NoError(t, b.FreeBuffer(h))
	wantStatus(t, a.FreeBuffer(h), StatusBadBuffer)
}

func TestConcurrentImportFree(t *testing.T) {
	m := newTestMapper(t)
	mem := memOf(m)
	raw := mem.allocate(t, rgbaInfo(16, 16))

	const workers = 16
	var frees atomic.Int64
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for range 50 {
				h, err := m.ImportBuffer(raw)
				if err != nil {
					return err
				}
				if _, err := m.Lock(h, UsageCPUReadRarely, FullRect(16, 16), NoFence); err != nil {
					return err
				}
				if _, err := m.Unlock(h); err != nil {
					return err
				}
				if err := m.FreeBuffer(h); err != nil {
					return err
				}
				frees.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(workers*50), frees.Load())
	assert.Equal(t, 0, m.Registry().Len())
	assert.Equal(t, 0, mem.openImports())
}

func TestConcurrentDoubleFree(t *testing.T) {
	m := newTestMapper(t)
	h := importTestBuffer(t, m, rgbaInfo(4, 4))

	var ok, bad atomic.Int64
	var g errgroup.Group
	for range 32 {
		g.Go(func() error {
			switch StatusOf(m.FreeBuffer(h)) {
			case StatusNone:
				ok.Add(1)
			case StatusBadBuffer:
				bad.Add(1)
			default:
				return errors.New("unexpected status")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(1), ok.Load())
	assert.Equal(t, int64(31), bad.Load())
}

func TestConcurrentFreeWhileLocking(t *testing.T) {
	for round := range 20 {
		m := newTestMapper(t)
		mem := memOf(m)
		h := importTestBuffer(t, m, rgbaInfo(16, 16))

		var freed atomic.Int64
		check := func(op string, err error) error {
			switch StatusOf(err) {
			case StatusNone, StatusBadBuffer:
				return nil
			default:
				return fmt.Errorf("round %d: %s returned %v", round, op, err)
			}
		}

		var g errgroup.Group
		for range 8 {
			g.Go(func() error {
				for range 20 {
					_, err := m.Lock(h, UsageCPUWriteRarely, FullRect(16, 16), NoFence)
					if err := check("Lock", err); err != nil {
						return err
					}
					if err != nil {
						continue
					}
					_, err = m.Unlock(h)
					if err := check("Unlock", err); err != nil {
						return err
					}
				}
				return nil
			})
		}
		for range 2 {
			g.Go(func() error {
				err := m.FreeBuffer(h)
				if err == nil {
					freed.Add(1)
				}
				return check("FreeBuffer", err)
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int64(1), freed.Load(), "round %d", round)
		assert.Equal(t, 0, m.Registry().Len())
		assert.Equal(t, 0, mem.openImports())
		_, err := m.Registry().lookup(h)
		wantStatus(t, err, StatusBadBuffer)
	}
}

func TestLenExcludesImportsInFlight(t *testing.T) {
	m := newTestMapper(t)
	mem := memOf(m)
	raw := mem.allocate(t, rgbaInfo(8, 8))

	started := make(chan struct{})
	release := make(chan struct{})
	mem.onImport = func() {
		close(started)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.ImportBuffer(raw)
		done <- err
	}()
	<-started
	assert.Equal(t, 0, m.Registry().Len())
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, m.Registry().Len())
}

func TestFailedImportDoesNotCount(t *testing.T) {
	m := NewMapper(newMemBackend(), WithRegistry(NewRegistry(WithMaxHandles(1))))
	mem := memOf(m)
	raw := mem.allocate(t, rgbaInfo(8, 8))

	mem.failImport = errors.New("out of fds")
	_, err := m.ImportBuffer(raw)
	wantStatus(t, err, StatusNoResources)
	assert.Equal(t, 0, m.Registry().Len())

	mem.failImport = nil
	h, err := m.ImportBuffer(raw)
	require.NoError(t, err, "failed import must not hold a slot")
	_, err = m.ImportBuffer(raw)
	wantStatus(t, err, StatusNoResources)

	require.NoError(t, m.FreeBuffer(h))
	h, err = m.ImportBuffer(raw)
	require.NoError(t, err, "free returns the slot")
	require.NoError(t, m.FreeBuffer(h))
}
