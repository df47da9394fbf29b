// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software_test

import (
	"testing"

	"github.com/gogpu/gralloc"
	"github.com/gogpu/gralloc/backend/software"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rgba(w, h uint32) gralloc.BufferDescriptorInfo {
	return gralloc.BufferDescriptorInfo{
		Width:      w,
		Height:     h,
		LayerCount: 1,
		Format:     gralloc.PixelFormatRGBA8888,
		Usage:      gralloc.UsageCPUReadOften | gralloc.UsageCPUWriteOften,
	}
}

func newMapper(t *testing.T) (*gralloc.BufferMapper, *software.Backend) {
	t.Helper()
	b := software.New(software.NewArena())
	return gralloc.NewMapper(b,
		gralloc.WithRegistry(gralloc.NewRegistry()),
		gralloc.WithFenceWaiter(b.Device()),
	), b
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, gralloc.AvailableBackends(), gralloc.BackendSoftware)

	m, err := gralloc.OpenMapper(gralloc.BackendSoftware, gralloc.WithRegistry(gralloc.NewRegistry()))
	require.NoError(t, err)
	assert.Same(t, software.Default(), m.Backend())
}

func TestScenarioRGBA(t *testing.T) {
	m, b := newMapper(t)
	info := rgba(64, 64)

	d, err := m.CreateDescriptor(info)
	require.NoError(t, err)
	raw, err := b.Allocate(d)
	require.NoError(t, err)

	h, err := m.ImportBuffer(raw)
	require.NoError(t, err)
	// The allocator's slot is no longer needed once the buffer is imported.
	require.NoError(t, b.Release(raw))

	lb, err := m.Lock(h, gralloc.UsageCPUWriteOften, gralloc.FullRect(64, 64), gralloc.NoFence)
	require.NoError(t, err)
	assert.Equal(t, int32(4), lb.BytesPerPixel)
	assert.Equal(t, int32(64*4), lb.BytesPerStride)
	for i := range lb.Data {
		lb.Data[i] = 0xFF
	}
	fence, err := m.Unlock(h)
	require.NoError(t, err)
	assert.True(t, fence.IsEmpty())

	require.NoError(t, m.FreeBuffer(h))
	assert.Equal(t, 0, b.Arena().Slots())
	assert.Equal(t, 0, b.Arena().Blocks())
}

func TestImportTwiceSharesBlock(t *testing.T) {
	m, b := newMapper(t)
	d, err := m.CreateDescriptor(rgba(8, 8))
	require.NoError(t, err)
	raw, err := b.Allocate(d)
	require.NoError(t, err)

	h1, err := m.ImportBuffer(raw)
	require.NoError(t, err)
	h2, err := m.ImportBuffer(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Arena().Slots())
	assert.Equal(t, 1, b.Arena().Blocks())

	require.NoError(t, b.Release(raw))
	require.NoError(t, m.FreeBuffer(h1))
	assert.Equal(t, 1, b.Arena().Blocks())
	require.NoError(t, m.FreeBuffer(h2))
	assert.Equal(t, 0, b.Arena().Blocks())
}

func TestReleaseTwice(t *testing.T) {
	m, b := newMapper(t)
	d, err := m.CreateDescriptor(rgba(8, 8))
	require.NoError(t, err)
	raw, err := b.Allocate(d)
	require.NoError(t, err)

	require.NoError(t, b.Release(raw))
	assert.Equal(t, gralloc.StatusBadBuffer, gralloc.StatusOf(b.Release(raw)))

	// A released slot can no longer be imported.
	_, err = m.ImportBuffer(raw)
	assert.Equal(t, gralloc.StatusBadBuffer, gralloc.StatusOf(err))
	assert.Equal(t, 0, m.Registry().Len())
}

func TestAllocateRejects(t *testing.T) {
	_, b := newMapper(t)

	_, err := b.Allocate(gralloc.BufferDescriptor("not a descriptor"))
	assert.Equal(t, gralloc.StatusBadValue, gralloc.StatusOf(err))

	tooBig := rgba(16384, 16384)
	_, err = b.Allocate(gralloc.EncodeDescriptor(tooBig))
	assert.Equal(t, gralloc.StatusUnsupported, gralloc.StatusOf(err))
	assert.Equal(t, 0, b.Arena().Slots())
}

func TestLayeredBuffers(t *testing.T) {
	m, b := newMapper(t)
	info := rgba(16, 16)
	info.LayerCount = 4

	d, err := m.CreateDescriptor(info)
	require.NoError(t, err)
	raw, err := b.Allocate(d)
	require.NoError(t, err)
	h, err := m.ImportBuffer(raw)
	require.NoError(t, err)
	require.NoError(t, m.ValidateBufferSize(h, info, 16))

	info.LayerCount = 5
	assert.Equal(t, gralloc.StatusBadValue, gralloc.StatusOf(m.ValidateBufferSize(h, info, 16)))
}

func TestCapabilities(t *testing.T) {
	b := software.New(software.NewArena())
	caps := b.Capabilities()
	assert.Equal(t, 1, caps.HandleFDs)
	assert.Equal(t, uint32(8192), caps.MaxDimension)
	assert.NotNil(t, caps.Prober)
	assert.ElementsMatch(t, gralloc.AllPixelFormats(), caps.Formats)
}

func TestDeviceWaitsOnFence(t *testing.T) {
	m, b := newMapper(t)
	d, err := m.CreateDescriptor(rgba(4, 4))
	require.NoError(t, err)
	raw, err := b.Allocate(d)
	require.NoError(t, err)
	h, err := m.ImportBuffer(raw)
	require.NoError(t, err)

	fence := &noop.Fence{}
	_, err = m.Lock(h, gralloc.UsageCPUReadOften, gralloc.FullRect(4, 4), gralloc.NewFence(fence, 1))
	assert.Equal(t, gralloc.StatusNoResources, gralloc.StatusOf(err))

	fence.Signal(1)
	_, err = m.Lock(h, gralloc.UsageCPUReadOften, gralloc.FullRect(4, 4), gralloc.NewFence(fence, 1))
	require.NoError(t, err)
	_, err = m.Unlock(h)
	require.NoError(t, err)
}
