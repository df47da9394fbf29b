// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

// LockedBuffer is the CPU view returned by Lock. Data starts at the buffer
// origin whatever access region was requested.
type LockedBuffer struct {
	Data []byte

	// BytesPerPixel and BytesPerStride are UnknownStride when the format
	// has no single fixed value.
	BytesPerPixel  int32
	BytesPerStride int32
}

// LockedYCbCr is the CPU view returned by LockYCbCr.
type LockedYCbCr struct {
	Data   []byte
	Layout YCbCrLayout
}

// Y returns the luma plane, starting at its first sample.
func (l LockedYCbCr) Y() []byte { return l.Data[l.Layout.YOffset:] }

// Cb returns the blue-difference plane, starting at its first sample.
func (l LockedYCbCr) Cb() []byte { return l.Data[l.Layout.CbOffset:] }

// Cr returns the red-difference plane, starting at its first sample.
func (l LockedYCbCr) Cr() []byte { return l.Data[l.Layout.CrOffset:] }

// Lock waits for acquire and maps h for CPU access with cpuUsage.
//
// Lock fails with StatusBadValue for a zero or non-CPU cpuUsage, for access
// the buffer's usage does not grant and for a region outside the buffer;
// with StatusBadBuffer for unknown handles and opaque formats; and with
// StatusNoResources when the fence is not signaled in time or the mapping
// cannot be established right now.
//
// Concurrent read locks are allowed. A write lock racing with other access
// yields indeterminate contents but never faults.
func (m *BufferMapper) Lock(h Handle, cpuUsage Usage, region Rect, acquire Fence) (LockedBuffer, error) {
	e, err := m.beginLock(h, cpuUsage, region)
	if err != nil {
		return LockedBuffer{}, err
	}
	info := e.md.Info
	if info.Format.IsOpaque() {
		return LockedBuffer{}, statusError(StatusBadBuffer, "%v has opaque format %v", h, info.Format)
	}

	view, err := m.finishLock(h, e, cpuUsage, acquire)
	if err != nil {
		return LockedBuffer{}, err
	}

	// BLOB buffers lock in place: the view is exactly the linear byte range.
	if info.Format == PixelFormatBlob {
		return LockedBuffer{Data: view[:info.Width:info.Width], BytesPerPixel: 1, BytesPerStride: int32(info.Width)}, nil
	}
	bpp, bps := FlatStrides(info.Format, e.md.Stride)
	return LockedBuffer{Data: view, BytesPerPixel: bpp, BytesPerStride: bps}, nil
}

// LockYCbCr is Lock for planar buffers. It fails with StatusBadBuffer when
// h's format has no YCbCr layout.
func (m *BufferMapper) LockYCbCr(h Handle, cpuUsage Usage, region Rect, acquire Fence) (LockedYCbCr, error) {
	e, err := m.beginLock(h, cpuUsage, region)
	if err != nil {
		return LockedYCbCr{}, err
	}
	layout, err := PlaneLayout(e.md.Info, e.md.Stride)
	if err != nil {
		return LockedYCbCr{}, statusError(StatusBadBuffer, "%v: %v", h, err)
	}

	view, err := m.finishLock(h, e, cpuUsage, acquire)
	if err != nil {
		return LockedYCbCr{}, err
	}
	return LockedYCbCr{Data: view, Layout: layout}, nil
}

// beginLock validates a lock request without touching lock state.
func (m *BufferMapper) beginLock(h Handle, cpuUsage Usage, region Rect) (*bufferEntry, error) {
	if cpuUsage == 0 {
		return nil, statusError(StatusBadValue, "lock with no CPU usage")
	}
	if cpuUsage&^UsageCPUMask != 0 {
		return nil, statusError(StatusBadValue, "lock usage %v has non-CPU bits", cpuUsage)
	}
	e, err := m.registry.acquire(h)
	if err != nil {
		return nil, err
	}
	e.mu.Unlock()
	info := e.md.Info
	if cpuUsage.CPURead() && !info.Usage.CPURead() {
		return nil, statusError(StatusBadValue, "%v was not allocated for CPU reads (usage %v)", h, info.Usage)
	}
	if cpuUsage.CPUWrite() && !info.Usage.CPUWrite() {
		return nil, statusError(StatusBadValue, "%v was not allocated for CPU writes (usage %v)", h, info.Usage)
	}
	if !region.within(info.Width, info.Height) {
		return nil, statusError(StatusBadValue, "access region %v is outside %dx%d", region.Image(), info.Width, info.Height)
	}
	return e, nil
}

// finishLock waits for the acquire fence with no lock held, then records the
// lock and returns the CPU view.
func (m *BufferMapper) finishLock(h Handle, e *bufferEntry, cpuUsage Usage, acquire Fence) ([]byte, error) {
	if err := waitFence(m.waiter, acquire, m.fenceTimeout); err != nil {
		Logger().Warn("gralloc: lock abandoned", "id", h.id, "err", err)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refs == 0 {
		return nil, statusError(StatusBadBuffer, "%v was freed", h)
	}
	if e.view == nil {
		view, err := e.alloc.Map()
		if err != nil {
			return nil, withStatus(err, StatusNoResources)
		}
		e.view = view
	}
	e.locks++
	if cpuUsage.CPUWrite() {
		e.dirty = true
	}
	Logger().Debug("gralloc: locked buffer", "id", h.id, "usage", cpuUsage, "locks", e.locks)
	return e.view, nil
}

// Unlock ends one lock of h. Writes made under a write lock are flushed
// before Unlock returns; the returned fence is therefore empty, but callers
// must not rely on that.
func (m *BufferMapper) Unlock(h Handle) (Fence, error) {
	e, err := m.registry.lookup(h)
	if err != nil {
		return NoFence, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refs == 0 {
		m.registry.drainLocked(e)
		return NoFence, statusError(StatusBadBuffer, "%v was freed", h)
	}

	if e.locks == 0 {
		return NoFence, statusError(StatusBadBuffer, "%v is not locked", h)
	}
	if e.dirty {
		if err := e.alloc.Flush(); err != nil {
			return NoFence, withStatus(err, StatusNoResources)
		}
	}
	e.locks--
	if e.locks == 0 {
		e.dirty = false
	}
	Logger().Debug("gralloc: unlocked buffer", "id", h.id, "locks", e.locks)
	return NoFence, nil
}
