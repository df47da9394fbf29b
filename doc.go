// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gralloc maps shared graphics buffers for CPU access.
//
// # Overview
//
// Graphics buffers are allocated by a separate allocator and passed between
// processes as raw handles: a few OS resource slots (file descriptors) plus
// integer metadata. gralloc validates buffer descriptions before allocation,
// imports raw handles into process-local Handles, checks their size, and
// locks them for CPU reads and writes.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/gralloc"
//		_ "github.com/gogpu/gralloc/backend/shm"
//	)
//
//	m, err := gralloc.OpenMapper("")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	h, err := m.ImportBuffer(raw)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.FreeBuffer(h)
//
//	buf, err := m.Lock(h, gralloc.UsageCPUWriteOften, gralloc.FullRect(w, ht), gralloc.NoFence)
//	if err != nil {
//		log.Fatal(err)
//	}
//	copy(buf.Data, pixels)
//	m.Unlock(h)
//
// # Errors
//
// Every error wraps one Status. Use StatusOf or errors.Is with ErrBadValue,
// ErrBadBuffer, ErrNoResources and ErrUnsupported to classify failures.
// StatusNoResources is transient: retrying the identical call later may
// succeed. StatusUnsupported is permanent for the backend.
//
// # Backends
//
// A Backend supplies capabilities and takes ownership of the OS resources in
// a raw handle. Backends register by name on import:
//   - "shm": memfd and mmap (Linux)
//   - "software": in-process arena (all platforms)
//
// # Fences
//
// Lock waits for an acquire Fence through the FenceWaiter configured with
// WithFenceWaiter; a hal.Device from gogpu/wgpu is a FenceWaiter.
//
// # Thread Safety
//
// BufferMapper and Registry are safe for concurrent use. Handles may be
// used from any goroutine; operations on one handle are serialized.
package gralloc
