// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux

package shm

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/gralloc"
	"golang.org/x/sys/unix"
)

// init registers the shm backend on package import.
func init() {
	gralloc.RegisterBackend(gralloc.BackendSHM, func() gralloc.Backend {
		return defaultBackend
	})
}

var defaultBackend = New()

// Default returns the backend registered as "shm".
func Default() *Backend { return defaultBackend }

// Backend imports memfd-backed buffers.
type Backend struct {
	caps gralloc.Capabilities
}

var _ gralloc.Backend = (*Backend)(nil)

// New creates a backend with the default GPU limits. Layered buffers are
// not supported.
func New() *Backend {
	caps := gralloc.CapabilitiesFromLimits(gputypes.DefaultLimits())
	caps.Formats = gralloc.AllPixelFormats()
	caps.Usage = gralloc.UsageAll
	caps.MaxLayers = 1
	caps.HandleFDs = 1
	return &Backend{caps: caps}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return gralloc.BackendSHM }

// Capabilities describes what the backend can allocate and map.
func (b *Backend) Capabilities() gralloc.Capabilities { return b.caps }

// Import duplicates fds[0] and sizes the backing file. The file must be a
// memfd sealed with F_SEAL_SHRINK; a file another process can truncate would
// fault the mapping on access.
func (b *Backend) Import(fds []int, _ gralloc.BufferMetadata) (gralloc.Allocation, error) {
	fd, err := unix.FcntlInt(uintptr(fds[0]), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, errnoError(err, "dup fd %d", fds[0])
	}
	seals, err := unix.FcntlInt(uintptr(fd), unix.F_GET_SEALS, 0)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%w: fd %d does not support seals: %w", gralloc.ErrBadBuffer, fds[0], err)
	}
	if seals&unix.F_SEAL_SHRINK == 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%w: fd %d is not sealed against shrinking", gralloc.ErrBadBuffer, fds[0])
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, errnoError(err, "stat fd %d", fds[0])
	}
	if st.Size <= 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%w: fd %d is empty", gralloc.ErrBadBuffer, fds[0])
	}
	return &allocation{fd: fd, size: uint64(st.Size)}, nil
}

// Allocate creates a memfd sized for d and returns its raw handle. The file
// is sealed against resizing. The caller owns the fd and must Release it.
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

	fd, err := unix.MemfdCreate("gralloc-buffer", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return gralloc.RawHandle{}, errnoError(err, "memfd_create")
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return gralloc.RawHandle{}, errnoError(err, "ftruncate %d bytes", size)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_GROW); err != nil {
		_ = unix.Close(fd)
		return gralloc.RawHandle{}, errnoError(err, "seal memfd")
	}

	gralloc.Logger().Debug("shm: allocated buffer", "fd", fd, "size", size, "format", info.Format)
	return gralloc.NewRawHandle([]int{fd}, gralloc.BufferMetadata{Info: info, Stride: stride, Size: size}), nil
}

// Release closes the fds of a raw handle returned by Allocate.
func (b *Backend) Release(raw gralloc.RawHandle) error {
	var firstErr error
	for _, fd := range raw.FDs {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = errnoError(err, "close fd %d", fd)
		}
	}
	return firstErr
}

type allocation struct {
	fd   int
	size uint64
	data []byte
}

func (a *allocation) FDs() []int   { return []int{a.fd} }
func (a *allocation) Size() uint64 { return a.size }

func (a *allocation) Map() ([]byte, error) {
	if a.data != nil {
		return a.data, nil
	}
	data, err := unix.Mmap(a.fd, 0, int(a.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errnoError(err, "mmap %d bytes", a.size)
	}
	a.data = data
	return data, nil
}

func (a *allocation) Flush() error {
	if a.data == nil {
		return nil
	}
	if err := unix.Msync(a.data, unix.MS_SYNC); err != nil {
		return errnoError(err, "msync")
	}
	return nil
}

func (a *allocation) Unmap() error {
	if a.data == nil {
		return nil
	}
	data := a.data
	a.data = nil
	if err := unix.Munmap(data); err != nil {
		return errnoError(err, "munmap")
	}
	return nil
}

func (a *allocation) Close() error {
	if a.fd < 0 {
		return nil
	}
	fd := a.fd
	a.fd = -1
	if err := unix.Close(fd); err != nil {
		return errnoError(err, "close fd %d", fd)
	}
	return nil
}
