// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux

package shm

import (
	"errors"
	"fmt"

	"github.com/gogpu/gralloc"
	"golang.org/x/sys/unix"
)

// errnoStatus classifies a syscall failure. Descriptor and argument errors
// mean the handle is unusable; exhaustion is transient.
func errnoStatus(err error) gralloc.Status {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return gralloc.StatusNoResources
	}
	switch errno {
	case unix.EBADF, unix.EINVAL, unix.EACCES, unix.ENODEV, unix.EPERM:
		return gralloc.StatusBadBuffer
	default:
		// EMFILE, ENFILE, ENOMEM, EAGAIN and anything unexpected.
		return gralloc.StatusNoResources
	}
}

func errnoError(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", errnoStatus(err), fmt.Sprintf(format, args...), err)
}
