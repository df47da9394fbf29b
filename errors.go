// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"errors"
	"fmt"
)

// Status is the result code carried by every mapper error.
// Numeric values match the graphics HAL error enumeration so they can be
// forwarded across process boundaries unchanged.
type Status int32

const (
	// StatusNone means the operation succeeded.
	StatusNone Status = 0

	// StatusBadBuffer means the handle is invalid, unknown to the registry,
	// or not usable for the requested operation.
	StatusBadBuffer Status = 2

	// StatusBadValue means an argument is structurally invalid.
	StatusBadValue Status = 3

	// StatusNoResources means the operation cannot complete right now.
	// The caller may retry the identical call later.
	StatusNoResources Status = 5

	// StatusUnsupported means the request exceeds what the backend can ever do.
	StatusUnsupported Status = 7
)

// Sentinel errors. Every error returned by this package wraps exactly one of them.
var (
	ErrBadValue    error = StatusBadValue
	ErrBadBuffer   error = StatusBadBuffer
	ErrNoResources error = StatusNoResources
	ErrUnsupported error = StatusUnsupported
)

// String returns the HAL name of the status.
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusBadBuffer:
		return "BAD_BUFFER"
	case StatusBadValue:
		return "BAD_VALUE"
	case StatusNoResources:
		return "NO_RESOURCES"
	case StatusUnsupported:
		return "UNSUPPORTED"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Error implements the error interface.
func (s Status) Error() string {
	switch s {
	case StatusBadBuffer:
		return "gralloc: bad buffer"
	case StatusBadValue:
		return "gralloc: bad value"
	case StatusNoResources:
		return "gralloc: no resources"
	case StatusUnsupported:
		return "gralloc: unsupported"
	default:
		return "gralloc: " + s.String()
	}
}

// StatusOf extracts the Status from err.
// A nil error is StatusNone. Errors that do not wrap a Status are reported
// as StatusNoResources, since they originate from the environment rather
// than from the caller's arguments.
func StatusOf(err error) Status {
	if err == nil {
		return StatusNone
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusNoResources
}

// statusError wraps a Status with call-site context.
func statusError(s Status, format string, args ...any) error {
	return fmt.Errorf("%w: %s", s, fmt.Sprintf(format, args...))
}

// withStatus returns err unchanged if it already carries a Status, and
// otherwise wraps it with fallback.
func withStatus(err error, fallback Status) error {
	var s Status
	if err == nil || errors.As(err, &s) {
		return err
	}
	return fmt.Errorf("%w: %w", fallback, err)
}
