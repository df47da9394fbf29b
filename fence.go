// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"time"

	"github.com/gogpu/wgpu/hal"
)

// DefaultFenceTimeout bounds how long Lock waits for an acquire fence.
const DefaultFenceTimeout = 3 * time.Second

// Fence is a completion signal: the wrapped hal.Fence reaching Value.
// The zero Fence is empty and counts as already signaled.
type Fence struct {
	fence hal.Fence
	value uint64
}

// NoFence is the empty fence.
var NoFence Fence

// NewFence returns a fence that signals when f reaches value.
// A nil f yields NoFence.
func NewFence(f hal.Fence, value uint64) Fence {
	if f == nil {
		return NoFence
	}
	return Fence{fence: f, value: value}
}

// IsEmpty reports whether the fence is already satisfied.
func (f Fence) IsEmpty() bool { return f.fence == nil }

// HAL returns the wrapped fence and the value it must reach.
func (f Fence) HAL() (hal.Fence, uint64) { return f.fence, f.value }

// FenceWaiter blocks until a fence reaches a value or the timeout expires.
// hal.Device implements FenceWaiter.
type FenceWaiter interface {
	Wait(fence hal.Fence, value uint64, timeout time.Duration) (bool, error)
}

// waitFence waits for f with a bounded timeout. An unsignaled fence or a
// waiter failure is transient and reported as StatusNoResources.
func waitFence(w FenceWaiter, f Fence, timeout time.Duration) error {
	if f.IsEmpty() {
		return nil
	}
	if w == nil {
		return statusError(StatusBadValue, "acquire fence given but no fence waiter is configured")
	}
	ok, err := w.Wait(f.fence, f.value, timeout)
	if err != nil {
		return statusError(StatusNoResources, "waiting for acquire fence: %v", err)
	}
	if !ok {
		return statusError(StatusNoResources, "acquire fence not signaled after %v", timeout)
	}
	return nil
}
