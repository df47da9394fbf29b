// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import "time"

// MapperOption configures a BufferMapper during creation.
//
// Example:
//
//	m := gralloc.NewMapper(backend,
//	    gralloc.WithRegistry(gralloc.NewRegistry()),
//	    gralloc.WithFenceWaiter(device),
//	)
type MapperOption func(*mapperOptions)

type mapperOptions struct {
	registry     *Registry
	waiter       FenceWaiter
	fenceTimeout time.Duration
}

func defaultMapperOptions() mapperOptions {
	return mapperOptions{
		registry:     nil, // DefaultRegistry() if still nil
		fenceTimeout: DefaultFenceTimeout,
	}
}

// WithRegistry makes the mapper track handles in r instead of the
// process-wide DefaultRegistry. Tests use it to stay isolated.
func WithRegistry(r *Registry) MapperOption {
	return func(o *mapperOptions) {
		o.registry = r
	}
}

// WithFenceWaiter sets the collaborator that waits on acquire fences.
// Typically a hal.Device.
func WithFenceWaiter(w FenceWaiter) MapperOption {
	return func(o *mapperOptions) {
		o.waiter = w
	}
}

// WithFenceTimeout bounds each acquire-fence wait. Non-positive values keep
// DefaultFenceTimeout.
func WithFenceTimeout(d time.Duration) MapperOption {
	return func(o *mapperOptions) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}
