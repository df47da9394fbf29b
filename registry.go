// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"slices"
	"sync"
	"sync/atomic"
)

const (
	// registryShards is the number of table shards. Must be a power of 2.
	registryShards = 16
	shardMask      = registryShards - 1
)

// Registry is the table of imported handles.
//
// A Registry is shared by every BufferMapper built on it, so a Handle
// imported through one mapper is valid in all of them. Imports and frees of
// different handles contend only on their shard; operations on the same
// handle are serialized by the entry's mutex.
//
// Registry is safe for concurrent use. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	shards [registryShards]*registryShard
	nextID atomic.Uint64
	limit  int64

	// reserved counts live handles plus imports in flight and enforces
	// limit. count counts live handles only.
	reserved atomic.Int64
	count    atomic.Int64
}

type registryShard struct {
	mu      sync.RWMutex
	entries map[uint64]*bufferEntry
}

// bufferEntry is the state of one imported handle.
type bufferEntry struct {
	// mu serializes free, lock and unlock on this handle. It is never held
	// while waiting on a fence.
	mu sync.Mutex

	id      uint64
	backend string
	md      BufferMetadata
	alloc   Allocation

	// refs is 1 while the handle is registered and 0 once freed. A freed
	// entry with outstanding locks stays in its shard until the last Unlock
	// releases the mapping.
	refs int

	// view is the CPU mapping, established by the first lock.
	view []byte

	// locks counts outstanding Lock/LockYCbCr calls.
	locks int

	// dirty is set by a write lock and cleared by the flush in Unlock.
	dirty bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxHandles caps the number of live handles. Imports beyond the cap
// fail with StatusNoResources. Zero means unlimited.
func WithMaxHandles(n int) RegistryOption {
	return func(r *Registry) {
		r.limit = int64(n)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{entries: make(map[uint64]*bufferEntry)}
	}
	return r
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the process-wide registry used by mappers that
// are not given one with WithRegistry. It is created empty on first use and
// needs no teardown.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func (r *Registry) shard(id uint64) *registryShard {
	return r.shards[id&shardMask]
}

// Len returns the number of live handles. Imports still in flight are not
// counted.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Import validates raw and takes ownership of duplicates of its resources
// through b. raw may be a fresh allocation or the in-process form of a
// handle imported elsewhere; both are accepted and each call yields a new
// Handle that must be freed on its own.
func (r *Registry) Import(b Backend, raw RawHandle) (Handle, error) {
	fds, md, err := splitWire(raw, b.Capabilities().HandleFDs)
	if err != nil {
		return Handle{}, err
	}
	need, err := MinimumSize(md.Info, md.Stride)
	if err != nil {
		return Handle{}, statusError(StatusBadBuffer, "handle layout: %v", err)
	}

	if n := r.reserved.Add(1); r.limit > 0 && n > r.limit {
		r.reserved.Add(-1)
		return Handle{}, statusError(StatusNoResources, "registry is full (%d handles)", r.limit)
	}

	alloc, err := b.Import(fds, md)
	if err != nil {
		r.reserved.Add(-1)
		return Handle{}, withStatus(err, StatusNoResources)
	}
	if size := alloc.Size(); size < need {
		r.reserved.Add(-1)
		if cerr := alloc.Close(); cerr != nil {
			Logger().Warn("gralloc: releasing rejected import", "err", cerr)
		}
		return Handle{}, statusError(StatusBadBuffer, "backing store holds %d bytes, layout needs %d", size, need)
	}

	e := &bufferEntry{
		id:      r.nextID.Add(1),
		backend: b.Name(),
		md:      md,
		alloc:   alloc,
		refs:    1,
	}
	s := r.shard(e.id)
	s.mu.Lock()
	s.entries[e.id] = e
	s.mu.Unlock()
	r.count.Add(1)

	Logger().Debug("gralloc: imported buffer",
		"id", e.id, "backend", e.backend,
		"width", md.Info.Width, "height", md.Info.Height,
		"format", md.Info.Format, "usage", md.Info.Usage)
	return Handle{id: e.id}, nil
}

// lookup returns the live entry for h.
func (r *Registry) lookup(h Handle) (*bufferEntry, error) {
	s := r.shard(h.id)
	s.mu.RLock()
	e, ok := s.entries[h.id]
	s.mu.RUnlock()
	if !ok {
		return nil, statusError(StatusBadBuffer, "%v is not imported", h)
	}
	return e, nil
}

// Free removes h and releases the resources it owns. Freeing an unknown or
// already freed handle returns StatusBadBuffer and changes nothing.
//
// A handle freed while locked closes its fds at once, but its mapping stays
// valid until every outstanding lock has been ended with Unlock. Those Unlock
// calls report StatusBadBuffer.
func (r *Registry) Free(h Handle) error {
	e, err := r.lookup(h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refs == 0 {
		return statusError(StatusBadBuffer, "%v was freed", h)
	}
	e.refs--
	r.count.Add(-1)
	r.reserved.Add(-1)
	if e.locks == 0 {
		r.remove(e.id)
	}
	e.releaseLocked()
	return nil
}

// remove deletes id from its shard. Lock order is e.mu before shard mu.
func (r *Registry) remove(id uint64) {
	s := r.shard(id)
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// releaseLocked closes the entry's resources and unmaps it unless locks are
// outstanding. Release failures are logged; the handle is gone either way.
// Caller must hold e.mu.
func (e *bufferEntry) releaseLocked() {
	var firstErr error
	if e.locks > 0 {
		Logger().Warn("gralloc: freed buffer while locked; mapping kept until unlocked",
			"id", e.id, "locks", e.locks)
	} else if err := e.unmapLocked(); err != nil {
		firstErr = err
	}
	if err := e.alloc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		Logger().Warn("gralloc: releasing buffer resources", "id", e.id, "err", firstErr)
	}
	Logger().Debug("gralloc: freed buffer", "id", e.id)
}

func (e *bufferEntry) unmapLocked() error {
	if e.view == nil {
		return nil
	}
	e.view = nil
	return e.alloc.Unmap()
}

// drainLocked ends one lock on a freed entry. The last one unmaps the view
// and drops the entry from r. Caller must hold e.mu.
func (r *Registry) drainLocked(e *bufferEntry) {
	if e.locks == 0 {
		return
	}
	e.locks--
	if e.locks > 0 {
		return
	}
	if err := e.unmapLocked(); err != nil {
		Logger().Warn("gralloc: unmapping freed buffer", "id", e.id, "err", err)
	}
	r.remove(e.id)
	Logger().Debug("gralloc: released mapping of freed buffer", "id", e.id)
}

// TransportSize returns the number of fds and ints needed to send h to
// another process. Local bookkeeping ints are excluded.
func (r *Registry) TransportSize(h Handle) (numFDs, numInts int, err error) {
	e, err := r.acquire(h)
	if err != nil {
		return 0, 0, err
	}
	defer e.mu.Unlock()
	return len(e.alloc.FDs()), MetadataInts, nil
}

// Raw returns the in-process form of h: its owned fds, the wire metadata and
// the local bookkeeping ints. The fds remain owned by h.
func (r *Registry) Raw(h Handle) (RawHandle, error) {
	e, err := r.acquire(h)
	if err != nil {
		return RawHandle{}, err
	}
	defer e.mu.Unlock()
	ints := e.md.appendInts(make([]int32, 0, MetadataInts+LocalInts))
	return RawHandle{
		FDs:  slices.Clone(e.alloc.FDs()),
		Ints: append(ints, localInts(e.id)...),
	}, nil
}

// acquire looks up h and locks its entry. The entry is returned locked and
// still registered.
func (r *Registry) acquire(h Handle) (*bufferEntry, error) {
	e, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.refs == 0 {
		e.mu.Unlock()
		return nil, statusError(StatusBadBuffer, "%v was freed", h)
	}
	return e, nil
}
