// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"sync"

	"github.com/gogpu/gralloc"
)

// Arena is an in-process table of reference-counted memory blocks addressed
// by slot numbers. Slots play the role of file descriptors: several slots
// may refer to one block, and the block is dropped when its last slot is
// closed.
type Arena struct {
	mu    sync.Mutex
	slots map[int]*block
	next  int
}

type block struct {
	data []byte
	refs int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{slots: make(map[int]*block), next: 1}
}

// open stores data under a new slot.
func (a *Arena) open(data []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.insertLocked(&block{data: data})
}

func (a *Arena) insertLocked(b *block) int {
	slot := a.next
	a.next++
	b.refs++
	a.slots[slot] = b
	return slot
}

// dup returns a new slot referring to the same block as slot.
func (a *Arena) dup(slot int) (int, *block, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.slots[slot]
	if !ok {
		return 0, nil, gralloc.ErrBadBuffer
	}
	return a.insertLocked(b), b, nil
}

// close releases slot.
func (a *Arena) close(slot int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.slots[slot]
	if !ok {
		return gralloc.ErrBadBuffer
	}
	delete(a.slots, slot)
	b.refs--
	if b.refs == 0 {
		b.data = nil
	}
	return nil
}

// Slots returns the number of open slots.
func (a *Arena) Slots() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots)
}

// Blocks returns the number of live memory blocks.
func (a *Arena) Blocks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := make(map[*block]struct{}, len(a.slots))
	for _, b := range a.slots {
		seen[b] = struct{}{}
	}
	return len(seen)
}
