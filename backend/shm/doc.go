// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shm provides the Linux shared-memory gralloc backend.
//
// Buffers are anonymous memory files (memfd). A raw handle carries one file
// descriptor; importing it duplicates the descriptor, so the importer and
// the sender close theirs independently. Locking maps the whole file
// MAP_SHARED, and unlocking after a write lock msyncs the mapping.
//
// Imported files must carry F_SEAL_SHRINK. A file that could be truncated
// after mapping would raise SIGBUS on access, so unsealed memfds and regular
// files are rejected with gralloc.StatusBadBuffer.
//
// The backend registers itself as "shm" on import and is preferred over the
// software backend:
//
//	import _ "github.com/gogpu/gralloc/backend/shm"
//
//	m, err := gralloc.OpenMapper("")
//
// Allocate is a reference allocator for tests and demos; production buffers
// normally come from a separate allocator process.
//
// On platforms other than Linux the package is empty and registers nothing.
package shm
