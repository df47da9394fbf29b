// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"fmt"
	"os"
	"slices"
)

// RawHandle is an unvalidated bundle of OS resource references describing a
// buffer, as received from an allocator or from another process.
type RawHandle struct {
	FDs  []int
	Ints []int32
}

// Clone returns a deep copy of h.
func (h RawHandle) Clone() RawHandle {
	return RawHandle{FDs: slices.Clone(h.FDs), Ints: slices.Clone(h.Ints)}
}

// Handle is a process-local imported buffer. It is valid from the Import that
// created it until the matching Free, in every BufferMapper that shares the
// same Registry. The zero Handle is never valid.
type Handle struct {
	id uint64
}

// ID returns the registry identity of h.
func (h Handle) ID() uint64 { return h.id }

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.id == 0 }

// String implements fmt.Stringer.
func (h Handle) String() string { return fmt.Sprintf("buffer#%d", h.id) }

// BufferMetadata is the wire payload carried in a handle's integer slots.
type BufferMetadata struct {
	Info   BufferDescriptorInfo
	Stride uint32
	Size   uint64
}

const (
	metadataMagic int32 = 0x47424d44 // "GBMD"
	localMagic    int32 = 0x47424c43 // "GBLC"

	// MetadataInts is the number of wire integers every handle carries.
	MetadataInts = 10

	// LocalInts is the number of bookkeeping integers Import appends.
	LocalInts = 4
)

// NewRawHandle assembles the wire form of a buffer. Allocators call it after
// creating the backing store.
func NewRawHandle(fds []int, md BufferMetadata) RawHandle {
	return RawHandle{FDs: slices.Clone(fds), Ints: md.appendInts(make([]int32, 0, MetadataInts))}
}

func (md BufferMetadata) appendInts(dst []int32) []int32 {
	return append(dst,
		metadataMagic,
		int32(md.Info.Width),
		int32(md.Info.Height),
		int32(md.Info.LayerCount),
		int32(md.Info.Format),
		int32(uint32(md.Info.Usage)),
		int32(uint32(md.Info.Usage>>32)),
		int32(md.Stride),
		int32(uint32(md.Size)),
		int32(uint32(md.Size>>32)),
	)
}

func parseMetadata(ints []int32) (BufferMetadata, error) {
	if len(ints) < MetadataInts || ints[0] != metadataMagic {
		return BufferMetadata{}, statusError(StatusBadBuffer, "handle metadata is missing or has a bad magic")
	}
	md := BufferMetadata{
		Info: BufferDescriptorInfo{
			Width:      uint32(ints[1]),
			Height:     uint32(ints[2]),
			LayerCount: uint32(ints[3]),
			Format:     PixelFormat(ints[4]),
			Usage:      Usage(uint32(ints[5])) | Usage(uint32(ints[6]))<<32,
		},
		Stride: uint32(ints[7]),
		Size:   uint64(uint32(ints[8])) | uint64(uint32(ints[9]))<<32,
	}
	if md.Info.Width == 0 || md.Info.Height == 0 || md.Info.LayerCount == 0 || !md.Info.Format.IsValid() {
		return BufferMetadata{}, statusError(StatusBadBuffer, "handle describes an invalid %dx%dx%d %v buffer",
			md.Info.Width, md.Info.Height, md.Info.LayerCount, md.Info.Format)
	}
	return md, nil
}

// splitWire validates raw's slot counts and strips any local bookkeeping
// appended by a previous import, in this process or another one.
func splitWire(raw RawHandle, numFDs int) (fds []int, md BufferMetadata, err error) {
	if len(raw.FDs) != numFDs {
		return nil, BufferMetadata{}, statusError(StatusBadBuffer, "handle has %d fds, want %d", len(raw.FDs), numFDs)
	}
	for _, fd := range raw.FDs {
		if fd < 0 {
			return nil, BufferMetadata{}, statusError(StatusBadBuffer, "handle has invalid fd %d", fd)
		}
	}
	switch len(raw.Ints) {
	case MetadataInts:
	case MetadataInts + LocalInts:
		if raw.Ints[MetadataInts] != localMagic {
			return nil, BufferMetadata{}, statusError(StatusBadBuffer, "handle has unrecognized trailing ints")
		}
	default:
		return nil, BufferMetadata{}, statusError(StatusBadBuffer, "handle has %d ints, want %d or %d",
			len(raw.Ints), MetadataInts, MetadataInts+LocalInts)
	}
	md, err = parseMetadata(raw.Ints[:MetadataInts])
	if err != nil {
		return nil, BufferMetadata{}, err
	}
	return raw.FDs, md, nil
}

// localInts returns the bookkeeping appended to an imported handle.
func localInts(id uint64) []int32 {
	return []int32{localMagic, int32(os.Getpid()), int32(uint32(id)), int32(uint32(id >> 32))}
}
