// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"encoding/binary"

	"github.com/gogpu/gputypes"
)

// BufferDescriptorInfo describes the shape of a buffer to allocate.
type BufferDescriptorInfo struct {
	Width      uint32
	Height     uint32
	LayerCount uint32
	Format     PixelFormat
	Usage      Usage
}

// Extent returns the buffer size as a WebGPU extent with layers as depth.
func (i BufferDescriptorInfo) Extent() gputypes.Extent3D {
	return gputypes.NewExtent3D(i.Width, i.Height, i.LayerCount)
}

// TextureDescriptor describes a GPU texture that can alias the buffer.
// Format is gputypes.TextureFormatUndefined when the pixel format has no
// texture equivalent.
func (i BufferDescriptorInfo) TextureDescriptor(label string) gputypes.TextureDescriptor {
	return gputypes.TextureDescriptor{
		Label:         label,
		Size:          i.Extent(),
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        i.Format.TextureFormat(),
		Usage:         i.Usage.TextureUsage(),
	}
}

// BufferDescriptor is the encoded form of a validated BufferDescriptorInfo.
// It is opaque to clients and consumed by allocators via DecodeDescriptor.
type BufferDescriptor []byte

const (
	descriptorMagic   uint32 = 0x47524144 // "GRAD"
	descriptorVersion uint32 = 1
	descriptorSize           = 32
)

// EncodeDescriptor serializes info without validating it.
// Mappers validate against their backend before encoding; see
// BufferMapper.CreateDescriptor.
func EncodeDescriptor(info BufferDescriptorInfo) BufferDescriptor {
	b := make([]byte, 0, descriptorSize)
	b = binary.LittleEndian.AppendUint32(b, descriptorMagic)
	b = binary.LittleEndian.AppendUint32(b, descriptorVersion)
	b = binary.LittleEndian.AppendUint32(b, info.Width)
	b = binary.LittleEndian.AppendUint32(b, info.Height)
	b = binary.LittleEndian.AppendUint32(b, info.LayerCount)
	b = binary.LittleEndian.AppendUint32(b, uint32(info.Format))
	b = binary.LittleEndian.AppendUint64(b, uint64(info.Usage))
	return b
}

// DecodeDescriptor parses a descriptor produced by EncodeDescriptor.
func DecodeDescriptor(d BufferDescriptor) (BufferDescriptorInfo, error) {
	if len(d) != descriptorSize {
		return BufferDescriptorInfo{}, statusError(StatusBadValue, "descriptor is %d bytes, want %d", len(d), descriptorSize)
	}
	if m := binary.LittleEndian.Uint32(d[0:]); m != descriptorMagic {
		return BufferDescriptorInfo{}, statusError(StatusBadValue, "descriptor magic %#x", m)
	}
	if v := binary.LittleEndian.Uint32(d[4:]); v != descriptorVersion {
		return BufferDescriptorInfo{}, statusError(StatusBadValue, "descriptor version %d", v)
	}
	return BufferDescriptorInfo{
		Width:      binary.LittleEndian.Uint32(d[8:]),
		Height:     binary.LittleEndian.Uint32(d[12:]),
		LayerCount: binary.LittleEndian.Uint32(d[16:]),
		Format:     PixelFormat(binary.LittleEndian.Uint32(d[20:])),
		Usage:      Usage(binary.LittleEndian.Uint64(d[24:])),
	}, nil
}
