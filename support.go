// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// FormatProber reports what a GPU can do with a texture format.
// hal.Adapter implements FormatProber.
type FormatProber interface {
	TextureFormatCapabilities(format gputypes.TextureFormat) hal.TextureFormatCapabilities
}

// Capabilities bounds what a backend can allocate.
type Capabilities struct {
	// Formats lists the pixel formats the backend can allocate.
	Formats []PixelFormat

	// Usage is the set of usage bits the backend understands.
	Usage Usage

	// MaxLayers is the largest LayerCount. 1 means no layered buffers.
	MaxLayers uint32

	// MaxDimension bounds Width and Height. BLOB width is bounded by
	// MaxBufferSize instead.
	MaxDimension uint32

	// MaxBufferSize bounds the total allocation size in bytes.
	MaxBufferSize uint64

	// HandleFDs is the number of resource slots in every handle.
	HandleFDs int

	// Prober, if set, must confirm GPU usage for the format's texture
	// equivalent.
	Prober FormatProber
}

// CapabilitiesFromLimits derives dimension, layer and size bounds from GPU
// adapter limits. Formats, Usage and HandleFDs are left for the caller.
func CapabilitiesFromLimits(l gputypes.Limits) Capabilities {
	return Capabilities{
		MaxLayers:     l.MaxTextureArrayLayers,
		MaxDimension:  l.MaxTextureDimension2D,
		MaxBufferSize: l.MaxBufferSize,
	}
}

func (c Capabilities) hasFormat(f PixelFormat) bool {
	for _, cf := range c.Formats {
		if cf == f {
			return true
		}
	}
	return false
}

// Check reports why info can never be allocated, or nil if it can.
// Structural errors are StatusBadValue; capability excess is
// StatusUnsupported. Check is pure and shared by CreateDescriptor and
// IsSupported so the two never disagree.
func (c Capabilities) Check(info BufferDescriptorInfo) error {
	switch {
	case info.Width == 0 || info.Height == 0:
		return statusError(StatusBadValue, "zero-sized %dx%d buffer", info.Width, info.Height)
	case info.LayerCount == 0:
		return statusError(StatusBadValue, "layer count is zero")
	case !info.Format.IsValid():
		return statusError(StatusBadValue, "unknown format %v", info.Format)
	case info.Usage&^c.Usage != 0:
		return statusError(StatusBadValue, "usage bits %#x are unknown to this backend", uint64(info.Usage&^c.Usage))
	case info.Format == PixelFormatBlob && info.Height != 1:
		return statusError(StatusBadValue, "BLOB buffers must have height 1, got %d", info.Height)
	case isSubsampled(info.Format) && (info.Width%2 != 0 || info.Height%2 != 0):
		return statusError(StatusBadValue, "%v needs even dimensions, got %dx%d", info.Format, info.Width, info.Height)
	}

	if info.LayerCount > max(c.MaxLayers, 1) {
		return statusError(StatusUnsupported, "%d layers requested, backend supports %d", info.LayerCount, max(c.MaxLayers, 1))
	}
	if !c.hasFormat(info.Format) {
		return statusError(StatusUnsupported, "format %v is not offered by this backend", info.Format)
	}
	if info.Usage&UsageProtected != 0 && info.Usage.CPU() != 0 {
		return statusError(StatusUnsupported, "protected buffers cannot be CPU accessible")
	}
	if info.Format != PixelFormatBlob && (info.Width > c.MaxDimension || info.Height > c.MaxDimension) {
		return statusError(StatusUnsupported, "%dx%d exceeds maximum dimension %d", info.Width, info.Height, c.MaxDimension)
	}
	size, err := MinimumSize(info, AllocationStride(info))
	if err != nil {
		return statusError(StatusUnsupported, "%v", err)
	}
	if size > c.MaxBufferSize {
		return statusError(StatusUnsupported, "%d bytes exceeds maximum buffer size %d", size, c.MaxBufferSize)
	}
	return c.checkGPU(info)
}

func (c Capabilities) checkGPU(info BufferDescriptorInfo) error {
	if !info.Usage.GPU() {
		return nil
	}
	tf := info.Format.TextureFormat()
	if tf == gputypes.TextureFormatUndefined {
		return statusError(StatusUnsupported, "format %v cannot be used as a GPU texture", info.Format)
	}
	if c.Prober == nil {
		return nil
	}
	flags := c.Prober.TextureFormatCapabilities(tf).Flags
	if info.Usage&UsageGPUTexture != 0 && flags&hal.TextureFormatCapabilitySampled == 0 {
		return statusError(StatusUnsupported, "GPU cannot sample %v", tf)
	}
	if info.Usage&UsageGPURenderTarget != 0 && flags&hal.TextureFormatCapabilityRenderAttachment == 0 {
		return statusError(StatusUnsupported, "GPU cannot render to %v", tf)
	}
	return nil
}

func isSubsampled(f PixelFormat) bool {
	return f.IsYCbCr()
}
