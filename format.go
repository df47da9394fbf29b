// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// PixelFormat identifies the memory layout of a buffer's pixels.
// Values follow the graphics HAL pixel format numbering.
type PixelFormat int32

const (
	PixelFormatRGBA8888              PixelFormat = 0x1
	PixelFormatRGBX8888              PixelFormat = 0x2
	PixelFormatRGB888                PixelFormat = 0x3
	PixelFormatRGB565                PixelFormat = 0x4
	PixelFormatBGRA8888              PixelFormat = 0x5
	PixelFormatYCrCb420SP            PixelFormat = 0x11 // NV21
	PixelFormatRGBAFP16              PixelFormat = 0x16
	PixelFormatRAW16                 PixelFormat = 0x20
	PixelFormatBlob                  PixelFormat = 0x21
	PixelFormatImplementationDefined PixelFormat = 0x22
	PixelFormatYCbCr420888           PixelFormat = 0x23
	PixelFormatRAWOpaque             PixelFormat = 0x24
	PixelFormatRAW10                 PixelFormat = 0x25
	PixelFormatRGBA1010102           PixelFormat = 0x2B
	PixelFormatY8                    PixelFormat = 0x20203859
	PixelFormatY16                   PixelFormat = 0x20363159
	PixelFormatYV12                  PixelFormat = 0x32315659
)

// UnknownStride is the sentinel reported for a bytes-per-pixel or
// bytes-per-stride value that is variable for the format.
const UnknownStride int32 = -1

// formatInfo describes how a format is laid out in memory.
type formatInfo struct {
	name string

	// bytesPerPixel is the size of one pixel in the first plane.
	// Zero for packed formats whose pixels are not byte aligned.
	bytesPerPixel int

	// planar formats carry chroma planes after the luma plane.
	planar bool

	// opaque formats have a layout private to the allocator and cannot be
	// locked for linear CPU access.
	opaque bool

	texture gputypes.TextureFormat
}

var formatInfoTable = map[PixelFormat]formatInfo{
	PixelFormatRGBA8888:              {name: "RGBA_8888", bytesPerPixel: 4, texture: gputypes.TextureFormatRGBA8Unorm},
	PixelFormatRGBX8888:              {name: "RGBX_8888", bytesPerPixel: 4, texture: gputypes.TextureFormatRGBA8Unorm},
	PixelFormatRGB888:                {name: "RGB_888", bytesPerPixel: 3},
	PixelFormatRGB565:                {name: "RGB_565", bytesPerPixel: 2},
	PixelFormatBGRA8888:              {name: "BGRA_8888", bytesPerPixel: 4, texture: gputypes.TextureFormatBGRA8Unorm},
	PixelFormatYCrCb420SP:            {name: "YCRCB_420_SP", bytesPerPixel: 1, planar: true},
	PixelFormatRGBAFP16:              {name: "RGBA_FP16", bytesPerPixel: 8, texture: gputypes.TextureFormatRGBA16Float},
	PixelFormatRAW16:                 {name: "RAW16", bytesPerPixel: 2, texture: gputypes.TextureFormatR16Uint},
	PixelFormatBlob:                  {name: "BLOB", bytesPerPixel: 1},
	PixelFormatImplementationDefined: {name: "IMPLEMENTATION_DEFINED", bytesPerPixel: 4, opaque: true, texture: gputypes.TextureFormatRGBA8Unorm},
	PixelFormatYCbCr420888:           {name: "YCBCR_420_888", bytesPerPixel: 1, planar: true},
	PixelFormatRAWOpaque:             {name: "RAW_OPAQUE", bytesPerPixel: 1, opaque: true},
	PixelFormatRAW10:                 {name: "RAW10"},
	PixelFormatRGBA1010102:           {name: "RGBA_1010102", bytesPerPixel: 4, texture: gputypes.TextureFormatRGB10A2Unorm},
	PixelFormatY8:                    {name: "Y8", bytesPerPixel: 1, texture: gputypes.TextureFormatR8Unorm},
	PixelFormatY16:                   {name: "Y16", bytesPerPixel: 2, texture: gputypes.TextureFormatR16Unorm},
	PixelFormatYV12:                  {name: "YV12", bytesPerPixel: 1, planar: true},
}

// AllPixelFormats lists every format this package knows how to lay out.
func AllPixelFormats() []PixelFormat {
	return []PixelFormat{
		PixelFormatRGBA8888, PixelFormatRGBX8888, PixelFormatRGB888, PixelFormatRGB565,
		PixelFormatBGRA8888, PixelFormatYCrCb420SP, PixelFormatRGBAFP16, PixelFormatRAW16,
		PixelFormatBlob, PixelFormatImplementationDefined, PixelFormatYCbCr420888,
		PixelFormatRAWOpaque, PixelFormatRAW10, PixelFormatRGBA1010102,
		PixelFormatY8, PixelFormatY16, PixelFormatYV12,
	}
}

// IsValid reports whether the format is known.
func (f PixelFormat) IsValid() bool {
	_, ok := formatInfoTable[f]
	return ok
}

// String returns the HAL name of the format.
func (f PixelFormat) String() string {
	if info, ok := formatInfoTable[f]; ok {
		return info.name
	}
	return fmt.Sprintf("PixelFormat(%#x)", int32(f))
}

// IsYCbCr reports whether the format stores luma and chroma in separate planes.
func (f PixelFormat) IsYCbCr() bool {
	return formatInfoTable[f].planar
}

// IsOpaque reports whether the format's layout is private to the allocator.
func (f PixelFormat) IsOpaque() bool {
	return formatInfoTable[f].opaque
}

// TextureFormat returns the GPU texture format with the same texel layout,
// or gputypes.TextureFormatUndefined if the format cannot be sampled or
// rendered as a texture.
func (f PixelFormat) TextureFormat() gputypes.TextureFormat {
	return formatInfoTable[f].texture
}
