// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"math"
	"math/bits"
)

const (
	// StrideAlignment is the pixel alignment reference allocators apply to
	// row strides.
	StrideAlignment = 16

	// chromaStrideAlignment is the byte alignment of YV12 chroma rows.
	chromaStrideAlignment = 16
)

// YCbCrLayout locates the planes of a YCbCr buffer relative to its origin.
// ChromaStep is the distance in bytes between consecutive chroma samples of
// one plane: 1 for fully planar layouts, 2 for interleaved chroma.
type YCbCrLayout struct {
	YOffset    int
	CbOffset   int
	CrOffset   int
	YStride    int
	CStride    int
	ChromaStep int
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}

// rowBytes returns the byte length of one row of the first plane.
func rowBytes(f PixelFormat, stride uint32) uint64 {
	if f == PixelFormatRAW10 {
		return uint64(stride) * 10 / 8
	}
	return uint64(stride) * uint64(formatInfoTable[f].bytesPerPixel)
}

// AllocationStride returns the stride in pixels a reference allocator uses
// for info. BLOB buffers are packed; everything else is padded to
// StrideAlignment pixels.
func AllocationStride(info BufferDescriptorInfo) uint32 {
	if info.Format == PixelFormatBlob {
		return info.Width
	}
	return uint32(alignUp(uint64(info.Width), StrideAlignment))
}

// PlaneLayout derives the plane offsets of a planar buffer whose luma rows
// are stride bytes apart. YCBCR_420_888 is realized as NV12 so media codecs
// that expect semi-planar flexible YUV can consume it directly.
func PlaneLayout(info BufferDescriptorInfo, stride uint32) (YCbCrLayout, error) {
	if stride < info.Width {
		return YCbCrLayout{}, statusError(StatusBadValue, "stride %d is less than width %d", stride, info.Width)
	}
	ySize := int(stride) * int(info.Height)
	chromaRows := int(info.Height+1) / 2

	switch info.Format {
	case PixelFormatYV12:
		cStride := int(alignUp(uint64(stride/2), chromaStrideAlignment))
		return YCbCrLayout{
			YOffset:    0,
			CrOffset:   ySize,
			CbOffset:   ySize + cStride*chromaRows,
			YStride:    int(stride),
			CStride:    cStride,
			ChromaStep: 1,
		}, nil
	case PixelFormatYCrCb420SP:
		return YCbCrLayout{
			YOffset:    0,
			CrOffset:   ySize,
			CbOffset:   ySize + 1,
			YStride:    int(stride),
			CStride:    int(stride),
			ChromaStep: 2,
		}, nil
	case PixelFormatYCbCr420888:
		return YCbCrLayout{
			YOffset:    0,
			CbOffset:   ySize,
			CrOffset:   ySize + 1,
			YStride:    int(stride),
			CStride:    int(stride),
			ChromaStep: 2,
		}, nil
	default:
		return YCbCrLayout{}, statusError(StatusBadBuffer, "format %v is not planar", info.Format)
	}
}

// layerSize returns the bytes one layer of info occupies at stride.
// ok is false if the size does not fit in 64 bits.
func layerSize(info BufferDescriptorInfo, stride uint32) (size uint64, ok bool) {
	h := uint64(info.Height)
	var luma, chroma uint64
	switch info.Format {
	case PixelFormatBlob:
		return uint64(info.Width), true
	case PixelFormatYV12:
		luma = uint64(stride) * h
		chroma = 2 * alignUp(uint64(stride/2), chromaStrideAlignment) * ((h + 1) / 2)
	case PixelFormatYCrCb420SP, PixelFormatYCbCr420888:
		luma = uint64(stride) * h
		chroma = uint64(stride) * ((h + 1) / 2)
	default:
		hi, lo := bits.Mul64(rowBytes(info.Format, stride), h)
		return lo, hi == 0
	}
	size, carry := bits.Add64(luma, chroma, 0)
	return size, carry == 0
}

// MinimumSize returns the smallest backing store that can hold info with
// rows stride pixels apart.
func MinimumSize(info BufferDescriptorInfo, stride uint32) (uint64, error) {
	if !info.Format.IsValid() {
		return 0, statusError(StatusBadValue, "unknown format %v", info.Format)
	}
	if stride < info.Width {
		return 0, statusError(StatusBadValue, "stride %d is less than width %d", stride, info.Width)
	}
	layers := uint64(info.LayerCount)
	if layers == 0 {
		layers = 1
	}
	per, ok := layerSize(info, stride)
	hi, total := bits.Mul64(per, layers)
	if !ok || hi != 0 {
		return 0, statusError(StatusBadValue, "size of %dx%d×%d overflows", info.Width, info.Height, layers)
	}
	return total, nil
}

// FlatStrides returns the bytes-per-pixel and bytes-per-stride reported by
// a flat lock. Either is UnknownStride when the format does not have a
// single fixed value.
func FlatStrides(f PixelFormat, stride uint32) (bytesPerPixel, bytesPerStride int32) {
	info := formatInfoTable[f]
	if info.planar {
		return UnknownStride, UnknownStride
	}
	bytesPerPixel = UnknownStride
	if info.bytesPerPixel > 0 {
		bytesPerPixel = int32(info.bytesPerPixel)
	}
	bytesPerStride = UnknownStride
	if rb := rowBytes(f, stride); rb > 0 && rb <= math.MaxInt32 {
		bytesPerStride = int32(rb)
	}
	return bytesPerPixel, bytesPerStride
}
