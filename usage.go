// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Usage is a bitmask of intended producers and consumers of a buffer.
type Usage uint64

const (
	UsageCPUReadRarely  Usage = 0x2
	UsageCPUReadOften   Usage = 0x3
	UsageCPUReadMask    Usage = 0xF
	UsageCPUWriteRarely Usage = 0x20
	UsageCPUWriteOften  Usage = 0x30
	UsageCPUWriteMask   Usage = 0xF0

	UsageGPUTexture           Usage = 1 << 8
	UsageGPURenderTarget      Usage = 1 << 9
	UsageComposerOverlay      Usage = 1 << 11
	UsageComposerClientTarget Usage = 1 << 12
	UsageProtected            Usage = 1 << 14
	UsageComposerCursor       Usage = 1 << 15
	UsageVideoEncoder         Usage = 1 << 16
	UsageCameraOutput         Usage = 1 << 17
	UsageCameraInput          Usage = 1 << 18
	UsageVideoDecoder         Usage = 1 << 22
	UsageSensorDirectData     Usage = 1 << 23
	UsageGPUDataBuffer        Usage = 1 << 24

	// UsageCPUMask covers every CPU access bit.
	UsageCPUMask = UsageCPUReadMask | UsageCPUWriteMask

	// UsageAll is every bit this package assigns a meaning to.
	UsageAll = UsageCPUMask | UsageGPUTexture | UsageGPURenderTarget |
		UsageComposerOverlay | UsageComposerClientTarget | UsageProtected |
		UsageComposerCursor | UsageVideoEncoder | UsageCameraOutput |
		UsageCameraInput | UsageVideoDecoder | UsageSensorDirectData |
		UsageGPUDataBuffer
)

// CPU returns only the CPU access bits of u.
func (u Usage) CPU() Usage { return u & UsageCPUMask }

// CPURead reports whether u requests CPU reads.
func (u Usage) CPURead() bool { return u&UsageCPUReadMask != 0 }

// CPUWrite reports whether u requests CPU writes.
func (u Usage) CPUWrite() bool { return u&UsageCPUWriteMask != 0 }

// GPU reports whether u asks the GPU to sample or render into the buffer.
func (u Usage) GPU() bool { return u&(UsageGPUTexture|UsageGPURenderTarget) != 0 }

// TextureUsage translates the GPU-facing bits of u into WebGPU texture usage.
// CPU writes become upload copies and CPU reads become readback copies.
func (u Usage) TextureUsage() gputypes.TextureUsage {
	var t gputypes.TextureUsage
	if u&UsageGPUTexture != 0 {
		t |= gputypes.TextureUsageTextureBinding
	}
	if u&UsageGPURenderTarget != 0 {
		t |= gputypes.TextureUsageRenderAttachment
	}
	if u.CPUWrite() {
		t |= gputypes.TextureUsageCopyDst
	}
	if u.CPURead() {
		t |= gputypes.TextureUsageCopySrc
	}
	return t
}

var usageNames = []struct {
	bit  Usage
	name string
}{
	{UsageGPUTexture, "GPU_TEXTURE"},
	{UsageGPURenderTarget, "GPU_RENDER_TARGET"},
	{UsageComposerOverlay, "COMPOSER_OVERLAY"},
	{UsageComposerClientTarget, "COMPOSER_CLIENT_TARGET"},
	{UsageProtected, "PROTECTED"},
	{UsageComposerCursor, "COMPOSER_CURSOR"},
	{UsageVideoEncoder, "VIDEO_ENCODER"},
	{UsageCameraOutput, "CAMERA_OUTPUT"},
	{UsageCameraInput, "CAMERA_INPUT"},
	{UsageVideoDecoder, "VIDEO_DECODER"},
	{UsageSensorDirectData, "SENSOR_DIRECT_DATA"},
	{UsageGPUDataBuffer, "GPU_DATA_BUFFER"},
}

// String returns a "|"-separated list of usage names.
func (u Usage) String() string {
	if u == 0 {
		return "NONE"
	}
	var parts []string
	switch u & UsageCPUReadMask {
	case 0:
	case UsageCPUReadRarely:
		parts = append(parts, "CPU_READ_RARELY")
	case UsageCPUReadOften:
		parts = append(parts, "CPU_READ_OFTEN")
	default:
		parts = append(parts, fmt.Sprintf("CPU_READ(%#x)", uint64(u&UsageCPUReadMask)))
	}
	switch u & UsageCPUWriteMask {
	case 0:
	case UsageCPUWriteRarely:
		parts = append(parts, "CPU_WRITE_RARELY")
	case UsageCPUWriteOften:
		parts = append(parts, "CPU_WRITE_OFTEN")
	default:
		parts = append(parts, fmt.Sprintf("CPU_WRITE(%#x)", uint64(u&UsageCPUWriteMask)))
	}
	for _, n := range usageNames {
		if u&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := u &^ UsageAll; rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}
