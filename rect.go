// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gralloc

import "image"

// Rect is a CPU access region in pixels.
type Rect struct {
	Left   int32
	Top    int32
	Width  int32
	Height int32
}

// FullRect returns the region covering a whole width×height buffer.
func FullRect(width, height uint32) Rect {
	return Rect{Width: int32(width), Height: int32(height)}
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(int(r.Left), int(r.Top), int(r.Left)+int(r.Width), int(r.Top)+int(r.Height))
}

// within reports whether r lies inside a width×height buffer.
func (r Rect) within(width, height uint32) bool {
	if r.Left < 0 || r.Top < 0 || r.Width < 0 || r.Height < 0 {
		return false
	}
	return int64(r.Left)+int64(r.Width) <= int64(width) &&
		int64(r.Top)+int64(r.Height) <= int64(height)
}
