// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command grallocinfo prints a backend's capabilities and runs one buffer
// through allocate, import, lock, unlock and free.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/gralloc"
	_ "github.com/gogpu/gralloc/backend/shm"
	"github.com/gogpu/gralloc/backend/software"
)

// allocator is implemented by the reference allocators of the bundled
// backends.
type allocator interface {
	Allocate(d gralloc.BufferDescriptor) (gralloc.RawHandle, error)
	Release(raw gralloc.RawHandle) error
}

func main() {
	var (
		backend = flag.String("backend", "", "backend name (empty selects the best available)")
		width   = flag.Uint("width", 64, "buffer width")
		height  = flag.Uint("height", 64, "buffer height")
		format  = flag.String("format", "RGBA_8888", "pixel format name")
		output  = flag.String("output", "", "write the locked RGBA_8888 buffer to this PNG file")
		verbose = flag.Bool("v", false, "log buffer lifecycle at debug level")
	)
	flag.Parse()

	if *verbose {
		gralloc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	f, ok := parseFormat(*format)
	if !ok {
		log.Fatalf("Unknown format %q", *format)
	}

	var opts []gralloc.MapperOption
	if dev := software.Default().Device(); dev != nil {
		opts = append(opts, gralloc.WithFenceWaiter(dev))
	}
	m, err := gralloc.OpenMapper(*backend, opts...)
	if err != nil {
		log.Fatalf("Failed to open mapper: %v", err)
	}

	printCapabilities(m.Backend())

	info := gralloc.BufferDescriptorInfo{
		Width:      uint32(*width),
		Height:     uint32(*height),
		LayerCount: 1,
		Format:     f,
		Usage:      gralloc.UsageCPUReadOften | gralloc.UsageCPUWriteOften,
	}
	if err := run(m, info, *output); err != nil {
		log.Fatalf("Scenario failed (%v): %v", gralloc.StatusOf(err), err)
	}
}

func parseFormat(name string) (gralloc.PixelFormat, bool) {
	for _, f := range gralloc.AllPixelFormats() {
		if strings.EqualFold(f.String(), name) {
			return f, true
		}
	}
	return 0, false
}

func printCapabilities(b gralloc.Backend) {
	caps := b.Capabilities()
	fmt.Printf("backend:        %s (available: %s)\n", b.Name(), strings.Join(gralloc.AvailableBackends(), ", "))
	fmt.Printf("max dimension:  %d\n", caps.MaxDimension)
	fmt.Printf("max layers:     %d\n", caps.MaxLayers)
	fmt.Printf("max size:       %d bytes\n", caps.MaxBufferSize)
	fmt.Printf("handle fds:     %d\n", caps.HandleFDs)
	names := make([]string, len(caps.Formats))
	for i, f := range caps.Formats {
		names[i] = f.String()
	}
	fmt.Printf("formats:        %s\n", strings.Join(names, " "))
}

func run(m *gralloc.BufferMapper, info gralloc.BufferDescriptorInfo, output string) error {
	alloc, ok := m.Backend().(allocator)
	if !ok {
		return fmt.Errorf("backend %s has no reference allocator", m.Backend().Name())
	}

	d, err := m.CreateDescriptor(info)
	if err != nil {
		return fmt.Errorf("create descriptor: %w", err)
	}
	raw, err := alloc.Allocate(d)
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}
	defer func() {
		if err := alloc.Release(raw); err != nil {
			log.Printf("Release: %v", err)
		}
	}()

	h, err := m.ImportBuffer(raw)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer func() {
		if err := m.FreeBuffer(h); err != nil {
			log.Printf("Free: %v", err)
		}
	}()

	numFDs, numInts, err := m.GetTransportSize(h)
	if err != nil {
		return fmt.Errorf("transport size: %w", err)
	}
	fmt.Printf("imported %v: %dx%d %v, transport %d fds + %d ints\n",
		h, info.Width, info.Height, info.Format, numFDs, numInts)

	if info.Format.IsYCbCr() {
		ly, err := m.LockYCbCr(h, gralloc.UsageCPUWriteOften, gralloc.FullRect(info.Width, info.Height), gralloc.NoFence)
		if err != nil {
			return fmt.Errorf("lock ycbcr: %w", err)
		}
		fmt.Printf("planes: y@%d cb@%d cr@%d ystride=%d cstride=%d step=%d\n",
			ly.Layout.YOffset, ly.Layout.CbOffset, ly.Layout.CrOffset,
			ly.Layout.YStride, ly.Layout.CStride, ly.Layout.ChromaStep)
	} else {
		lb, err := m.Lock(h, gralloc.UsageCPUWriteOften, gralloc.FullRect(info.Width, info.Height), gralloc.NoFence)
		if err != nil {
			return fmt.Errorf("lock: %w", err)
		}
		fmt.Printf("locked %d bytes, %d bytes/pixel, %d bytes/row\n", len(lb.Data), lb.BytesPerPixel, lb.BytesPerStride)
		if info.Format == gralloc.PixelFormatRGBA8888 {
			img := &image.RGBA{
				Pix:    lb.Data,
				Stride: int(lb.BytesPerStride),
				Rect:   image.Rect(0, 0, int(info.Width), int(info.Height)),
			}
			drawGradient(img)
			if output != "" {
				if err := savePNG(output, img); err != nil {
					_, _ = m.Unlock(h)
					return err
				}
				log.Printf("Buffer saved to %s", output)
			}
		}
	}

	if _, err := m.Unlock(h); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	fmt.Println("unlock ok")
	return nil
}

func drawGradient(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8(255 * x / max(b.Dx()-1, 1))
			img.Pix[i+1] = uint8(255 * y / max(b.Dy()-1, 1))
			img.Pix[i+2] = 0x80
			img.Pix[i+3] = 0xFF
		}
	}
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
