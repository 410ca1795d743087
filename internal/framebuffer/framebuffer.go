/*
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package framebuffer implements the external pixel-sink collaborator
// spec.md §6 defines the interface for: a live window is out of scope
// for this CORE, but the bounded-channel sink (for a goroutine-driven
// window implementation) and the PNG-on-exit sink are provided
// (spec.md §5).
package framebuffer

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/nviennot/stm32-emulator/internal/devices"
)

// Sink satisfies devices.FramebufferSink; re-declared here so callers
// that only need the sink contract don't have to import internal/devices.
type Sink = devices.FramebufferSink

const defaultChannelCapacity = 4096

type pixelWrite struct {
	x, y   int
	rgb565 uint16
}

// ChannelSink funnels WritePixel calls through a bounded channel so a
// slow consumer (a UI goroutine) never blocks the CPU thread past a
// channel-send under one scheduler quantum; when the channel is full
// the oldest queued pixel is dropped and counted, never blocking
// (spec.md §5).
type ChannelSink struct {
	ch      chan pixelWrite
	Dropped int

	width, height int
}

// NewChannelSink constructs a sink with the given channel capacity (0
// selects the default of 4096).
func NewChannelSink(capacity int) *ChannelSink {
	if capacity <= 0 {
		capacity = defaultChannelCapacity
	}
	return &ChannelSink{ch: make(chan pixelWrite, capacity)}
}

func (c *ChannelSink) Open(width, height int, format devices.PixelFormat) error {
	c.width, c.height = width, height
	return nil
}

func (c *ChannelSink) WritePixel(x, y int, rgb565 uint16) error {
	select {
	case c.ch <- pixelWrite{x, y, rgb565}:
	default:
		// Channel full: drop the oldest entry to make room rather than
		// block the CPU thread, then retry once.
		select {
		case <-c.ch:
			c.Dropped++
		default:
		}
		select {
		case c.ch <- pixelWrite{x, y, rgb565}:
		default:
			c.Dropped++
		}
	}
	return nil
}

func (c *ChannelSink) Close() error {
	close(c.ch)
	return nil
}

// Drain is called by the UI consumer goroutine to receive queued
// pixel writes; ok is false once Close has been called and the
// channel is empty.
func (c *ChannelSink) Drain() (x, y int, rgb565 uint16, ok bool) {
	w, ok := <-c.ch
	return w.x, w.y, w.rgb565, ok
}

// PNGSink accumulates pixels into an in-memory image and writes it to
// path as a PNG on Close; writes are synchronous since this only runs
// after the run loop has already stopped (spec.md §5).
type PNGSink struct {
	path string
	img  *image.RGBA
}

func NewPNGSink(path string) *PNGSink {
	return &PNGSink{path: path}
}

func (p *PNGSink) Open(width, height int, format devices.PixelFormat) error {
	p.img = image.NewRGBA(image.Rect(0, 0, width, height))
	return nil
}

func (p *PNGSink) WritePixel(x, y int, rgb565 uint16) error {
	if p.img == nil {
		return nil
	}
	p.img.Set(x, y, rgb565ToColor(rgb565))
	return nil
}

func (p *PNGSink) Close() error {
	if p.img == nil {
		return nil
	}
	f, err := os.Create(p.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, p.img)
}

func rgb565ToColor(v uint16) color.RGBA {
	r := uint8((v>>11)&0x1F) << 3
	g := uint8((v>>5)&0x3F) << 2
	b := uint8(v&0x1F) << 3
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}
