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

package devices

import "log/slog"

// FPGA is a second pixel-bus receiver (spec.md §4.11): a command
// decoder distinguishing register writes from pixel bursts, fed either
// by software SPI (SoftSPI's SPISlave side) or by an FSMC window
// (ParallelSink). Unlike TFT, there is no addressable window: a
// register write selects a mode, and a following pixel burst streams
// sequentially into the sink starting at (0,0).
type FPGA struct {
	name string
	log  *slog.Logger
	sink FramebufferSink

	width, height int
	x, y          int

	inPixelBurst bool
	haveHi       bool
	pendingHi    byte
}

// Register commands recognized on the command channel.
const (
	fpgaRegMode       = 0x00
	fpgaRegPixelBurst = 0x01
)

func NewFPGA(name string, width, height int, sink FramebufferSink, log *slog.Logger) *FPGA {
	f := &FPGA{name: name, width: width, height: height, sink: sink, log: log}
	if sink != nil {
		sink.Open(width, height, PixelFormatRGB565)
	}
	return f
}

// OnParallelWrite implements peripherals.ParallelSink.
func (f *FPGA) OnParallelWrite(isCmd bool, value uint16) {
	if isCmd {
		f.command(byte(value))
		return
	}
	f.data(byte(value))
}

func (f *FPGA) OnParallelRead(isCmd bool) uint16 { return 0 }

// Select/Exchange implement peripherals.SPISlave, letting FPGA sit
// behind a software-SPI bridge (spec.md §4.7) instead of FSMC. SPI has
// no command channel here: every byte goes to the pixel-data path, so
// SPI bytes are dropped unless a pixel burst was started through
// OnParallelWrite.
func (f *FPGA) Select(asserted bool) {}

func (f *FPGA) Exchange(mosi byte) byte {
	f.data(mosi)
	return 0
}

func (f *FPGA) command(reg byte) {
	switch reg {
	case fpgaRegPixelBurst:
		f.inPixelBurst = true
		f.haveHi = false
		f.x, f.y = 0, 0
	default:
		f.inPixelBurst = false
	}
}

func (f *FPGA) data(b byte) {
	if !f.inPixelBurst {
		return
	}
	if !f.haveHi {
		f.pendingHi = b
		f.haveHi = true
		return
	}
	pixel := uint16(f.pendingHi)<<8 | uint16(b)
	f.haveHi = false

	if f.sink != nil {
		f.sink.WritePixel(f.x, f.y, pixel)
	}
	f.x++
	if f.x >= f.width {
		f.x = 0
		f.y++
		if f.y >= f.height {
			f.y = 0
		}
	}
}
