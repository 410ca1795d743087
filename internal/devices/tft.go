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

// FramebufferSink is the external collaborator spec.md §6 defines:
// a live window or PNG writer receiving pixel writes. Only the
// interface lives in this CORE (spec.md §1, §6).
type FramebufferSink interface {
	Open(width, height int, format PixelFormat) error
	WritePixel(x, y int, rgb565 uint16) error
	Close() error
}

type PixelFormat int

const (
	PixelFormatRGB565 PixelFormat = iota
)

// ILI9341 commands (spec.md §4.9).
const (
	tftCmdColumnAddrSet  = 0x2A
	tftCmdPageAddrSet    = 0x2B
	tftCmdMemoryWrite    = 0x2C
	tftCmdMemAccessCtrl  = 0x36
	tftCmdPixelFormatSet = 0x3A
)

// TFT is an ILI9341-style command/data state machine keyed by the
// D/CX line: command bytes select the active command, subsequent data
// bytes are its parameters or, for memory-write, a pixel stream
// (spec.md §4.9).
type TFT struct {
	name string
	log  *slog.Logger
	sink FramebufferSink

	width, height int

	cmd       byte
	params    []byte
	x1, y1    int
	x2, y2    int
	x, y      int
	inMemWrite bool
	pendingHi  byte
	haveHi     bool
}

func NewTFT(name string, width, height int, sink FramebufferSink, log *slog.Logger) *TFT {
	t := &TFT{name: name, width: width, height: height, sink: sink, log: log, x2: width - 1, y2: height - 1}
	if sink != nil {
		sink.Open(width, height, PixelFormatRGB565)
	}
	return t
}

// OnParallelWrite implements peripherals.ParallelSink.
func (t *TFT) OnParallelWrite(isCmd bool, value uint16) {
	if isCmd {
		t.beginCommand(byte(value))
		return
	}
	t.data(byte(value))
}

func (t *TFT) OnParallelRead(isCmd bool) uint16 { return 0 }

func (t *TFT) beginCommand(cmd byte) {
	t.cmd = cmd
	t.params = t.params[:0]
	t.inMemWrite = cmd == tftCmdMemoryWrite
	t.haveHi = false
	if t.inMemWrite {
		t.x, t.y = t.x1, t.y1
	}
}

func (t *TFT) data(b byte) {
	if t.inMemWrite {
		t.pixelByte(b)
		return
	}

	t.params = append(t.params, b)
	switch t.cmd {
	case tftCmdColumnAddrSet:
		if len(t.params) == 4 {
			t.x1 = int(t.params[0])<<8 | int(t.params[1])
			t.x2 = int(t.params[2])<<8 | int(t.params[3])
		}
	case tftCmdPageAddrSet:
		if len(t.params) == 4 {
			t.y1 = int(t.params[0])<<8 | int(t.params[1])
			t.y2 = int(t.params[2])<<8 | int(t.params[3])
		}
	case tftCmdMemAccessCtrl, tftCmdPixelFormatSet:
		// orientation/pixel-format bits recorded but not enforced: this
		// emulator always writes RGB565 to the sink.
	}
}

// pixelByte accumulates a big-endian RGB565 pixel pair and, once both
// bytes have arrived, writes it to the sink and advances the cursor
// (spec.md §4.9: increments x to x2, wraps to x1, increments y).
func (t *TFT) pixelByte(b byte) {
	if !t.haveHi {
		t.pendingHi = b
		t.haveHi = true
		return
	}
	pixel := uint16(t.pendingHi)<<8 | uint16(b)
	t.haveHi = false

	if t.sink != nil {
		if err := t.sink.WritePixel(t.x, t.y, pixel); err != nil {
			t.log.Warn("TFT pixel write failed", "dev", t.name, "err", err)
		}
	}

	t.x++
	if t.x > t.x2 {
		t.x = t.x1
		t.y++
		if t.y > t.y2 {
			t.y = t.y1
		}
	}
}
