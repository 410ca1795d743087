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

import (
	"io"
	"log/slog"
	"testing"
)

type recordingSink struct {
	w, h   int
	pixels map[[2]int]uint16
	closed bool
}

func newRecordingSink() *recordingSink { return &recordingSink{pixels: map[[2]int]uint16{}} }

func (s *recordingSink) Open(w, h int, format PixelFormat) error { s.w, s.h = w, h; return nil }
func (s *recordingSink) WritePixel(x, y int, rgb565 uint16) error {
	s.pixels[[2]int{x, y}] = rgb565
	return nil
}
func (s *recordingSink) Close() error { s.closed = true; return nil }

func TestTFTMemoryWriteRectangleRoundTrip(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := newRecordingSink()
	tft := NewTFT("tft0", 240, 320, sink, log)

	tft.OnParallelWrite(true, tftCmdColumnAddrSet)
	tft.OnParallelWrite(false, 0x00)
	tft.OnParallelWrite(false, 0x05)
	tft.OnParallelWrite(false, 0x00)
	tft.OnParallelWrite(false, 0x06) // x1=5, x2=6

	tft.OnParallelWrite(true, tftCmdPageAddrSet)
	tft.OnParallelWrite(false, 0x00)
	tft.OnParallelWrite(false, 0x0A)
	tft.OnParallelWrite(false, 0x00)
	tft.OnParallelWrite(false, 0x0B) // y1=10, y2=11

	tft.OnParallelWrite(true, tftCmdMemoryWrite)
	pixels := []uint16{0xF800, 0x07E0, 0x001F, 0xFFFF}
	for _, p := range pixels {
		tft.OnParallelWrite(false, p>>8)
		tft.OnParallelWrite(false, p&0xFF)
	}

	want := map[[2]int]uint16{
		{5, 10}: 0xF800, {6, 10}: 0x07E0,
		{5, 11}: 0x001F, {6, 11}: 0xFFFF,
	}
	for k, v := range want {
		if sink.pixels[k] != v {
			t.Fatalf("pixel at %v = %#04x, want %#04x", k, sink.pixels[k], v)
		}
	}
}
