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

func TestTouchReportsScriptedSampleAndPenDown(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tc := NewTouch("touch0", log)

	if !tc.Level() {
		t.Fatalf("pen-down line asserted before any event")
	}

	tc.SetEvent(&TouchEvent{X: 0x0AB, Y: 0x0CD, Z1: 0x10, Z2: 0x20})
	if tc.Level() {
		t.Fatalf("pen-down line not asserted with event set")
	}

	// Control byte: start=1, A2..A0=001 (X), mode bit3=0 (12-bit).
	ctrl := byte(0x80 | (touchChanX << 4))
	tc.Select(true)
	tc.Exchange(ctrl)
	hi := tc.Exchange(0)
	lo := tc.Exchange(0)
	tc.Select(false)

	got := uint16(hi)<<4 | uint16(lo)>>4
	if got != 0x0AB {
		t.Fatalf("got %#x, want 0xab", got)
	}

	tc.SetEvent(nil)
	if !tc.Level() {
		t.Fatalf("pen-down line still asserted after clearing event")
	}
}
