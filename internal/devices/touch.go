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

// touch channel selects within the ADS7846 control byte (spec.md §4.10).
const (
	touchChanX  = 1
	touchChanY  = 5
	touchChanZ1 = 3
	touchChanZ2 = 4
)

// TouchEvent is a scripted press: X/Y/Z1/Z2 samples asserted for the
// event's duration (spec.md §4.10, §4.7's pen-down GPIO line).
type TouchEvent struct {
	X, Y, Z1, Z2 uint16
}

// Touch is an ADS7846-style SPI touch controller: a control byte
// selects channel/mode/reference, then 1-2 bytes clock out the ADC
// result MSB-first, left-aligned within the selected width.
type Touch struct {
	name string
	log  *slog.Logger

	event   *TouchEvent
	penDown bool

	ctrl    byte
	result  uint16
	resultW int // 8 or 12.
	byteIdx int
}

func NewTouch(name string, log *slog.Logger) *Touch {
	return &Touch{name: name, log: log}
}

// SetEvent arms (or, with nil, clears) the pending touch sample the
// next transaction observes, and asserts the pen-down line while set.
func (t *Touch) SetEvent(e *TouchEvent) {
	t.event = e
	t.penDown = e != nil
}

// Level implements peripherals.PinDriver for the pen-down GPIO line:
// active-low per ADS7846 convention (asserted = 0).
func (t *Touch) Level() bool { return !t.penDown }

func (t *Touch) Select(asserted bool) {
	if asserted {
		t.byteIdx = 0
	}
}

func (t *Touch) Exchange(mosi byte) byte {
	if mosi&0x80 != 0 {
		t.ctrl = mosi
		t.resultW = 12
		if mosi&0x08 != 0 {
			t.resultW = 8
		}
		t.result = t.sample(channelOf(mosi))
		t.byteIdx = 0
		return 0
	}

	shift := t.resultW - 8*(t.byteIdx+1)
	var b byte
	if shift >= 0 {
		b = byte(t.result >> uint(shift))
	} else {
		b = byte(t.result << uint(-shift))
	}
	t.byteIdx++
	return b
}

func channelOf(ctrl byte) int { return int(ctrl>>4) & 0x7 }

func (t *Touch) sample(channel int) uint16 {
	if t.event == nil {
		return 0
	}
	switch channel {
	case touchChanX:
		return t.event.X
	case touchChanY:
		return t.event.Y
	case touchChanZ1:
		return t.event.Z1
	case touchChanZ2:
		return t.event.Z2
	default:
		return 0
	}
}
