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

package peripherals

import (
	"io"
	"log/slog"
	"testing"
)

type fakeI2CDevice struct {
	startAddr  uint8
	startRead  bool
	written    []byte
	readQueue  []byte
	stopped    bool
}

func (f *fakeI2CDevice) Start(addr uint8, read bool) bool {
	f.startAddr = addr
	f.startRead = read
	return true
}

func (f *fakeI2CDevice) WriteByte(b byte) bool {
	f.written = append(f.written, b)
	return true
}

func (f *fakeI2CDevice) ReadByte() byte {
	if len(f.readQueue) == 0 {
		return 0xFF
	}
	b := f.readQueue[0]
	f.readQueue = f.readQueue[1:]
	return b
}

func (f *fakeI2CDevice) Stop() { f.stopped = true }

func TestI2CWriteTransaction(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	i := NewI2C(0x40005400, "I2C1", log)
	dev := &fakeI2CDevice{}
	i.Attach(dev)

	def := i.Def()
	cr1 := def.RegisterAt(0x00)
	dr := def.RegisterAt(0x10)

	i.OnWrite(cr1, 0, 1<<i2cCR1_START)
	i.OnWrite(dr, 0, 0xA0) // 7-bit addr 0x50, write
	i.OnWrite(dr, 0, 0x10)
	i.OnWrite(dr, 0, 0x11)
	i.OnWrite(cr1, 0, 1<<i2cCR1_STOP)

	if dev.startAddr != 0x50 || dev.startRead {
		t.Fatalf("unexpected start: addr=%#x read=%v", dev.startAddr, dev.startRead)
	}
	if len(dev.written) != 2 || dev.written[0] != 0x10 || dev.written[1] != 0x11 {
		t.Fatalf("unexpected bytes written: %v", dev.written)
	}
	if !dev.stopped {
		t.Fatalf("Stop not called")
	}
}

func TestI2CReadTransaction(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	i := NewI2C(0x40005400, "I2C1", log)
	dev := &fakeI2CDevice{readQueue: []byte{0xAA, 0xBB}}
	i.Attach(dev)

	def := i.Def()
	cr1 := def.RegisterAt(0x00)
	dr := def.RegisterAt(0x10)

	i.OnWrite(cr1, 0, 1<<i2cCR1_START)
	i.OnWrite(dr, 0, 0xA1) // addr 0x50, read

	got1 := i.OnRead(dr, 0)
	got2 := i.OnRead(dr, 0)
	if got1 != 0xAA || got2 != 0xBB {
		t.Fatalf("got %#x %#x, want 0xaa 0xbb", got1, got2)
	}
}
