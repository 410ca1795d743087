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

func TestFPGAPixelBurst(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := newRecordingSink()
	f := NewFPGA("fpga0", 4, 4, sink, log)

	f.OnParallelWrite(true, fpgaRegPixelBurst)
	f.OnParallelWrite(false, 0x00)
	f.OnParallelWrite(false, 0xFF) // pixel (0,0) = 0x00FF

	if sink.pixels[[2]int{0, 0}] != 0x00FF {
		t.Fatalf("pixel (0,0) = %#04x, want 0x00ff", sink.pixels[[2]int{0, 0}])
	}
}

func TestSoftSPIReconstructsByte(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	slave := &echoSPISlave{}
	s := NewSoftSPI("softspi0", slave, log)

	s.OnCS(true)
	bits := []bool{true, false, true, false, true, false, true, false} // 0xAA
	for _, b := range bits {
		s.OnSCK(false, b)
		s.OnSCK(true, b)
	}
	s.OnCS(false)

	if len(slave.received) != 1 || slave.received[0] != 0xAA {
		t.Fatalf("slave received %v, want [0xaa]", slave.received)
	}
}

type echoSPISlave struct {
	received []byte
}

func (e *echoSPISlave) Select(asserted bool) {}
func (e *echoSPISlave) Exchange(mosi byte) byte {
	e.received = append(e.received, mosi)
	return mosi
}

func TestI2CEEPROMWriteThenSequentialRead(t *testing.T) {
	e := NewI2CEEPROM("eeprom0", 256, nil)

	e.Start(0x50, false)
	e.WriteByte(0x10) // address
	e.WriteByte(0xAB)
	e.WriteByte(0xCD)
	e.Stop()

	e.Start(0x50, false)
	e.WriteByte(0x10) // re-point address for the read.
	e.Stop()

	e.Start(0x50, true)
	got1 := e.ReadByte()
	got2 := e.ReadByte()
	e.Stop()

	if got1 != 0xAB || got2 != 0xCD {
		t.Fatalf("got %#x %#x, want 0xab 0xcd", got1, got2)
	}
}

func TestGPIOActorScriptedSteps(t *testing.T) {
	a := NewGPIOActor("card-detect", false, []GPIOActorStep{
		{TSC: 100, Level: true},
		{TSC: 200, Level: false},
	})

	if a.Level() {
		t.Fatalf("actor level true before any step")
	}
	a.Advance(150)
	if !a.Level() {
		t.Fatalf("actor level false after first step reached")
	}
	a.Advance(250)
	if a.Level() {
		t.Fatalf("actor level true after second step reached")
	}
}
