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

type fakeMem struct {
	data map[uint32]uint32
}

func newFakeMem() *fakeMem { return &fakeMem{data: map[uint32]uint32{}} }

func (m *fakeMem) Read(pc, addr uint32, width int) uint32 { return m.data[addr] }
func (m *fakeMem) Write(pc, addr uint32, width int, value uint32) {
	m.data[addr] = value
}

func TestDMAPeriphToMemTransfersAndCompletes(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := newFakeMem()
	mem.data[0x40011004] = 0x55 // USART1 DR-like source address.

	d := NewDMA(0x40026000, "DMA2", mem, log)
	def := d.Def()

	par := def.RegisterAt(0x10 + 0x08)  // S0PAR
	m0ar := def.RegisterAt(0x10 + 0x0C) // S0M0AR
	ndtr := def.RegisterAt(0x10 + 0x04) // S0NDTR
	cr := def.RegisterAt(0x10 + 0x00)   // S0CR

	d.OnWrite(par, 0, 0x40011004)
	d.OnWrite(m0ar, 0, 0x20000000)
	d.OnWrite(ndtr, 0, 1)

	completed := false
	d.OnStreamComplete(0, func() { completed = true })

	d.OnWrite(cr, 0, 1<<dmaCR_EN) // periph->mem is DIR=00.

	d.Trigger(0, 4)

	if mem.data[0x20000000] != 0x55 {
		t.Fatalf("destination = %#x, want 0x55", mem.data[0x20000000])
	}
	if !completed {
		t.Fatalf("completion callback not invoked")
	}
	if d.streams[0].enabled() {
		t.Fatalf("non-circular stream still enabled after completion")
	}
}

func TestDMACircularReload(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := newFakeMem()
	d := NewDMA(0x40026000, "DMA1", mem, log)
	def := d.Def()

	ndtr := def.RegisterAt(0x10 + 0x04)
	m0ar := def.RegisterAt(0x10 + 0x0C)
	cr := def.RegisterAt(0x10 + 0x00)

	d.OnWrite(ndtr, 0, 3)
	d.OnWrite(m0ar, 0, 0x20000000)
	// Arming fires the first unit itself (see the CR case in OnWrite),
	// so two more explicit triggers complete this 3-unit cycle.
	d.OnWrite(cr, 0, 1<<dmaCR_EN|1<<dmaCR_CIRC)

	d.Trigger(0, 4)
	d.Trigger(0, 4)

	if d.streams[0].ndtr != 3 {
		t.Fatalf("ndtr after circular reload = %d, want 3", d.streams[0].ndtr)
	}
	if d.streams[0].m0ar != 0x20000000 {
		t.Fatalf("m0ar after circular reload = %#x, want 0x20000000", d.streams[0].m0ar)
	}
	if !d.streams[0].enabled() {
		t.Fatalf("circular stream disabled after completion")
	}
}
