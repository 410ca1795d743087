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

	"github.com/nviennot/stm32-emulator/internal/bus"
	"github.com/nviennot/stm32-emulator/internal/peripheral"
)

type echoSlave struct {
	selected bool
	received []byte
}

func (e *echoSlave) Select(asserted bool) { e.selected = asserted }
func (e *echoSlave) Exchange(mosi byte) byte {
	e.received = append(e.received, mosi)
	return mosi ^ 0xFF
}

func TestSPI8BitExchange(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSPI(0x40013000, "SPI1", log)
	slave := &echoSlave{}
	s.Attach(slave)
	s.SetSelect(true)

	def := s.Def()
	dr := def.RegisterAt(0x0C)
	s.OnWrite(dr, 0, 0x42)
	got := s.OnRead(dr, 0)
	if got != uint32(0x42^0xFF) {
		t.Fatalf("got %#x, want %#x", got, 0x42^0xFF)
	}
	if len(slave.received) != 1 || slave.received[0] != 0x42 {
		t.Fatalf("slave received %v, want [0x42]", slave.received)
	}
}

func TestSPI16BitFrameMSBFirst(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSPI(0x40013000, "SPI1", log)
	slave := &echoSlave{}
	s.Attach(slave)
	s.SetSelect(true)

	def := s.Def()
	cr1 := def.RegisterAt(0x00)
	s.OnWrite(cr1, 0, 1<<spiCR1_DFF)

	dr := def.RegisterAt(0x0C)
	s.OnWrite(dr, 0, 0xAB12)

	if len(slave.received) != 2 || slave.received[0] != 0xAB || slave.received[1] != 0x12 {
		t.Fatalf("slave received %v, want [0xab 0x12] (MSB first)", slave.received)
	}
}

// TestSPIDMAFeedsDRFromMemory mirrors
// TestUSARTDMAFeedsDRFromMemory (spec.md §4.5, §8 scenario 5) for the
// SPI side of the DMA-request hook: a memory-to-peripheral stream
// armed against a mounted SPI's DR clocks a whole buffer out to the
// attached slave with no further firmware action.
func TestSPIDMAFeedsDRFromMemory(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(log)

	const ramBase = 0x20000000
	if err := b.MapRegion(&bus.Region{Start: ramBase, Len: 0x20000, Name: "RAM", Kind: bus.RAM}); err != nil {
		t.Fatalf("mapping RAM: %v", err)
	}

	s := NewSPI(0x40013000, "SPI1", log)
	slave := &echoSlave{}
	s.Attach(slave)
	s.SetSelect(true)
	sf := peripheral.NewFramework(s, s.Def(), log)
	if err := b.MapRegion(&bus.Region{Start: s.Base(), Len: 0x400, Name: "SPI1", Kind: bus.Device, Handler: sf}); err != nil {
		t.Fatalf("mapping SPI1: %v", err)
	}

	msg := []byte{0x11, 0x22, 0x33, 0x44}
	const bufAddr = ramBase + 0x200
	for i, bb := range msg {
		b.Write(0, bufAddr+uint32(i), 1, uint32(bb))
	}

	d := NewDMA(0x40026000, "DMA2", b, log)
	def := d.Def()
	par := def.RegisterAt(0x10 + 0x08)
	m0ar := def.RegisterAt(0x10 + 0x0C)
	ndtr := def.RegisterAt(0x10 + 0x04)
	cr := def.RegisterAt(0x10 + 0x00)

	d.OnWrite(par, 0, s.Base()+0x0C) // SPI1 DR.
	d.OnWrite(m0ar, 0, bufAddr)
	d.OnWrite(ndtr, 0, uint32(len(msg)))

	s.SetDMARequest(func() { d.TriggerAuto(0) })

	d.OnWrite(cr, 0, 1<<dmaCR_EN|1<<dmaCR_DIR0) // mem->periph, DIR=01.

	if len(slave.received) != len(msg) {
		t.Fatalf("slave received %v, want %v", slave.received, msg)
	}
	for i, want := range msg {
		if slave.received[i] != want {
			t.Fatalf("slave received %v, want %v", slave.received, msg)
		}
	}
	if d.streams[0].enabled() {
		t.Fatalf("non-circular stream still enabled after draining")
	}
}

func TestSPISelectPropagates(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSPI(0x40013000, "SPI3", log)
	slave := &echoSlave{}
	s.Attach(slave)

	s.SetSelect(true)
	if !slave.selected {
		t.Fatalf("slave not selected")
	}
	s.SetSelect(false)
	if slave.selected {
		t.Fatalf("slave still selected")
	}
}
