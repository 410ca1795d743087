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
	"log/slog"

	"github.com/nviennot/stm32-emulator/internal/svd"
)

// SPISlave is an external device attached to a SPI peripheral's MOSI/
// MISO lines (spec.md §4.8's flash, §4.9's TFT, §4.10's touch). Select
// reports chip-select transitions; Exchange clocks one byte out (mosi)
// and returns the byte simultaneously clocked in (full duplex, per
// spec.md §3 invariant).
type SPISlave interface {
	Select(asserted bool)
	Exchange(mosi byte) (miso byte)
}

const (
	spiCR1_DFF = 11 // 0=8-bit, 1=16-bit frame.
	spiSR_TXE  = 1
	spiSR_RXNE = 0
)

// SPI models CR1/CR2/SR/DR closely enough to stream full-duplex bytes
// to an attached slave, including 16-bit-frame decomposition into two
// MSB-first bytes (spec.md §4.8 "must operate correctly... 16-bit
// frames").
type SPI struct {
	base uint32
	name string
	log  *slog.Logger

	cr1 uint32
	sr  uint32
	rx  uint32

	slave    SPISlave
	selected bool

	// dmaRequest, if set, is called after every DR access completes,
	// modeling the TXE/RXNE trigger condition a DMA stream is armed
	// against (spec.md §4.5); System.Boot wires it to that stream's
	// Trigger.
	dmaRequest func()
}

func NewSPI(base uint32, name string, log *slog.Logger) *SPI {
	return &SPI{base: base, name: name, log: log, sr: 1 << spiSR_TXE}
}

func (s *SPI) Name() string { return s.name }
func (s *SPI) Base() uint32 { return s.base }

func (s *SPI) Attach(slave SPISlave) { s.slave = slave }

// SetDMARequest wires cb to fire on every DR access (spec.md §4.5).
func (s *SPI) SetDMARequest(cb func()) {
	s.dmaRequest = cb
}

// SetSelect drives the chip-select line attached to this instance.
// System.Boot routes no GPIO write here: chip select changes only when
// a caller invokes SetSelect directly.
func (s *SPI) SetSelect(asserted bool) {
	if s.selected == asserted {
		return
	}
	s.selected = asserted
	if s.slave != nil {
		s.slave.Select(asserted)
	}
}

func (s *SPI) Def() *svd.Peripheral {
	return &svd.Peripheral{
		Name:        s.name,
		BaseAddress: s.base,
		Registers: []svd.Register{
			withFields(reg("CR1", 0x00, 0), field("DFF", spiCR1_DFF, 1)),
			reg("CR2", 0x04, 0),
			withFields(reg("SR", 0x08, 0x0002),
				field("RXNE", spiSR_RXNE, 1), field("TXE", spiSR_TXE, 1)),
			reg("DR", 0x0C, 0),
		},
	}
}

func (s *SPI) is16Bit() bool { return s.cr1&(1<<spiCR1_DFF) != 0 }

func (s *SPI) OnRead(reg *svd.Register, raw uint32) uint32 {
	if reg.Name != "DR" {
		return raw
	}
	v := s.rx
	if s.dmaRequest != nil {
		s.dmaRequest()
	}
	return v
}

func (s *SPI) OnWrite(reg *svd.Register, old, new uint32) uint32 {
	switch reg.Name {
	case "CR1":
		s.cr1 = new
		return new
	case "DR":
		s.clockOut(new)
		if s.dmaRequest != nil {
			s.dmaRequest()
		}
		return new
	default:
		return new
	}
}

// clockOut exchanges one 8-bit or 16-bit frame with the attached
// slave, MSB-first for 16-bit frames (spec.md §8 boundary behavior).
func (s *SPI) clockOut(value uint32) {
	if s.slave == nil {
		s.rx = 0
		return
	}
	if !s.is16Bit() {
		s.rx = uint32(s.slave.Exchange(byte(value)))
		return
	}
	hi := s.slave.Exchange(byte(value >> 8))
	lo := s.slave.Exchange(byte(value))
	s.rx = uint32(hi)<<8 | uint32(lo)
}
