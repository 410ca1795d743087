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

// SPISlave mirrors peripherals.SPISlave without importing that
// package, since software-SPI is not itself a register peripheral:
// it is the system recognizing a GPIO-pin triple by configuration and
// synthesizing byte-level transactions from edges (spec.md §4.7).
type SPISlave interface {
	Select(asserted bool)
	Exchange(mosi byte) (miso byte)
}

// SoftSPI bit-bangs a SPI master role over plain GPIO lines: callers
// feed it SCK/MOSI/CS edge notifications through OnSCK and OnCS and it
// reconstructs byte-level Exchange calls to an attached slave,
// MSB-first. System.Boot builds a "soft-spi" device with no slave and
// does not route any GPIO write to it.
type SoftSPI struct {
	name  string
	log   *slog.Logger
	slave SPISlave

	cs       bool
	lastSCK  bool
	bitCount int
	shiftOut byte
	shiftIn  byte
	misoBit  bool
}

func NewSoftSPI(name string, slave SPISlave, log *slog.Logger) *SoftSPI {
	return &SoftSPI{name: name, slave: slave, log: log}
}

// OnCS is called when the configured CS pin changes level.
func (s *SoftSPI) OnCS(asserted bool) {
	if s.cs == asserted {
		return
	}
	s.cs = asserted
	s.bitCount = 0
	if s.slave != nil {
		s.slave.Select(asserted)
	}
}

// OnSCK is called when the configured SCK pin changes level; mosi is
// the current MOSI pin level. Sampling happens on the rising edge
// (SPI mode 0), matching the common default for bit-banged drivers in
// this firmware's domain.
func (s *SoftSPI) OnSCK(level, mosi bool) {
	rising := level && !s.lastSCK
	s.lastSCK = level
	if !rising || !s.cs {
		return
	}

	s.shiftOut <<= 1
	if mosi {
		s.shiftOut |= 1
	}
	s.bitCount++

	if s.bitCount == 8 {
		if s.slave != nil {
			s.shiftIn = s.slave.Exchange(s.shiftOut)
		}
		s.bitCount = 0
		s.shiftOut = 0
	}
}

// MISO returns the most significant bit of the byte the slave returned
// on the last completed Exchange. It does not step through that byte as
// further SCK edges arrive, so it is not the per-bit MISO level of a
// transfer in progress.
func (s *SoftSPI) MISO() bool {
	return s.shiftIn&0x80 != 0
}
