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

// RCC models the reset and clock control block closely enough for
// firmware busy-waits on clock-ready bits to terminate immediately
// (spec.md §4.3): any write that sets an *ON enable bit has the matching
// *RDY bit set on the same write, since this emulator does not model
// clock-lock latency.
type RCC struct {
	base uint32
	cr   uint32
	log  *slog.Logger
}

// on/rdy bit pairs within CR, per RM0090.
const (
	rccHSION  = 0
	rccHSIRDY = 1
	rccHSEON  = 16
	rccHSERDY = 17
	rccPLLON  = 24
	rccPLLRDY = 25
)

func NewRCC(base uint32, log *slog.Logger) *RCC {
	return &RCC{base: base, log: log}
}

func (r *RCC) Name() string  { return "RCC" }
func (r *RCC) Base() uint32  { return r.base }

// Def returns the built-in register catalog for RCC.
func (r *RCC) Def() *svd.Peripheral {
	return &svd.Peripheral{
		Name:        "RCC",
		BaseAddress: r.base,
		Registers: []svd.Register{
			withFields(reg("CR", 0x00, 0x00000083),
				field("HSION", rccHSION, 1), field("HSIRDY", rccHSIRDY, 1),
				field("HSEON", rccHSEON, 1), field("HSERDY", rccHSERDY, 1),
				field("PLLON", rccPLLON, 1), field("PLLRDY", rccPLLRDY, 1)),
			reg("PLLCFGR", 0x04, 0x24003010),
			reg("CFGR", 0x08, 0x00000000),
			reg("CIR", 0x0C, 0x00000000),
			reg("AHB1RSTR", 0x10, 0),
			reg("AHB2RSTR", 0x14, 0),
			reg("AHB3RSTR", 0x18, 0),
			reg("APB1RSTR", 0x20, 0),
			reg("APB2RSTR", 0x24, 0),
			reg("AHB1ENR", 0x30, 0),
			reg("AHB2ENR", 0x34, 0),
			reg("AHB3ENR", 0x38, 0),
			reg("APB1ENR", 0x40, 0),
			reg("APB2ENR", 0x44, 0),
			reg("BDCR", 0x70, 0),
			reg("CSR", 0x74, 0x0E000000),
		},
	}
}

func (r *RCC) OnRead(reg *svd.Register, raw uint32) uint32 {
	return raw
}

func (r *RCC) OnWrite(reg *svd.Register, old, new uint32) uint32 {
	if reg.Name != "CR" {
		return new
	}
	// Any *ON bit the write just set gets its *RDY bit set immediately.
	new = syncRdyBit(old, new, rccHSION, rccHSIRDY)
	new = syncRdyBit(old, new, rccHSEON, rccHSERDY)
	new = syncRdyBit(old, new, rccPLLON, rccPLLRDY)
	r.cr = new
	r.log.Debug("RCC CR updated", "value", new)
	return new
}

func syncRdyBit(old, new uint32, onBit, rdyBit uint) uint32 {
	wasOn := bit(old, onBit)
	isOn := bit(new, onBit)
	if isOn {
		new = setBit(new, rdyBit, true)
	} else if wasOn && !isOn {
		new = setBit(new, rdyBit, false)
	}
	return new
}
