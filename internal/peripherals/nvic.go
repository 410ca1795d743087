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
	"strconv"

	"github.com/nviennot/stm32-emulator/internal/core"
	"github.com/nviennot/stm32-emulator/internal/svd"
)

// NVIC is the register-mapped view (ISER/ICER/ISPR/ICPR/IABR/IPR, at the
// Cortex-M standard offsets) over a core.IRQController, which owns the
// actual arbitration and exception-entry logic (spec.md §4.4). This
// split mirrors the teacher's separation between a device's register
// surface and the engine state it mutates.
type NVIC struct {
	base uint32
	ctrl *core.IRQController
	log  *slog.Logger
}

func NewNVIC(base uint32, ctrl *core.IRQController, log *slog.Logger) *NVIC {
	return &NVIC{base: base, ctrl: ctrl, log: log}
}

func (n *NVIC) Name() string { return "NVIC" }
func (n *NVIC) Base() uint32 { return n.base }

func (n *NVIC) Def() *svd.Peripheral {
	p := &svd.Peripheral{Name: "NVIC", BaseAddress: n.base}
	for i := 0; i < 8; i++ {
		off := uint32(i * 4)
		n := strconv.Itoa(i)
		p.Registers = append(p.Registers,
			reg("ISER"+n, 0x000+off, 0),
			reg("ICER"+n, 0x080+off, 0),
			reg("ISPR"+n, 0x100+off, 0),
			reg("ICPR"+n, 0x180+off, 0),
			regRO("IABR"+n, 0x200+off, 0),
		)
	}
	for i := 0; i < 60; i++ {
		p.Registers = append(p.Registers, reg("IPR"+strconv.Itoa(i), 0x300+uint32(i*4), 0))
	}
	return p
}

func (n *NVIC) OnRead(reg *svd.Register, raw uint32) uint32 {
	switch {
	case hasPrefix(reg.Name, "ISER"), hasPrefix(reg.Name, "ICER"):
		return n.wordOf(bankIndex(reg.Name), n.ctrl.Enabled)
	case hasPrefix(reg.Name, "ISPR"), hasPrefix(reg.Name, "ICPR"):
		return n.wordOf(bankIndex(reg.Name), n.ctrl.Pending)
	case hasPrefix(reg.Name, "IABR"):
		return n.wordOf(bankIndex(reg.Name), n.ctrl.Active)
	case hasPrefix(reg.Name, "IPR"):
		return n.priorityWord(priIndex(reg.Name))
	}
	return raw
}

func (n *NVIC) OnWrite(reg *svd.Register, old, new uint32) uint32 {
	switch {
	case hasPrefix(reg.Name, "ISER"):
		n.setWord(bankIndex(reg.Name), new, func(irq int, v bool) {
			if v {
				n.ctrl.SetEnabled(irq, true)
			}
		})
	case hasPrefix(reg.Name, "ICER"):
		n.setWord(bankIndex(reg.Name), new, func(irq int, v bool) {
			if v {
				n.ctrl.SetEnabled(irq, false)
			}
		})
	case hasPrefix(reg.Name, "ISPR"):
		n.setWord(bankIndex(reg.Name), new, func(irq int, v bool) {
			if v {
				n.ctrl.SetPending(irq, true)
			}
		})
	case hasPrefix(reg.Name, "ICPR"):
		n.setWord(bankIndex(reg.Name), new, func(irq int, v bool) {
			if v {
				n.ctrl.SetPending(irq, false)
			}
		})
	case hasPrefix(reg.Name, "IPR"):
		base := priIndex(reg.Name) * 4
		for b := 0; b < 4; b++ {
			n.ctrl.SetPriority(base+b, uint8(new>>(8*b)))
		}
	}
	return 0 // these registers are synthesized from IRQController state, never stored raw.
}

func (n *NVIC) wordOf(bank int, get func(int) bool) uint32 {
	var w uint32
	for b := 0; b < 32; b++ {
		if get(bank*32 + b) {
			w |= 1 << b
		}
	}
	return w
}

func (n *NVIC) setWord(bank int, word uint32, apply func(irq int, v bool)) {
	for b := 0; b < 32; b++ {
		apply(bank*32+b, word&(1<<b) != 0)
	}
}

func (n *NVIC) priorityWord(wordIdx int) uint32 {
	var w uint32
	for b := 0; b < 4; b++ {
		irq := wordIdx*4 + b
		w |= uint32(n.ctrl.PriorityOf(irq)) << (8 * b)
	}
	return w
}

func hasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}

func bankIndex(name string) int {
	for i, c := range name {
		if c >= '0' && c <= '9' {
			n := 0
			for _, d := range name[i:] {
				n = n*10 + int(d-'0')
			}
			return n
		}
	}
	return 0
}

func priIndex(name string) int { return bankIndex(name) }
