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

	"github.com/nviennot/stm32-emulator/internal/core"
	"github.com/nviennot/stm32-emulator/internal/svd"
)

// SysTick is the ARMv7-M system timer: a down-counter decremented by
// the emulator's cycle counter; on underflow it reloads from LOAD and
// pends the SysTick exception (IRQn -1) via the NVIC (spec.md §4.3).
type SysTick struct {
	base uint32
	nvic *core.IRQController
	log  *slog.Logger

	ctrl uint32
	load uint32
	val  uint32
}

const (
	stEnable    = 0
	stTickInt   = 1
	stClkSource = 2
	stCountFlag = 16
)

func NewSysTick(base uint32, nvic *core.IRQController, log *slog.Logger) *SysTick {
	return &SysTick{base: base, nvic: nvic, log: log}
}

func (s *SysTick) Name() string { return "SysTick" }
func (s *SysTick) Base() uint32 { return s.base }

func (s *SysTick) Def() *svd.Peripheral {
	return &svd.Peripheral{
		Name:        "SysTick",
		BaseAddress: s.base,
		Registers: []svd.Register{
			withFields(reg("CTRL", 0x00, 0),
				field("ENABLE", stEnable, 1), field("TICKINT", stTickInt, 1),
				field("CLKSOURCE", stClkSource, 1), field("COUNTFLAG", stCountFlag, 1)),
			reg("LOAD", 0x04, 0),
			reg("VAL", 0x08, 0),
			regRO("CALIB", 0x0C, 0),
		},
	}
}

func (s *SysTick) OnRead(reg *svd.Register, raw uint32) uint32 {
	if reg.Name == "CTRL" {
		val := s.ctrl
		s.ctrl &^= 1 << stCountFlag // COUNTFLAG clears on read, per architecture.
		return val
	}
	return raw
}

func (s *SysTick) OnWrite(reg *svd.Register, old, new uint32) uint32 {
	switch reg.Name {
	case "CTRL":
		s.ctrl = new
	case "LOAD":
		s.load = new & 0x00FFFFFF
	case "VAL":
		// Any write to VAL clears it and COUNTFLAG, per architecture.
		s.val = 0
		s.ctrl &^= 1 << stCountFlag
		return 0
	}
	return new
}

// OnTick advances the counter by cycles cycles of CPU time, reloading
// and pending the SysTick exception on underflow (spec.md §4.3).
func (s *SysTick) OnTick(cycles uint64) {
	if s.ctrl&(1<<stEnable) == 0 {
		return
	}
	for cycles > 0 {
		if s.val == 0 {
			s.val = s.load
		}
		if uint64(s.val) > cycles {
			s.val -= uint32(cycles)
			cycles = 0
			continue
		}
		cycles -= uint64(s.val)
		s.val = 0
		s.ctrl |= 1 << stCountFlag
		if s.ctrl&(1<<stTickInt) != 0 {
			s.nvic.SetPending(core.SysTickIRQ, true)
			s.log.Debug("SysTick underflow, IRQ pended")
		}
		s.val = s.load
	}
}
