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

package core

// Memory is the narrow bus surface exception entry/return needs: word
// push/pop onto whichever stack is active. internal/bus.Bus satisfies
// this with pc fixed to the instruction that triggered entry/return.
type Memory interface {
	Read(pc, addr uint32, width int) uint32
	Write(pc, addr uint32, width int, value uint32)
}

// EXC_RETURN bit layout (spec.md glossary; ARMv7-M basic + FP-extension
// encodings, no TrustZone since secure/non-secure worlds are a
// spec.md §1 non-goal).
const (
	excReturnBase    uint32 = 0xFFFFFFE1
	excReturnNoFP    uint32 = 0xFFFFFFF1
	excBitFPStacked  uint32 = 1 << 4 // 0 = FP state stacked, 1 = not
	excBitModeThread uint32 = 1 << 3 // 1 = thread, 0 = handler
	excBitPSP        uint32 = 1 << 2 // 1 = PSP, 0 = MSP
)

// IsExceptionReturn reports whether a value loaded into PC is an
// EXC_RETURN sentinel (spec.md §4.4 "Exception return is detected when
// PC equals an EXC_RETURN pattern").
func IsExceptionReturn(pc uint32) bool {
	return pc&0xFFFFFF00 == 0xFFFFFF00 && (pc&0xF) != 0
}

// ExceptionController drives entry/return on top of an Engine + Memory,
// consulting an IRQController for arbitration (spec.md §4.4).
type ExceptionController struct {
	NVIC *IRQController
}

func NewExceptionController(nvic *IRQController) *ExceptionController {
	return &ExceptionController{NVIC: nvic}
}

// Poll is the per-instruction hook: if a higher-priority exception than
// the one currently executing is pending and enabled, perform entry.
// Returns the IRQ number entered, or (0, false) if nothing fired.
func (ec *ExceptionController) Poll(e Engine, m Memory) (int, bool) {
	irq, prio, ok := ec.NVIC.pendingCandidate()
	if !ok {
		return 0, false
	}
	if int(prio) >= ec.NVIC.currentExecPriority() {
		return 0, false
	}
	ec.enter(e, m, irq)
	return irq, true
}

// enter performs exception entry per spec.md §4.4 steps 1-6.
func (ec *ExceptionController) enter(e Engine, m Memory, irq int) {
	fpExtended := e.GetControl()&ControlFPCA != 0

	sp := ActiveSP(e)
	frameWords := 8
	if fpExtended {
		frameWords += 18 // S0-S15 (16) + FPSCR + reserved
	}
	sp -= uint32(frameWords) * 4
	sp &^= 7 // 8-byte align, per AAPCS stack alignment on exception entry

	pc := e.GetReg(PC)

	push := func(offsetWords int, v uint32) {
		m.Write(pc, sp+uint32(offsetWords)*4, 4, v)
	}
	push(0, e.GetReg(R0))
	push(1, e.GetReg(R1))
	push(2, e.GetReg(R2))
	push(3, e.GetReg(R3))
	push(4, e.GetReg(R12))
	push(5, e.GetReg(LR))
	push(6, e.GetReg(PC)) // return address
	push(7, e.GetXPSR())

	if fpExtended {
		for i := 0; i < 16; i++ {
			push(8+i, e.GetFPReg(i))
		}
		push(24, e.GetFPSCR())
		push(25, 0)
		e.SetControl(e.GetControl() &^ ControlFPCA)
	}

	SetActiveSP(e, sp)

	lr := excReturnBase
	if !fpExtended {
		lr = excReturnNoFP
	}
	if !e.HandlerMode() {
		lr |= excBitModeThread
		if e.GetControl()&ControlSPSEL != 0 {
			lr |= excBitPSP
		}
	}
	e.SetReg(LR, lr)

	vector := m.Read(pc, ec.NVIC.VTOR+uint32(4*exceptionNumber(irq)), 4)
	e.SetReg(PC, vector&^1)

	e.SetHandlerMode(true)
	ec.NVIC.SetPending(irq, false)
	ec.NVIC.setActive(irq, true)
	ec.NVIC.Depth++
}

// MaybeReturn checks whether the engine just branched to an EXC_RETURN
// value and, if so, unwinds the matching frame (spec.md §4.4 "Exception
// return"). Call this after Engine.Step when the new PC is known.
func (ec *ExceptionController) MaybeReturn(e Engine, m Memory) bool {
	lr := e.GetReg(PC)
	if !IsExceptionReturn(lr) {
		return false
	}

	toThread := lr&excBitModeThread != 0
	usePSP := lr&excBitPSP != 0
	fpStacked := lr&excBitFPStacked == 0

	var sp uint32
	if !toThread {
		sp = e.GetMSP()
	} else if usePSP {
		sp = e.GetPSP()
	} else {
		sp = e.GetMSP()
	}

	pc := e.GetReg(PC)
	pop := func(offsetWords int) uint32 {
		return m.Read(pc, sp+uint32(offsetWords)*4, 4)
	}

	e.SetReg(R0, pop(0))
	e.SetReg(R1, pop(1))
	e.SetReg(R2, pop(2))
	e.SetReg(R3, pop(3))
	e.SetReg(R12, pop(4))
	e.SetReg(LR, pop(5))
	retAddr := pop(6)
	xpsr := pop(7)

	frameWords := 8
	if fpStacked {
		for i := 0; i < 16; i++ {
			e.SetFPReg(i, pop(8+i))
		}
		e.SetFPSCR(pop(24))
		e.SetControl(e.GetControl() | ControlFPCA)
		frameWords += 18
	}
	sp += uint32(frameWords) * 4

	e.SetReg(PC, retAddr)
	e.SetXPSR(xpsr)
	e.SetHandlerMode(!toThread)
	if toThread {
		ctl := e.GetControl() &^ ControlSPSEL
		if usePSP {
			ctl |= ControlSPSEL
		}
		e.SetControl(ctl)
	}

	if !toThread {
		e.SetMSP(sp)
	} else if usePSP {
		e.SetPSP(sp)
	} else {
		e.SetMSP(sp)
	}

	ec.clearActiveForReturn()
	ec.NVIC.Depth--
	return true
}

// clearActiveForReturn clears the active bit of the exception currently
// executing: in the no-late-arrival simplification this module
// implements, that is always the active exception with the lowest
// effective priority value, the same selection currentExecPriority
// makes (ties broken toward the lower IRQ number, mirroring
// pendingCandidate's tie-break).
func (ec *ExceptionController) clearActiveForReturn() {
	bestIRQ := -2
	bestPrio := 256
	if ec.NVIC.sysTickActive {
		bestIRQ = SysTickIRQ
		bestPrio = int(ec.NVIC.effectivePriority(ec.NVIC.sysTickPrio))
	}
	for i := 0; i < IRQCount; i++ {
		if ec.NVIC.active[i] {
			p := int(ec.NVIC.effectivePriority(ec.NVIC.priority[i]))
			if bestIRQ == -2 || p < bestPrio || (p == bestPrio && i < bestIRQ) {
				bestPrio = p
				bestIRQ = i
			}
		}
	}
	if bestIRQ != -2 {
		ec.NVIC.setActive(bestIRQ, false)
	}
}
