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

import "testing"

// fakeEngine is a minimal Engine satisfying test double: no FPU, no
// privilege model, just enough state for entry/return round-trips.
type fakeEngine struct {
	regs        [16]uint32
	xpsr        uint32
	control     uint8
	primask     bool
	faultmask   bool
	basepri     uint8
	msp, psp    uint32
	fpregs      [32]uint32
	fpscr       uint32
	handlerMode bool
}

func (e *fakeEngine) GetReg(n int) uint32     { return e.regs[n] }
func (e *fakeEngine) SetReg(n int, v uint32)  { e.regs[n] = v }
func (e *fakeEngine) GetXPSR() uint32         { return e.xpsr }
func (e *fakeEngine) SetXPSR(v uint32)        { e.xpsr = v }
func (e *fakeEngine) GetControl() uint8       { return e.control }
func (e *fakeEngine) SetControl(v uint8)      { e.control = v }
func (e *fakeEngine) GetPRIMASK() bool        { return e.primask }
func (e *fakeEngine) SetPRIMASK(v bool)       { e.primask = v }
func (e *fakeEngine) GetFAULTMASK() bool      { return e.faultmask }
func (e *fakeEngine) SetFAULTMASK(v bool)     { e.faultmask = v }
func (e *fakeEngine) GetBASEPRI() uint8       { return e.basepri }
func (e *fakeEngine) SetBASEPRI(v uint8)      { e.basepri = v }
func (e *fakeEngine) GetMSP() uint32          { return e.msp }
func (e *fakeEngine) SetMSP(v uint32)         { e.msp = v }
func (e *fakeEngine) GetPSP() uint32          { return e.psp }
func (e *fakeEngine) SetPSP(v uint32)         { e.psp = v }
func (e *fakeEngine) GetFPReg(n int) uint32   { return e.fpregs[n] }
func (e *fakeEngine) SetFPReg(n int, v uint32) { e.fpregs[n] = v }
func (e *fakeEngine) GetFPSCR() uint32        { return e.fpscr }
func (e *fakeEngine) SetFPSCR(v uint32)       { e.fpscr = v }
func (e *fakeEngine) HandlerMode() bool       { return e.handlerMode }
func (e *fakeEngine) SetHandlerMode(v bool)   { e.handlerMode = v }
func (e *fakeEngine) Step() error             { return nil }

// fakeMemory is a word-addressed RAM plus a fixed vector table, enough
// to satisfy the Memory interface enter/MaybeReturn exercise.
type fakeMemory struct {
	words   map[uint32]uint32
	vectors map[uint32]uint32
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{words: map[uint32]uint32{}, vectors: map[uint32]uint32{}}
}

func (m *fakeMemory) Read(pc, addr uint32, width int) uint32 {
	if v, ok := m.vectors[addr]; ok {
		return v
	}
	return m.words[addr]
}

func (m *fakeMemory) Write(pc, addr uint32, width int, value uint32) {
	m.words[addr] = value
}

// TestEnterThenReturnRoundTrips exercises spec.md §8 invariant 2: an
// exception entry immediately followed by its EXC_RETURN must restore
// every register to its pre-entry value.
func TestEnterThenReturnRoundTrips(t *testing.T) {
	nvic := NewIRQController()
	nvic.VTOR = 0x08000000
	ec := NewExceptionController(nvic)

	e := &fakeEngine{
		regs: [16]uint32{0: 0x11, 1: 0x22, 2: 0x33, 3: 0x44, 12: 0x55, LR: 0xFFFFFFFF, PC: 0x08001000},
		xpsr: 0x61000017,
		msp:  0x20010000,
	}
	m := newFakeMemory()
	m.vectors[nvic.VTOR+4*uint32(exceptionNumber(5))] = 0x08002001

	wantR0, wantR1, wantR2, wantR3 := e.regs[R0], e.regs[R1], e.regs[R2], e.regs[R3]
	wantR12, wantLR, wantPC, wantXPSR := e.regs[R12], e.regs[LR], e.regs[PC], e.xpsr

	nvic.SetEnabled(5, true)
	nvic.SetPending(5, true)
	nvic.SetPriority(5, 0x10)

	irq, ok := ec.Poll(e, m)
	if !ok || irq != 5 {
		t.Fatalf("Poll() = (%d, %v), want (5, true)", irq, ok)
	}
	if !nvic.Active(5) {
		t.Fatalf("IRQ5 not marked active after entry")
	}
	if e.regs[PC] != 0x08002000 {
		t.Fatalf("PC after entry = 0x%x, want 0x08002000", e.regs[PC])
	}

	// Simulate the handler immediately branching to LR (BX LR as its
	// first and only instruction): the engine loads the EXC_RETURN
	// value into PC, and MaybeReturn is polled against that.
	e.regs[PC] = e.regs[LR]

	if !ec.MaybeReturn(e, m) {
		t.Fatalf("MaybeReturn() = false, want true after EXC_RETURN load")
	}

	if e.regs[R0] != wantR0 || e.regs[R1] != wantR1 || e.regs[R2] != wantR2 || e.regs[R3] != wantR3 {
		t.Fatalf("R0-R3 = %v, want %v", e.regs[:4], []uint32{wantR0, wantR1, wantR2, wantR3})
	}
	if e.regs[R12] != wantR12 {
		t.Fatalf("R12 = 0x%x, want 0x%x", e.regs[R12], wantR12)
	}
	if e.regs[LR] != wantLR {
		t.Fatalf("LR = 0x%x, want 0x%x", e.regs[LR], wantLR)
	}
	if e.regs[PC] != wantPC {
		t.Fatalf("PC = 0x%x, want 0x%x", e.regs[PC], wantPC)
	}
	if e.xpsr != wantXPSR {
		t.Fatalf("XPSR = 0x%x, want 0x%x", e.xpsr, wantXPSR)
	}
	if nvic.Active(5) {
		t.Fatalf("IRQ5 still active after its own EXC_RETURN")
	}
	if nvic.Depth != 0 {
		t.Fatalf("Depth = %d, want 0", nvic.Depth)
	}
}

// TestPendingCandidateTieBreakLowestIRQ covers the boundary behavior in
// spec.md §8: "NVIC with equal priority pending IRQs selects the
// lowest IRQ number".
func TestPendingCandidateTieBreakLowestIRQ(t *testing.T) {
	nvic := NewIRQController()
	for _, irq := range []int{7, 3, 9} {
		nvic.SetEnabled(irq, true)
		nvic.SetPending(irq, true)
		nvic.SetPriority(irq, 0x80)
	}
	irq, prio, ok := nvic.pendingCandidate()
	if !ok {
		t.Fatalf("pendingCandidate() ok = false, want true")
	}
	if irq != 3 {
		t.Fatalf("pendingCandidate() irq = %d, want 3 (lowest of 7,3,9)", irq)
	}
	if prio != 0x80 {
		t.Fatalf("pendingCandidate() prio = 0x%x, want 0x80", prio)
	}
}

// TestClearActiveForReturnClearsInnermost is a regression test: a
// lower-priority-number (more urgent) IRQ preempting an
// already-active, less-urgent one must have ITS OWN active bit
// cleared on return, not the outer frame's.
func TestClearActiveForReturnClearsInnermost(t *testing.T) {
	nvic := NewIRQController()
	ec := NewExceptionController(nvic)

	// IRQ5 (prio 0xA0, less urgent) is running when IRQ2 (prio 0x10,
	// more urgent) preempts it; both are active, IRQ2 innermost.
	nvic.SetPriority(5, 0xA0)
	nvic.setActive(5, true)
	nvic.SetPriority(2, 0x10)
	nvic.setActive(2, true)

	ec.clearActiveForReturn()

	if nvic.Active(2) {
		t.Fatalf("IRQ2 (innermost, returning) still active")
	}
	if !nvic.Active(5) {
		t.Fatalf("IRQ5 (outer frame, still executing) wrongly cleared")
	}
}
