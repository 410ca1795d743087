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

// Package core implements the parts of the ARMv7-M exception model that
// sit on top of an external instruction-set interpreter: exception
// entry/return (spec.md §4.4) and the Engine boundary interface that
// interpreter is expected to satisfy.
package core

import "fmt"

// Register indices for GetReg/SetReg; R13 is SP (whichever of MSP/PSP is
// currently selected), R14 is LR, R15 is PC.
const (
	R0 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	PC
)

// CONTROL register bits (spec.md §3).
const (
	ControlNPRIV = 1 << 0
	ControlSPSEL = 1 << 1
	ControlFPCA  = 1 << 2
)

// Engine is the off-the-shelf CPU engine boundary: the interpreter core
// is assumed to implement this, exposing register state and a stepping
// function. The emulation fabric in this repository never reaches into
// the interpreter's instruction decode — only this interface.
type Engine interface {
	GetReg(n int) uint32
	SetReg(n int, v uint32)

	GetXPSR() uint32
	SetXPSR(v uint32)

	GetControl() uint8
	SetControl(v uint8)

	GetPRIMASK() bool
	SetPRIMASK(v bool)
	GetFAULTMASK() bool
	SetFAULTMASK(v bool)
	GetBASEPRI() uint8
	SetBASEPRI(v uint8)

	GetMSP() uint32
	SetMSP(v uint32)
	GetPSP() uint32
	SetPSP(v uint32)

	// GetFPReg/SetFPReg address S0-S31; GetFPSCR/SetFPSCR the FP status
	// register. Implementations that don't model the FPU may treat all
	// of these as a 32-word scratch bank; FPCA (CONTROL bit 2) governs
	// whether exception entry/return touches them at all.
	GetFPReg(n int) uint32
	SetFPReg(n int, v uint32)
	GetFPSCR() uint32
	SetFPSCR(v uint32)

	// HandlerMode reports whether the processor is currently executing
	// an exception handler (as opposed to thread mode).
	HandlerMode() bool
	SetHandlerMode(v bool)

	// Step executes exactly one instruction. It returns an *EngineFault
	// for anything the interpreter cannot execute (spec.md §7: fatal,
	// exit code 3) — never for ordinary firmware misbehavior, which is
	// handled by the bus/peripheral layers returning best-effort values.
	Step() error
}

// EngineFault is returned by Engine.Step for an internal interpreter
// invariant violation (undefined instruction, unsupported encoding).
// It is the one Step error that is fatal per spec.md §7.
type EngineFault struct {
	PC      uint32
	Message string
}

func (e *EngineFault) Error() string {
	return fmt.Sprintf("cpu engine fault at pc=0x%08x: %s", e.PC, e.Message)
}

// ActiveSP returns the stack pointer value currently selected by mode
// and CONTROL.SPSEL, per spec.md §4.4 step 2.
func ActiveSP(e Engine) uint32 {
	if useProcessStack(e) {
		return e.GetPSP()
	}
	return e.GetMSP()
}

// SetActiveSP writes to whichever stack pointer is currently selected.
func SetActiveSP(e Engine, v uint32) {
	if useProcessStack(e) {
		e.SetPSP(v)
		return
	}
	e.SetMSP(v)
}

func useProcessStack(e Engine) bool {
	if e.HandlerMode() {
		return false
	}
	return e.GetControl()&ControlSPSEL != 0
}
