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

// Package engine provides a minimal Thumb-subset interpreter satisfying
// core.Engine. It is the module's reference "off-the-shelf CPU engine"
// (spec.md §1 treats the real interpreter as an external collaborator);
// this one understands just enough of Thumb/Thumb-2 to drive the worked
// examples and tests in §8: NOP, unconditional/conditional branch, BX,
// MOVS/MOVW/MOVT, register-relative LDR/STR (16- and 32-bit encodings),
// and small ADD/SUB/CMP — not a complete ARMv7-M ISA.
package engine

import (
	"fmt"

	"github.com/nviennot/stm32-emulator/internal/core"
)

// State is the concrete ARMv7-M register file plus the minimal Thumb
// interpreter driving it.
type State struct {
	r       [13]uint32
	msp     uint32
	psp     uint32
	lr      uint32
	pc      uint32
	xpsr    uint32
	control uint8
	primask bool
	faultmk bool
	basepri uint8
	fp      [32]uint32
	fpscr   uint32
	handler bool

	mem core.Memory
}

// New creates a State reading/writing memory through mem, with PC and
// the initial SP taken from the vector table at resetVectorBase (the
// ARMv7-M reset sequence: MSP = *(base+0), PC = *(base+4) & ^1).
func New(mem core.Memory, resetVectorBase uint32) *State {
	s := &State{mem: mem}
	s.msp = mem.Read(0, resetVectorBase, 4)
	s.pc = mem.Read(0, resetVectorBase+4, 4) &^ 1
	s.xpsr = 1 << 24 // Thumb bit always set; this engine never executes ARM mode.
	return s
}

func (s *State) GetReg(n int) uint32 {
	switch n {
	case core.SP:
		return core.ActiveSP(s)
	case core.LR:
		return s.lr
	case core.PC:
		return s.pc
	default:
		return s.r[n]
	}
}

func (s *State) SetReg(n int, v uint32) {
	switch n {
	case core.SP:
		core.SetActiveSP(s, v)
	case core.LR:
		s.lr = v
	case core.PC:
		s.pc = v
	default:
		s.r[n] = v
	}
}

func (s *State) GetXPSR() uint32     { return s.xpsr }
func (s *State) SetXPSR(v uint32)    { s.xpsr = v }
func (s *State) GetControl() uint8   { return s.control }
func (s *State) SetControl(v uint8)  { s.control = v }
func (s *State) GetPRIMASK() bool    { return s.primask }
func (s *State) SetPRIMASK(v bool)   { s.primask = v }
func (s *State) GetFAULTMASK() bool  { return s.faultmk }
func (s *State) SetFAULTMASK(v bool) { s.faultmk = v }
func (s *State) GetBASEPRI() uint8   { return s.basepri }
func (s *State) SetBASEPRI(v uint8)  { s.basepri = v }
func (s *State) GetMSP() uint32      { return s.msp }
func (s *State) SetMSP(v uint32)     { s.msp = v }
func (s *State) GetPSP() uint32      { return s.psp }
func (s *State) SetPSP(v uint32)     { s.psp = v }
func (s *State) GetFPReg(n int) uint32 { return s.fp[n] }
func (s *State) SetFPReg(n int, v uint32) { s.fp[n] = v }
func (s *State) GetFPSCR() uint32   { return s.fpscr }
func (s *State) SetFPSCR(v uint32)  { s.fpscr = v }
func (s *State) HandlerMode() bool  { return s.handler }
func (s *State) SetHandlerMode(v bool) { s.handler = v }

const (
	flagN = uint32(1) << 31
	flagZ = uint32(1) << 30
	flagC = uint32(1) << 29
	flagV = uint32(1) << 28
)

func (s *State) setNZ(v uint32) {
	s.xpsr &^= flagN | flagZ
	if v&0x80000000 != 0 {
		s.xpsr |= flagN
	}
	if v == 0 {
		s.xpsr |= flagZ
	}
}

func (s *State) condPassed(cond uint32) bool {
	n := s.xpsr&flagN != 0
	z := s.xpsr&flagZ != 0
	c := s.xpsr&flagC != 0
	v := s.xpsr&flagV != 0
	switch cond {
	case 0x0:
		return z
	case 0x1:
		return !z
	case 0x2:
		return c
	case 0x3:
		return !c
	case 0x4:
		return n
	case 0x5:
		return !n
	case 0x8:
		return c && !z
	case 0x9:
		return !c || z
	case 0xA:
		return n == v
	case 0xB:
		return n != v
	case 0xE:
		return true // "always" encoding used by some assemblers for B
	default:
		return true
	}
}

// Step decodes and executes exactly one instruction at the current PC.
func (s *State) Step() error {
	pc := s.pc
	h1 := s.mem.Read(pc, pc, 2)

	// Thumb-2 32-bit encodings: first halfword top 5 bits 0b11101/11110/11111.
	if h1&0xE000 == 0xE000 && h1&0xF800 != 0xE000 {
		h2 := s.mem.Read(pc, pc+2, 2)
		s.pc = pc + 4
		return s.exec32(pc, h1, h2)
	}

	s.pc = pc + 2
	return s.exec16(pc, h1)
}

func (s *State) exec16(pc uint32, ins uint32) error {
	switch {
	case ins == 0xBF00: // NOP
		return nil

	case ins&0xFF00 == 0xBF00: // other hints (WFI, YIELD, ...) treated as NOP
		return nil

	case ins&0xFF87 == 0x4700, ins&0xFF87 == 0x4780: // BX/BLX Rm
		rm := int((ins >> 3) & 0xF)
		target := s.GetReg(rm)
		if ins&0x80 != 0 {
			s.lr = (pc + 2) | 1
		}
		s.pc = target &^ 1
		return nil

	case ins&0xF800 == 0xE000: // B T2 unconditional, 11-bit signed offset
		imm11 := ins & 0x7FF
		offset := signExtend(imm11<<1, 12)
		s.pc = uint32(int64(pc) + 4 + int64(offset))
		return nil

	case ins&0xF000 == 0xD000: // Bcond T1
		cond := (ins >> 8) & 0xF
		if cond == 0xF { // SVC
			return nil
		}
		imm8 := ins & 0xFF
		offset := signExtend(imm8<<1, 9)
		if s.condPassed(cond) {
			s.pc = uint32(int64(pc) + 4 + int64(offset))
		}
		return nil

	case ins&0xF800 == 0x2000: // MOVS Rd, #imm8
		rd := int((ins >> 8) & 7)
		imm8 := ins & 0xFF
		s.r[rd] = imm8
		s.setNZ(imm8)
		return nil

	case ins&0xFE00 == 0x1C00: // ADDS Rd, Rn, #imm3 (imm3==0 is MOVS alias in some encodings, still fine as ADD #0)
		rd := int(ins & 7)
		rn := int((ins >> 3) & 7)
		imm3 := (ins >> 6) & 7
		v := s.r[rn] + imm3
		s.r[rd] = v
		s.setNZ(v)
		return nil

	case ins&0xF800 == 0x3000: // ADDS Rdn, #imm8
		rdn := int((ins >> 8) & 7)
		imm8 := ins & 0xFF
		v := s.r[rdn] + imm8
		s.r[rdn] = v
		s.setNZ(v)
		return nil

	case ins&0xFE00 == 0x1E00: // SUBS Rd, Rn, #imm3
		rd := int(ins & 7)
		rn := int((ins >> 3) & 7)
		imm3 := (ins >> 6) & 7
		v := s.r[rn] - imm3
		s.r[rd] = v
		s.setNZ(v)
		return nil

	case ins&0xFF00 == 0x4600: // MOV Rd, Rm (hi registers, incl. SP)
		rm := int((ins >> 3) & 0xF)
		rdLow := int(ins & 7)
		d := int((ins >> 7) & 1)
		rd := rdLow | (d << 3)
		s.SetReg(rd, s.GetReg(rm))
		return nil

	case ins&0xF800 == 0x4800: // LDR Rt, [PC, #imm8*4] literal pool
		rt := int((ins >> 8) & 7)
		imm8 := ins & 0xFF
		base := (pc + 4) &^ 3
		s.r[rt] = s.mem.Read(pc, base+imm8*4, 4)
		return nil

	case ins&0xF800 == 0x6000: // STR Rt, [Rn, #imm5*4]
		rt := int(ins & 7)
		rn := int((ins >> 3) & 7)
		imm5 := (ins >> 6) & 0x1F
		s.mem.Write(pc, s.r[rn]+imm5*4, 4, s.r[rt])
		return nil

	case ins&0xF800 == 0x6800: // LDR Rt, [Rn, #imm5*4]
		rt := int(ins & 7)
		rn := int((ins >> 3) & 7)
		imm5 := (ins >> 6) & 0x1F
		s.r[rt] = s.mem.Read(pc, s.r[rn]+imm5*4, 4)
		return nil

	case ins&0xFE00 == 0x1800: // ADDS Rd, Rn, Rm
		rd := int(ins & 7)
		rn := int((ins >> 3) & 7)
		rm := int((ins >> 6) & 7)
		v := s.r[rn] + s.r[rm]
		s.r[rd] = v
		s.setNZ(v)
		return nil

	case ins&0xFFC0 == 0x4280: // CMP Rn, Rm
		rn := int(ins & 7)
		rm := int((ins >> 3) & 7)
		v := s.r[rn] - s.r[rm]
		s.setNZ(v)
		if s.r[rn] >= s.r[rm] {
			s.xpsr |= flagC
		} else {
			s.xpsr &^= flagC
		}
		return nil

	default:
		return &core.EngineFault{PC: pc, Message: fmt.Sprintf("undecoded 16-bit opcode 0x%04x", ins)}
	}
}

func (s *State) exec32(pc uint32, h1, h2 uint32) error {
	// MOVW/MOVT T3: 11110 i 10 x0 imm4 | 0 imm3 Rd imm8
	isMovT := h1&0xFBF0 == 0xF2C0
	isMovW := h1&0xFBF0 == 0xF240
	if isMovW || isMovT {
		i := (h1 >> 10) & 1
		imm4 := h1 & 0xF
		imm3 := (h2 >> 12) & 7
		rd := int((h2 >> 8) & 0xF)
		imm8 := h2 & 0xFF
		imm16 := (imm4 << 12) | (i << 11) | (imm3 << 8) | imm8
		if isMovW {
			s.SetReg(rd, imm16)
		} else {
			cur := s.GetReg(rd)
			s.SetReg(rd, (cur & 0x0000FFFF) | (imm16 << 16))
		}
		return nil
	}

	// STR.W Rt, [Rn, #imm12] : 1111 1000 1100 Rn | Rt imm12
	if h1&0xFFF0 == 0xF8C0 {
		rn := int(h1 & 0xF)
		rt := int((h2 >> 12) & 0xF)
		imm12 := h2 & 0xFFF
		s.mem.Write(pc, s.GetReg(rn)+imm12, 4, s.GetReg(rt))
		return nil
	}

	// LDR.W Rt, [Rn, #imm12] : 1111 1000 1101 Rn | Rt imm12
	if h1&0xFFF0 == 0xF8D0 {
		rn := int(h1 & 0xF)
		rt := int((h2 >> 12) & 0xF)
		imm12 := h2 & 0xFFF
		s.SetReg(rt, s.mem.Read(pc, s.GetReg(rn)+imm12, 4))
		return nil
	}

	// BL T1: 11110 S imm10 | 11 J1 1 J2 imm11
	if h1&0xF800 == 0xF000 && h2&0xD000 == 0xD000 {
		s1 := (h1 >> 10) & 1
		imm10 := h1 & 0x3FF
		j1 := (h2 >> 13) & 1
		j2 := (h2 >> 11) & 1
		imm11 := h2 & 0x7FF
		i1 := uint32(1) - (j1 ^ s1)
		i2 := uint32(1) - (j2 ^ s1)
		imm32 := (s1 << 24) | (i1 << 23) | (i2 << 22) | (imm10 << 12) | (imm11 << 1)
		offset := signExtend(imm32, 25)
		retAddr := pc + 4
		s.lr = retAddr | 1
		s.pc = uint32(int64(retAddr) + int64(offset))
		return nil
	}

	return &core.EngineFault{PC: pc, Message: fmt.Sprintf("undecoded 32-bit opcode 0x%04x 0x%04x", h1, h2)}
}

func signExtend(v uint32, bits uint) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}
