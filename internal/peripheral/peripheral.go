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

// Package peripheral implements the uniform peripheral framework from
// spec.md §4.2: every emulated peripheral exposes name/base/on_read/
// on_write; the framework pre-decodes the SVD register descriptor for
// an access, fetches the stored word, invokes the peripheral's
// callback, and commits the result.
package peripheral

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nviennot/stm32-emulator/internal/logger"
	"github.com/nviennot/stm32-emulator/internal/svd"
)

// Peripheral is the capability set every emulated peripheral implements
// (spec.md §4.2, §9 "capability set over a tagged variant").
type Peripheral interface {
	Name() string
	Base() uint32
	// OnRead is called after the framework fetches the raw stored word;
	// it returns the value actually presented to the CPU.
	OnRead(reg *svd.Register, raw uint32) uint32
	// OnWrite is called with the pre-write and decoded post-write word;
	// it returns the value the framework should actually commit to the
	// register file (letting peripherals implement write-1-to-clear,
	// read-only bits, and immediate side effects like RCC's *RDY bits).
	OnWrite(reg *svd.Register, old, new uint32) uint32
}

// Ticker is implemented by peripherals that need a per-instruction or
// per-cycle callback (SysTick's down-counter).
type Ticker interface {
	OnTick(cycles uint64)
}

// Framework wraps a Peripheral with its SVD-derived register metadata
// and per-instance mutable storage, and implements bus.Handler.
type Framework struct {
	p       Peripheral
	def     *svd.Peripheral
	storage []uint32 // indexed by offset/4
	log     *slog.Logger
}

// NewFramework builds a Framework for p, sized from def's highest
// register offset, and resets every register to its SVD reset value.
func NewFramework(p Peripheral, def *svd.Peripheral, log *slog.Logger) *Framework {
	if log == nil {
		log = slog.Default()
	}
	words := 0
	for i := range def.Registers {
		idx := int(def.Registers[i].Offset/4) + 1
		if idx > words {
			words = idx
		}
	}
	f := &Framework{p: p, def: def, storage: make([]uint32, words), log: log.With("peripheral", p.Name())}
	f.Reset()
	return f
}

// Reset restores every register to its SVD reset value (spec.md §3
// "Lifecycles": peripherals reset to SVD reset values at emulation
// start).
func (f *Framework) Reset() {
	for i := range f.def.Registers {
		r := &f.def.Registers[i]
		f.storage[r.Offset/4] = r.Reset
	}
}

// RegisterAt is exposed so a peripheral's OnTick/OnWrite implementation
// can read or force other registers of the same instance (e.g. SysTick
// reloading VAL from LOAD on underflow).
func (f *Framework) RegisterAt(offset uint32) uint32 {
	idx := offset / 4
	if int(idx) >= len(f.storage) {
		return 0
	}
	return f.storage[idx]
}

// SetRegisterAt forces a register's stored word without going through
// OnWrite, used for side effects like SysTick reload or RCC RDY bits.
func (f *Framework) SetRegisterAt(offset uint32, value uint32) {
	idx := offset / 4
	if int(idx) < len(f.storage) {
		f.storage[idx] = value
	}
}

func (f *Framework) findRegister(offset uint32) *svd.Register {
	aligned := offset &^ 3
	return f.def.RegisterAt(aligned)
}

// Access implements bus.Handler; offset is relative to the peripheral's
// mapped region (i.e. equal to the SVD register offset space).
func (f *Framework) Access(offset uint32, width int, isWrite bool, value uint32) uint32 {
	reg := f.findRegister(offset)
	if reg == nil {
		if isWrite {
			f.log.Warn("unimplemented register write", "offset", fmt.Sprintf("0x%x", offset))
			return 0
		}
		f.log.Warn("unimplemented register read", "offset", fmt.Sprintf("0x%x", offset))
		return 0
	}

	idx := reg.Offset / 4
	shift := uint((offset - reg.Offset) * 8)
	mask := byteWidthMask(width) << shift

	old := f.storage[idx]

	if !isWrite {
		raw := f.p.OnRead(reg, old)
		f.traceAccess("read", reg, raw)
		return (raw & mask) >> shift
	}

	if reg.Access == svd.AccessReadOnly {
		f.log.Warn("write to read-only register", "register", reg.Name)
		return 0
	}

	merged := (old &^ mask) | ((value << shift) & mask)
	commit := f.p.OnWrite(reg, old, merged)
	f.storage[idx] = commit
	f.debugAccess("write", reg, old, commit)
	return 0
}

func byteWidthMask(width int) uint32 {
	switch width {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

func (f *Framework) traceAccess(kind string, reg *svd.Register, word uint32) {
	if !f.log.Enabled(context.Background(), logger.TraceLevel) {
		return
	}
	fields := reg.DecodeFields(word)
	attrs := make([]any, 0, 2+2*len(fields))
	attrs = append(attrs, "register", reg.Name, "value", fmt.Sprintf("0x%08x", word))
	for name, v := range fields {
		label := fmt.Sprintf("0x%x", v)
		if fld := fieldByName(reg, name); fld != nil {
			if en := fld.EnumName(v); en != "" {
				label = en
			}
		}
		attrs = append(attrs, name, label)
	}
	f.log.Log(context.Background(), logger.TraceLevel, kind, attrs...)
}

func (f *Framework) debugAccess(kind string, reg *svd.Register, old, new uint32) {
	f.traceAccess(kind, reg, new)
	if old != new {
		f.log.Debug("register changed", "register", reg.Name,
			"old", fmt.Sprintf("0x%08x", old), "new", fmt.Sprintf("0x%08x", new))
	}
}

func fieldByName(reg *svd.Register, name string) *svd.Field {
	for i := range reg.Fields {
		if reg.Fields[i].Name == name {
			return &reg.Fields[i]
		}
	}
	return nil
}
