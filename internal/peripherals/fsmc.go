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

// ParallelSink receives FSMC parallel-bus writes (spec.md §4.7, §4.11):
// isCmd distinguishes the command/register address range from the
// data range, mirroring how a 16-bit TFT/FPGA bus ties command vs data
// to one address line (commonly A16, the D/CX line's parallel-bus
// equivalent).
type ParallelSink interface {
	OnParallelWrite(isCmd bool, value uint16)
	OnParallelRead(isCmd bool) uint16
}

// FSMC models one NOR/SRAM bank of the Flexible Static Memory
// Controller narrowly: it is not a register peripheral in the usual
// sense, it is a pass-through memory window whose command/data split
// is carried by a single address bit (spec.md §4.11 "command vs pixel
// bursts"). BCR/BTR timing registers are tracked but not enforced,
// since this emulator never models bus-cycle timing.
type FSMC struct {
	base    uint32
	name    string
	cmdBit  uint32 // address bit distinguishing command (0) from data (1) space.
	log     *slog.Logger

	bcr1 uint32
	btr1 uint32

	sink ParallelSink
}

// NewFSMC constructs an FSMC bank window. base is where Def places the
// BCR1/BTR1 registers; the NE bank's memory window is mapped separately
// as a bus.Region with this as its Handler. cmdBit is the address line
// distinguishing command from data accesses within that window.
func NewFSMC(base uint32, name string, cmdBit uint32, log *slog.Logger) *FSMC {
	return &FSMC{base: base, name: name, cmdBit: cmdBit, log: log}
}

func (f *FSMC) Name() string { return f.name }
func (f *FSMC) Base() uint32 { return f.base }

func (f *FSMC) Attach(sink ParallelSink) { f.sink = sink }

func (f *FSMC) Def() *svd.Peripheral {
	return &svd.Peripheral{
		Name:        f.name,
		BaseAddress: f.base,
		Registers: []svd.Register{
			reg("BCR1", 0x00, 0x000030DB),
			reg("BTR1", 0x04, 0x0FFFFFFF),
		},
	}
}

func (f *FSMC) OnRead(reg *svd.Register, raw uint32) uint32 {
	return raw
}

func (f *FSMC) OnWrite(reg *svd.Register, old, new uint32) uint32 {
	switch reg.Name {
	case "BCR1":
		f.bcr1 = new
	case "BTR1":
		f.btr1 = new
	}
	return new
}

// Access implements bus.Handler directly for the NE bank's data
// window, bypassing the register framework: pixel/command traffic is
// not an SVD register space, it is a raw parallel bus.
func (f *FSMC) Access(offset uint32, width int, isWrite bool, value uint32) uint32 {
	isCmd := offset&(1<<f.cmdBit) == 0
	if f.sink == nil {
		return 0
	}
	if isWrite {
		f.sink.OnParallelWrite(isCmd, uint16(value))
		return 0
	}
	return uint32(f.sink.OnParallelRead(isCmd))
}
