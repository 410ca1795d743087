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

// ByteSink receives bytes transmitted by a USART (spec.md §4.7).
type ByteSink interface {
	OnByte(b byte)
}

// ByteSource supplies bytes a USART receives; ReadByte reports whether
// a byte was actually available.
type ByteSource interface {
	ReadByte() (byte, bool)
}

const (
	usartSR_TXE  = 7
	usartSR_TC   = 6
	usartSR_RXNE = 5
)

// USART models SR/DR/BRR/CR1/CR2/CR3 closely enough to stream bytes to
// an attached sink and pull bytes from an attached source (spec.md
// §4.7); it does not model baud-rate timing, since nothing in spec.md
// depends on byte-arrival timing beyond program order.
type USART struct {
	base uint32
	name string
	log  *slog.Logger

	sr  uint32
	cr1 uint32

	sink   ByteSink
	source ByteSource

	// dmaRequest, if set, is called after every DR access completes,
	// modeling the TXE/RXNE trigger condition a DMA stream is armed
	// against (spec.md §4.5); System.Boot wires it to that stream's
	// Trigger.
	dmaRequest func()
}

func NewUSART(base uint32, name string, log *slog.Logger) *USART {
	return &USART{base: base, name: name, log: log, sr: 1<<usartSR_TXE | 1<<usartSR_TC}
}

func (u *USART) Name() string { return u.name }
func (u *USART) Base() uint32 { return u.base }

// Attach wires an external device's sink and/or source onto this
// instance (spec.md §4.7, §9 registry-of-names resolved at startup).
func (u *USART) Attach(sink ByteSink, source ByteSource) {
	u.sink = sink
	u.source = source
}

// SetDMARequest wires cb to fire on every DR access (spec.md §4.5).
func (u *USART) SetDMARequest(cb func()) {
	u.dmaRequest = cb
}

func (u *USART) Def() *svd.Peripheral {
	return &svd.Peripheral{
		Name:        u.name,
		BaseAddress: u.base,
		Registers: []svd.Register{
			withFields(reg("SR", 0x00, 0x00C0),
				field("RXNE", usartSR_RXNE, 1), field("TC", usartSR_TC, 1), field("TXE", usartSR_TXE, 1)),
			reg("DR", 0x04, 0),
			reg("BRR", 0x08, 0),
			reg("CR1", 0x0C, 0),
			reg("CR2", 0x10, 0),
			reg("CR3", 0x14, 0),
		},
	}
}

func (u *USART) OnRead(reg *svd.Register, raw uint32) uint32 {
	if reg.Name != "DR" {
		return raw
	}
	var v uint32
	if u.source != nil {
		if b, ok := u.source.ReadByte(); ok {
			v = uint32(b)
		}
	}
	if u.dmaRequest != nil {
		u.dmaRequest()
	}
	return v
}

func (u *USART) OnWrite(reg *svd.Register, old, new uint32) uint32 {
	switch reg.Name {
	case "CR1":
		u.cr1 = new
		return new
	case "DR":
		if u.sink != nil {
			u.sink.OnByte(byte(new))
		}
		if u.dmaRequest != nil {
			u.dmaRequest()
		}
		return new
	default:
		return new
	}
}
