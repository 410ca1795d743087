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

// I2CDevice is an external device addressable on an I2C bus (spec.md
// §4.7 "drives byte exchanges with an EEPROM model"). Start reports
// the address and transfer direction; Write/Read exchange a single
// byte; Stop ends the transaction.
type I2CDevice interface {
	Start(addr uint8, read bool) (ack bool)
	WriteByte(b byte) (ack bool)
	ReadByte() byte
	Stop()
}

const (
	i2cCR1_START = 8
	i2cCR1_STOP  = 9
	i2cSR1_TXE   = 7
	i2cSR1_RXNE  = 6
	i2cSR1_ADDR  = 1
	i2cSR1_SB    = 0
)

// I2C models a single-master I2C peripheral's CR1/CR2/SR1/SR2/DR
// closely enough to synthesize Start/Write/Read/Stop calls into an
// attached I2CDevice (spec.md §4.7); bus arbitration and clock
// stretching are out of scope since firmware in this emulator's
// domain always acts as sole master.
type I2C struct {
	base uint32
	name string
	log  *slog.Logger

	cr1, sr1 uint32
	addr     uint8
	reading  bool
	started  bool
	addrSent bool

	dev I2CDevice
}

func NewI2C(base uint32, name string, log *slog.Logger) *I2C {
	return &I2C{base: base, name: name, log: log}
}

func (i *I2C) Name() string { return i.name }
func (i *I2C) Base() uint32 { return i.base }

func (i *I2C) Attach(dev I2CDevice) { i.dev = dev }

func (i *I2C) Def() *svd.Peripheral {
	return &svd.Peripheral{
		Name:        i.name,
		BaseAddress: i.base,
		Registers: []svd.Register{
			withFields(reg("CR1", 0x00, 0), field("START", i2cCR1_START, 1), field("STOP", i2cCR1_STOP, 1)),
			reg("CR2", 0x04, 0),
			reg("OAR1", 0x08, 0),
			reg("OAR2", 0x0C, 0),
			reg("DR", 0x10, 0),
			withFields(reg("SR1", 0x14, 0),
				field("SB", i2cSR1_SB, 1), field("ADDR", i2cSR1_ADDR, 1),
				field("TXE", i2cSR1_TXE, 1), field("RXNE", i2cSR1_RXNE, 1)),
			reg("SR2", 0x18, 0),
			reg("CCR", 0x1C, 0),
			reg("TRISE", 0x20, 0x02),
		},
	}
}

func (i *I2C) OnRead(reg *svd.Register, raw uint32) uint32 {
	if reg.Name == "DR" && i.dev != nil && i.reading {
		return uint32(i.dev.ReadByte())
	}
	return raw
}

func (i *I2C) OnWrite(reg *svd.Register, old, new uint32) uint32 {
	switch reg.Name {
	case "CR1":
		if new&(1<<i2cCR1_START) != 0 {
			i.sr1 |= 1 << i2cSR1_SB
			i.started = true
			i.addrSent = false
		}
		if new&(1<<i2cCR1_STOP) != 0 {
			if i.dev != nil {
				i.dev.Stop()
			}
			i.started = false
			i.addrSent = false
		}
		i.cr1 = new
		return new
	case "DR":
		if !i.started {
			return new
		}
		if i.addrPending() {
			i.addr = uint8(new >> 1)
			i.reading = new&1 != 0
			if i.dev != nil {
				i.dev.Start(i.addr, i.reading)
			}
			i.sr1 |= 1 << i2cSR1_ADDR
			i.addrSent = true
			return new
		}
		if i.dev != nil && !i.reading {
			i.dev.WriteByte(byte(new))
		}
		return new
	default:
		return new
	}
}

// addrPending reports whether the next DR write is the address byte
// that follows a START condition.
func (i *I2C) addrPending() bool {
	return i.started && !i.addrSent
}
