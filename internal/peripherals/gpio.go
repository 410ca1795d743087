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

// PinMode is the two-bit MODER encoding for a GPIO pin.
type PinMode uint8

const (
	PinInput PinMode = iota
	PinOutput
	PinAlt
	PinAnalog
)

// PinDriver lets an external device (spec.md §4.10's touch pen-down
// line, or a plain GPIO-attached actor, §4.11/§2 item 5) override a
// pin's input level regardless of what firmware last drove onto ODR.
// Only one driver may claim a pin at a time; claiming again replaces
// the previous driver.
type PinDriver interface {
	// Level returns the externally-driven input level for the pin.
	Level() bool
}

// GPIO models one GPIOx port: 16 pins with mode/output-type/speed/pull
// configuration plus ODR/IDR/BSRR/BRR/LCKR register semantics
// (spec.md §4.6).
type GPIO struct {
	base uint32
	name string
	log  *slog.Logger

	moder   uint32
	otyper  uint32
	ospeedr uint32
	pupdr   uint32
	idr     uint32
	odr     uint32
	lckr    uint32
	afrl    uint32
	afrh    uint32

	driver [16]PinDriver
}

func NewGPIO(base uint32, name string, log *slog.Logger) *GPIO {
	return &GPIO{base: base, name: name, log: log}
}

func (g *GPIO) Name() string { return g.name }
func (g *GPIO) Base() uint32 { return g.base }

func (g *GPIO) Def() *svd.Peripheral {
	return &svd.Peripheral{
		Name:        g.name,
		BaseAddress: g.base,
		Registers: []svd.Register{
			reg("MODER", 0x00, 0),
			reg("OTYPER", 0x04, 0),
			reg("OSPEEDR", 0x08, 0),
			reg("PUPDR", 0x0C, 0),
			regRO("IDR", 0x10, 0),
			reg("ODR", 0x14, 0),
			reg("BSRR", 0x18, 0),
			reg("LCKR", 0x1C, 0),
			reg("AFRL", 0x20, 0),
			reg("AFRH", 0x24, 0),
			reg("BRR", 0x28, 0), // not on real silicon, but harmless: some vendor SVDs add it.
		},
	}
}

// ClaimPin attaches an external driver to pin, which from then on
// determines that pin's input level independent of ODR. Passing nil
// releases the claim.
func (g *GPIO) ClaimPin(pin int, d PinDriver) {
	if pin >= 0 && pin < 16 {
		g.driver[pin] = d
	}
}

func (g *GPIO) modeOf(pin int) PinMode {
	return PinMode((g.moder >> (2 * uint(pin))) & 0x3)
}

// computeIDR derives IDR from ODR for output pins and from any claimed
// driver for externally-driven pins; unclaimed input pins read 0 (no
// floating-input modeling).
func (g *GPIO) computeIDR() uint32 {
	var idr uint32
	for pin := 0; pin < 16; pin++ {
		var level bool
		if d := g.driver[pin]; d != nil {
			level = d.Level()
		} else if g.modeOf(pin) == PinOutput {
			level = g.odr&(1<<uint(pin)) != 0
		}
		if level {
			idr |= 1 << uint(pin)
		}
	}
	return idr
}

func (g *GPIO) OnRead(reg *svd.Register, raw uint32) uint32 {
	if reg.Name == "IDR" {
		return g.computeIDR()
	}
	if reg.Name == "ODR" {
		return g.odr
	}
	return raw
}

func (g *GPIO) OnWrite(reg *svd.Register, old, new uint32) uint32 {
	switch reg.Name {
	case "MODER":
		g.moder = new
		return new
	case "OTYPER":
		g.otyper = new
		return new
	case "OSPEEDR":
		g.ospeedr = new
		return new
	case "PUPDR":
		g.pupdr = new
		return new
	case "AFRL":
		g.afrl = new
		return new
	case "AFRH":
		g.afrh = new
		return new
	case "ODR":
		g.odr = new
		g.log.Debug("GPIO ODR updated", "port", g.name, "value", new)
		return new
	case "BSRR":
		// Low halfword sets, high halfword resets; reset wins ties per
		// architecture when both bits are set for the same pin.
		set := new & 0xFFFF
		reset := new >> 16
		g.odr = (g.odr | set) &^ reset
		return 0
	case "BRR":
		g.odr &^= new & 0xFFFF
		return 0
	case "LCKR":
		g.lckr = new
		return new
	default:
		return new
	}
}
