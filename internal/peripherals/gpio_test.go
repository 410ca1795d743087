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
	"io"
	"log/slog"
	"testing"
)

type fixedDriver bool

func (f fixedDriver) Level() bool { return bool(f) }

func TestGPIOOutputReflectsOnIDR(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := NewGPIO(0x40020000, "GPIOA", log)
	def := g.Def()

	moder := def.RegisterAt(0x00)
	g.OnWrite(moder, 0, 1<<(2*3)) // pin 3 = output

	odr := def.RegisterAt(0x14)
	g.OnWrite(odr, 0, 1<<3)

	idr := def.RegisterAt(0x10)
	got := g.OnRead(idr, 0)
	if got&(1<<3) == 0 {
		t.Fatalf("IDR bit 3 not reflecting ODR: %#x", got)
	}
}

func TestGPIOBSRRSetAndReset(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := NewGPIO(0x40020000, "GPIOB", log)
	def := g.Def()
	bsrr := def.RegisterAt(0x18)

	g.OnWrite(bsrr, 0, 1<<5) // set pin 5
	if g.odr&(1<<5) == 0 {
		t.Fatalf("pin 5 not set via BSRR")
	}

	g.OnWrite(bsrr, 0, 1<<(16+5)) // reset pin 5
	if g.odr&(1<<5) != 0 {
		t.Fatalf("pin 5 not reset via BSRR")
	}
}

func TestGPIOClaimedPinOverridesODR(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := NewGPIO(0x40020000, "GPIOC", log)
	def := g.Def()

	g.ClaimPin(7, fixedDriver(true))

	idr := def.RegisterAt(0x10)
	got := g.OnRead(idr, 0)
	if got&(1<<7) == 0 {
		t.Fatalf("claimed pin 7 not reflected on IDR")
	}

	g.ClaimPin(7, nil)
	got = g.OnRead(idr, 0)
	if got&(1<<7) != 0 {
		t.Fatalf("pin 7 still driven after release")
	}
}
