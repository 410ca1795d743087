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

package devices

import "log/slog"

// I2CEEPROM models a byte-addressable EEPROM (e.g. 24C02-family) on
// an I2C bus (spec.md §4.7 "drives byte exchanges with an EEPROM
// model", the [EXPANDED] I2C EEPROM component). A write transaction's
// first data byte is the memory address; subsequent bytes write
// sequentially with address wraparound. A read transaction (no
// address byte in the same Start, i.e. a repeated-start read) streams
// from the address left by the prior write.
type I2CEEPROM struct {
	name string
	log  *slog.Logger

	data []byte
	addr int

	reading     bool
	haveAddress bool
}

func NewI2CEEPROM(name string, size int, log *slog.Logger) *I2CEEPROM {
	return &I2CEEPROM{name: name, log: log, data: make([]byte, size)}
}

// Image exposes the backing store so configuration can pre-load it.
func (e *I2CEEPROM) Image() []byte { return e.data }

// Start implements peripherals.I2CDevice.
func (e *I2CEEPROM) Start(addr uint8, read bool) bool {
	e.reading = read
	e.haveAddress = read // a read-direction Start reuses the address left by the prior write.
	return true
}

func (e *I2CEEPROM) WriteByte(b byte) bool {
	if !e.haveAddress {
		e.addr = int(b)
		e.haveAddress = true
		return true
	}
	if e.addr < len(e.data) {
		e.data[e.addr] = b
	}
	e.addr = (e.addr + 1) % max(1, len(e.data))
	return true
}

func (e *I2CEEPROM) ReadByte() byte {
	if e.addr >= len(e.data) {
		return 0xFF
	}
	b := e.data[e.addr]
	e.addr = (e.addr + 1) % max(1, len(e.data))
	return b
}

func (e *I2CEEPROM) Stop() {
	e.haveAddress = false
}
