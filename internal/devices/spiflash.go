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

// Package devices implements the external SPI/parallel-bus peripherals
// named in spec.md §4.8-§4.11: SPI flash, TFT, touch, LCD/FPGA, plus
// the ambient USART probe, software-SPI bridge, I2C EEPROM and plain
// GPIO actors from §2 item 5.
package devices

import (
	"fmt"
	"log/slog"
)

// Flash commands (spec.md §4.8).
const (
	cmdReadJEDECID = 0x9F
	cmdReadData    = 0x03
	cmdFastRead    = 0x0B
	cmdPageProgram = 0x02
	cmdSectorErase = 0xD8
	cmdReadStatus  = 0x05
	cmdWriteEnable = 0x06
)

type flashState int

const (
	flashIdle flashState = iota
	flashCmd
	flashAddr
	flashDummy
	flashData
)

// addrBytes reports how many address bytes follow cmd, or 0 if cmd
// takes none.
func addrBytes(cmd byte) int {
	switch cmd {
	case cmdReadData, cmdFastRead, cmdPageProgram, cmdSectorErase:
		return 3
	default:
		return 0
	}
}

// SPIFlash is a full-duplex SPI NOR flash state machine backed by a
// byte slice (spec.md §4.8): IDLE -> CMD -> ADDR -> DATA, reset to
// IDLE on chip-select deassertion. 16-bit SPI frames are decomposed by
// the peripherals.SPI peripheral into two MSB-first Exchange calls
// before reaching here, so this type only ever sees bytes.
type SPIFlash struct {
	name     string
	log      *slog.Logger
	image    []byte
	writable bool
	jedecID  [3]byte

	state      flashState
	cmd        byte
	addr       uint32
	addrNeed   int
	addrGot    int
	writeEnabled bool

	dataCount int    // bytes returned so far in the current command's data phase.
	rx        []byte // bytes actually returned to the master (MISO) this command, for logging.
}

// NewSPIFlash constructs a flash model over image (the backing file's
// contents, already loaded by the caller); writable controls whether
// PageProgram/SectorErase mutate image.
func NewSPIFlash(name string, image []byte, writable bool, jedecID [3]byte, log *slog.Logger) *SPIFlash {
	return &SPIFlash{name: name, image: image, writable: writable, jedecID: jedecID, log: log}
}

func (f *SPIFlash) Select(asserted bool) {
	if asserted {
		f.state = flashIdle
		f.rx = f.rx[:0]
		return
	}
	if len(f.rx) > 0 {
		f.log.Info("spi-flash transaction", "dev", f.name, "cmd", fmt.Sprintf("%#02x", f.cmd), "rx", fmt.Sprintf("%x", f.rx))
	}
	f.state = flashIdle
}

func (f *SPIFlash) Exchange(mosi byte) byte {
	switch f.state {
	case flashIdle:
		f.cmd = mosi
		f.addrNeed = addrBytes(mosi)
		f.addr = 0
		f.addrGot = 0
		f.dataCount = 0
		if mosi == cmdWriteEnable {
			f.writeEnabled = true
		}
		if f.addrNeed > 0 {
			f.state = flashAddr
		} else {
			f.state = flashData
		}
		return 0xFF

	case flashAddr:
		f.addr = f.addr<<8 | uint32(mosi)
		f.addrGot++
		if f.addrGot == f.addrNeed {
			if f.cmd == cmdFastRead {
				f.state = flashDummy
			} else {
				f.state = flashData
			}
		}
		return 0xFF

	case flashDummy:
		f.state = flashData
		return 0xFF

	case flashData:
		b := f.dataByte(mosi)
		f.rx = append(f.rx, b)
		f.dataCount++
		return b
	}
	return 0xFF
}

func (f *SPIFlash) dataByte(mosi byte) byte {
	switch f.cmd {
	case cmdReadJEDECID:
		if f.dataCount < 3 {
			return f.jedecID[f.dataCount]
		}
		return 0xFF

	case cmdReadData, cmdFastRead:
		b := f.readByte(f.addr)
		f.addr++
		return b

	case cmdPageProgram:
		if f.writable && f.writeEnabled {
			f.writeByte(f.addr, mosi)
		}
		f.addr++
		return 0xFF

	case cmdSectorErase:
		if f.writable && f.writeEnabled {
			f.eraseSector(f.addr)
		}
		return 0xFF

	case cmdReadStatus:
		var sr byte
		if f.writeEnabled {
			sr |= 1 << 1
		}
		return sr

	case cmdWriteEnable:
		f.writeEnabled = true
		return 0xFF

	default:
		f.log.Warn("unknown spi-flash command", "dev", f.name, "cmd", fmt.Sprintf("%#02x", f.cmd))
		return 0xFF
	}
}

func (f *SPIFlash) readByte(addr uint32) byte {
	if int(addr) >= len(f.image) {
		return 0xFF
	}
	return f.image[addr]
}

func (f *SPIFlash) writeByte(addr uint32, v byte) {
	if int(addr) < len(f.image) {
		f.image[addr] = v
	}
}

func (f *SPIFlash) eraseSector(addr uint32) {
	const sectorSize = 4096
	start := int(addr) &^ (sectorSize - 1)
	end := start + sectorSize
	if end > len(f.image) {
		end = len(f.image)
	}
	for i := start; i < end; i++ {
		f.image[i] = 0xFF
	}
}
