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

// Package bus implements the emulator's memory-map dispatcher: a sorted,
// non-overlapping set of address regions that every CPU load/store is
// resolved against (spec.md §4.1).
package bus

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Kind distinguishes how a region services accesses.
type Kind int

const (
	// RAM regions are backed by a flat byte array, little-endian.
	RAM Kind = iota
	// Device regions delegate to a Handler.
	Device
	// Guard regions exist only to occupy address space (e.g. the NULL
	// guard at 0x00000000) and behave like RAM that discards writes and
	// reads as zero, without the UNMAPPED warning a true gap produces.
	Guard
)

// Handler services a Device-kind region. offset is relative to the
// region's Start. For reads, the return value is the word read; for
// writes, value holds the data being written and the return value is
// ignored.
type Handler interface {
	Access(offset uint32, width int, isWrite bool, value uint32) uint32
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(offset uint32, width int, isWrite bool, value uint32) uint32

func (f HandlerFunc) Access(offset uint32, width int, isWrite bool, value uint32) uint32 {
	return f(offset, width, isWrite, value)
}

// Region is one mapped span of the 32-bit address space.
type Region struct {
	Start   uint32
	Len     uint32
	Name    string
	Kind    Kind
	Data    []byte  // backing store for RAM/Guard
	Handler Handler // backing store for Device
}

func (r *Region) end() uint32 { return r.Start + r.Len }

func (r *Region) contains(addr uint32) bool {
	return addr >= r.Start && addr < r.end()
}

// Bus is the resolved memory map.
type Bus struct {
	regions []*Region
	log     *slog.Logger
}

// New creates an empty bus. log may be nil, in which case
// slog.Default() is used.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log}
}

// MapRegion inserts a region, keeping the region list sorted by Start.
// It is a configuration error (per spec.md §7) for the new region to
// overlap any existing one.
func (b *Bus) MapRegion(r *Region) error {
	if r.Kind != Device && r.Data == nil {
		r.Data = make([]byte, r.Len)
	}
	for _, existing := range b.regions {
		if r.Start < existing.end() && existing.Start < r.end() {
			return fmt.Errorf("bus: region %q [0x%08x,0x%08x) overlaps %q [0x%08x,0x%08x)",
				r.Name, r.Start, r.end(), existing.Name, existing.Start, existing.end())
		}
	}
	b.regions = append(b.regions, r)
	sort.Slice(b.regions, func(i, j int) bool { return b.regions[i].Start < b.regions[j].Start })
	return nil
}

// Resolve returns the region containing addr, or nil if unmapped.
// Binary search over the sorted region list per spec.md §4.1.
func (b *Bus) Resolve(addr uint32) *Region {
	regions := b.regions
	lo, hi := 0, len(regions)
	for lo < hi {
		mid := (lo + hi) / 2
		r := regions[mid]
		switch {
		case addr < r.Start:
			hi = mid
		case addr >= r.end():
			lo = mid + 1
		default:
			return r
		}
	}
	return nil
}

// LoadImage reads a file fully into a RAM/Guard region at byte offset
// within that region. The image must fit; otherwise this is an I/O
// error per spec.md §7 (exit code 2 at the CLI layer).
func (b *Bus) LoadImage(path string, region *Region, offset uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("bus: load image %s: %w", path, err)
	}
	if uint64(offset)+uint64(len(data)) > uint64(len(region.Data)) {
		return fmt.Errorf("bus: image %s (%d bytes) does not fit region %q at offset 0x%x",
			path, len(data), region.Name, offset)
	}
	copy(region.Data[offset:], data)
	return nil
}

// Patch splices replacement bytes into memory at an absolute address,
// applied once after image load per spec.md §4.12.
func (b *Bus) Patch(addr uint32, data []byte) error {
	for i, d := range data {
		a := addr + uint32(i)
		r := b.Resolve(a)
		if r == nil || r.Kind == Device {
			return fmt.Errorf("bus: patch address 0x%08x not in writable RAM", a)
		}
		r.Data[a-r.Start] = d
	}
	return nil
}

// pc is threaded through Read/Write purely for the UNMAPPED log line's
// "pc=" attribute (spec.md §6 logging format); the bus itself has no
// notion of program counter.

// Read resolves and services a load of width bytes (1, 2, or 4) at addr.
// Unaligned or cross-region accesses are decomposed into a byte-wise
// read-and-assemble so region boundaries are always respected.
func (b *Bus) Read(pc, addr uint32, width int) uint32 {
	if width != 1 && addr%uint32(width) == 0 {
		if r := b.Resolve(addr); r != nil && r.contains(addr+uint32(width)-1) {
			return b.readAligned(r, addr, width)
		}
	}
	var out uint32
	for i := 0; i < width; i++ {
		b8 := b.readByte(pc, addr+uint32(i))
		out |= uint32(b8) << (8 * i)
	}
	return out
}

func (b *Bus) readAligned(r *Region, addr uint32, width int) uint32 {
	off := addr - r.Start
	switch r.Kind {
	case Device:
		return r.Handler.Access(off, width, false, 0)
	default:
		switch width {
		case 2:
			return uint32(binary.LittleEndian.Uint16(r.Data[off:]))
		case 4:
			return binary.LittleEndian.Uint32(r.Data[off:])
		default:
			return uint32(r.Data[off])
		}
	}
}

func (b *Bus) readByte(pc, addr uint32) uint8 {
	r := b.Resolve(addr)
	if r == nil {
		b.log.Warn("READ_UNMAPPED", "addr", fmt.Sprintf("0x%08x", addr), "size", 1, "pc", pc)
		return 0
	}
	switch r.Kind {
	case Device:
		return uint8(r.Handler.Access(addr-r.Start, 1, false, 0))
	default:
		return r.Data[addr-r.Start]
	}
}

// Write resolves and services a store of width bytes (1, 2, or 4) at
// addr. Accesses to no region are dropped with an UNMAPPED warning;
// they never halt emulation (spec.md §4.1, §7).
func (b *Bus) Write(pc, addr uint32, width int, value uint32) {
	if width != 1 && addr%uint32(width) == 0 {
		if r := b.Resolve(addr); r != nil && r.contains(addr+uint32(width)-1) {
			b.writeAligned(r, addr, width, value)
			return
		}
	}
	for i := 0; i < width; i++ {
		b.writeByte(pc, addr+uint32(i), uint8(value>>(8*i)))
	}
}

func (b *Bus) writeAligned(r *Region, addr uint32, width int, value uint32) {
	off := addr - r.Start
	switch r.Kind {
	case Device:
		r.Handler.Access(off, width, true, value)
	case Guard:
		// discard
	default:
		switch width {
		case 2:
			binary.LittleEndian.PutUint16(r.Data[off:], uint16(value))
		case 4:
			binary.LittleEndian.PutUint32(r.Data[off:], value)
		default:
			r.Data[off] = uint8(value)
		}
	}
}

func (b *Bus) writeByte(pc, addr uint32, value uint8) {
	r := b.Resolve(addr)
	if r == nil {
		b.log.Warn("WRITE_UNMAPPED", "addr", fmt.Sprintf("0x%08x", addr), "size", 1, "pc", pc)
		return
	}
	switch r.Kind {
	case Device:
		r.Handler.Access(addr-r.Start, 1, true, uint32(value))
	case Guard:
		// discard
	default:
		r.Data[addr-r.Start] = value
	}
}
