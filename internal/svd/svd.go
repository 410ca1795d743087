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

// Package svd parses a CMSIS-SVD vendor peripheral description file into
// an immutable catalog of peripherals, registers, fields, and enumerated
// values, indexed by absolute address.
//
// There is no SVD/XML parsing library anywhere in the example corpus this
// module was grounded on, so this package reaches for the standard
// library's encoding/xml rather than adapting an unrelated parser
// combinator (participle) that targets hand-rolled token grammars, not
// XML. See DESIGN.md.
package svd

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Access modes for registers and fields.
type Access int

const (
	AccessReadWrite Access = iota
	AccessReadOnly
	AccessWriteOnly
	AccessReadWriteOnce
	AccessWriteOnce
)

func parseAccess(s string) Access {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read-only":
		return AccessReadOnly
	case "write-only":
		return AccessWriteOnly
	case "read-writeonce":
		return AccessReadWriteOnce
	case "writeonce":
		return AccessWriteOnce
	default:
		return AccessReadWrite
	}
}

// EnumValue is one named numeric value of a field's enumeratedValues.
type EnumValue struct {
	Name  string
	Value uint32
}

// Field describes one bitfield of a register.
type Field struct {
	Name      string
	BitOffset uint32
	BitWidth  uint32
	Access    Access
	Enum      []EnumValue
}

// Mask returns the field's bitmask within the containing register word.
func (f *Field) Mask() uint32 {
	if f.BitWidth >= 32 {
		return 0xFFFFFFFF
	}
	return ((uint32(1) << f.BitWidth) - 1) << f.BitOffset
}

// Decode extracts this field's value from a raw register word.
func (f *Field) Decode(word uint32) uint32 {
	return (word & f.Mask()) >> f.BitOffset
}

// EnumName returns the enumerated name for a decoded field value, or ""
// if the field has no matching enumerated value.
func (f *Field) EnumName(value uint32) string {
	for _, e := range f.Enum {
		if e.Value == value {
			return e.Name
		}
	}
	return ""
}

// Register describes one addressable register of a peripheral.
type Register struct {
	Name     string
	Offset   uint32
	Width    uint32
	Reset    uint32
	Access   Access
	Fields   []Field
}

// DecodeFields returns the name->value map of every field in word, used
// for TRACE-level register-access logging (§4.2).
func (r *Register) DecodeFields(word uint32) map[string]uint32 {
	out := make(map[string]uint32, len(r.Fields))
	for i := range r.Fields {
		out[r.Fields[i].Name] = r.Fields[i].Decode(word)
	}
	return out
}

// Peripheral describes one peripheral's register layout, as found in the
// SVD (before any per-instance base-address rebasing via derivedFrom).
type Peripheral struct {
	Name        string
	BaseAddress uint32
	DerivedFrom string
	Registers   []Register
}

// RegisterAt returns the register whose offset matches, or nil.
func (p *Peripheral) RegisterAt(offset uint32) *Register {
	for i := range p.Registers {
		if p.Registers[i].Offset == offset {
			return &p.Registers[i]
		}
	}
	return nil
}

// Device is the full parsed catalog for one CPU model.
type Device struct {
	Name        string
	Peripherals []Peripheral
}

// ByName finds a peripheral definition, resolving derivedFrom chains so
// the caller always gets a fully populated register list.
func (d *Device) ByName(name string) (*Peripheral, error) {
	for i := range d.Peripherals {
		if d.Peripherals[i].Name == name {
			p := d.Peripherals[i]
			if p.DerivedFrom != "" && len(p.Registers) == 0 {
				base, err := d.ByName(p.DerivedFrom)
				if err != nil {
					return nil, fmt.Errorf("svd: %s derivedFrom %s: %w", name, p.DerivedFrom, err)
				}
				p.Registers = base.Registers
			}
			return &p, nil
		}
	}
	return nil, fmt.Errorf("svd: unknown peripheral %q", name)
}

// --- XML wire format ---

type xmlDevice struct {
	XMLName     xml.Name        `xml:"device"`
	Name        string          `xml:"name"`
	Peripherals []xmlPeripheral `xml:"peripherals>peripheral"`
}

type xmlPeripheral struct {
	Name        string         `xml:"name"`
	DerivedFrom string         `xml:"derivedFrom,attr"`
	BaseAddress string         `xml:"baseAddress"`
	Registers   []xmlRegister  `xml:"registers>register"`
}

type xmlRegister struct {
	Name        string     `xml:"name"`
	AddressOff  string     `xml:"addressOffset"`
	Size        string     `xml:"size"`
	ResetValue  string     `xml:"resetValue"`
	AccessStr   string     `xml:"access"`
	Fields      []xmlField `xml:"fields>field"`
}

type xmlField struct {
	Name        string    `xml:"name"`
	BitOffset   string    `xml:"bitOffset"`
	BitWidth    string    `xml:"bitWidth"`
	LSB         string    `xml:"lsb"`
	MSB         string    `xml:"msb"`
	AccessStr   string    `xml:"access"`
	EnumValues  []xmlEnum `xml:"enumeratedValues>enumeratedValue"`
}

type xmlEnum struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

func parseUint(s string) uint32 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.TrimPrefix(s, "#")
	base := 10
	switch {
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		s = s[2:]
		base = 16
	case strings.ContainsAny(s, "xXbB") && !strings.ContainsAny(s, "0123456789"):
		base = 2
	}
	v, _ := strconv.ParseUint(s, base, 64)
	return uint32(v)
}

// Parse reads an SVD document from r into a Device catalog.
func Parse(r io.Reader) (*Device, error) {
	var xd xmlDevice
	if err := xml.NewDecoder(r).Decode(&xd); err != nil {
		return nil, fmt.Errorf("svd: parse: %w", err)
	}

	dev := &Device{Name: xd.Name}
	for _, xp := range xd.Peripherals {
		p := Peripheral{
			Name:        xp.Name,
			DerivedFrom: xp.DerivedFrom,
			BaseAddress: parseUint(xp.BaseAddress),
		}
		for _, xr := range xp.Registers {
			reg := Register{
				Name:   xr.Name,
				Offset: parseUint(xr.AddressOff),
				Width:  parseUint(xr.Size),
				Reset:  parseUint(xr.ResetValue),
				Access: parseAccess(xr.AccessStr),
			}
			if reg.Width == 0 {
				reg.Width = 32
			}
			for _, xf := range xr.Fields {
				f := Field{
					Name:   xf.Name,
					Access: parseAccess(xf.AccessStr),
				}
				if xf.LSB != "" || xf.MSB != "" {
					lsb := parseUint(xf.LSB)
					msb := parseUint(xf.MSB)
					f.BitOffset = lsb
					f.BitWidth = msb - lsb + 1
				} else {
					f.BitOffset = parseUint(xf.BitOffset)
					f.BitWidth = parseUint(xf.BitWidth)
				}
				for _, xe := range xf.EnumValues {
					f.Enum = append(f.Enum, EnumValue{Name: xe.Name, Value: parseUint(xe.Value)})
				}
				reg.Fields = append(reg.Fields, f)
			}
			p.Registers = append(p.Registers, reg)
		}
		dev.Peripherals = append(dev.Peripherals, p)
	}
	return dev, nil
}

// ParseFile opens and parses an SVD file from disk.
func ParseFile(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("svd: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
