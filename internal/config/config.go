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

// Package config loads the YAML run configuration (spec.md §6): cpu
// model, memory regions, firmware patches, peripheral instance
// settings, and external device attachments.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Region is one memory-map entry (spec.md §6).
type Region struct {
	Start    uint32 `yaml:"start"`
	Len      uint32 `yaml:"len"`
	Name     string `yaml:"name"`
	Load     string `yaml:"load,omitempty"`
	Writable bool   `yaml:"writable,omitempty"`
}

// Patch is a firmware byte-splice applied after the image load
// (spec.md §4.12, §6).
type Patch struct {
	Addr uint32 `yaml:"addr"`
	Data []byte `yaml:"data"`
}

// Peripheral is one peripheral instance's settings: whether it is
// enabled and which devices (by name) are attached to which point.
// USART/SPI instances also accept an attach point "dma", of the form
// "<controller>:<stream>" (e.g. "DMA2:7"), wiring that stream's
// trigger to this peripheral's TXE/RXNE condition (spec.md §4.5).
type Peripheral struct {
	Name     string            `yaml:"name"`
	Enabled  bool              `yaml:"enabled"`
	Attach   map[string]string `yaml:"attach,omitempty"`
}

// Device is one external device instance's configuration. Settings is
// kept as a raw map since each device kind (flash/tft/touch/eeprom/
// actor/...) needs different fields; System decodes it per kind.
type Device struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Config is the top-level YAML document (spec.md §6).
type Config struct {
	CPU         string       `yaml:"cpu"`
	Regions     []Region     `yaml:"regions"`
	Patches     []Patch      `yaml:"patches,omitempty"`
	Peripherals []Peripheral `yaml:"peripherals,omitempty"`
	Devices     []Device     `yaml:"devices,omitempty"`
}

// Load reads and parses path as a YAML Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &c, nil
}

// PeripheralSettings looks up one peripheral's config entry by name.
func (c *Config) PeripheralSettings(name string) (Peripheral, bool) {
	for _, p := range c.Peripherals {
		if p.Name == name {
			return p, true
		}
	}
	return Peripheral{}, false
}

// DeviceSettings looks up one device's config entry by name.
func (c *Config) DeviceSettings(name string) (Device, bool) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}
