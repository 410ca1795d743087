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

package system

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/nviennot/stm32-emulator/internal/bus"
	"github.com/nviennot/stm32-emulator/internal/config"
	"github.com/nviennot/stm32-emulator/internal/devices"
	"github.com/nviennot/stm32-emulator/internal/framebuffer"
	"github.com/nviennot/stm32-emulator/internal/peripherals"
	"github.com/nviennot/stm32-emulator/internal/svd"
)

// STM32F407 peripheral base addresses (RM0090).
const (
	baseRCC    = 0x40023800
	baseGPIOA  = 0x40020000
	gpioStride = 0x400
	baseUSART1 = 0x40011000
	baseUSART2 = 0x40004400
	baseUSART3 = 0x40004800
	baseSPI1   = 0x40013000
	baseSPI2   = 0x40003800
	baseSPI3   = 0x40003C00
	baseI2C1   = 0x40005400
	baseI2C2   = 0x40005800
	baseI2C3   = 0x40005C00
	baseDMA1   = 0x40026000
	baseDMA2   = 0x40026400
	baseFSMC   = 0xA0000000
	baseFSMCNE = 0x60000000
	lenFSMCNE  = 0x20000
	baseSysTick = 0xE000E010
	lenSysTick  = 0x10
	baseNVIC    = 0xE000E100
	fsmcCmdBit  = 16
)

var gpioNames = []string{"GPIOA", "GPIOB", "GPIOC", "GPIOD", "GPIOE"}

// Boot mounts the standard STM32F407 core peripheral set (spec.md
// §4.3-§4.7) and then instantiates and attaches every external device
// named in cfg, resolving attach points by name (spec.md §9's
// registry-based wiring, never direct pointer embedding at
// construction time).
func (s *System) Boot(cfg *config.Config) error {
	if err := s.loadSVD(cfg); err != nil {
		return err
	}

	rcc := peripherals.NewRCC(baseRCC, s.Log)
	if err := s.Mount(rcc, rcc.Def(), 0); err != nil {
		return err
	}

	systick := peripherals.NewSysTick(baseSysTick, s.NVIC, s.Log)
	if err := s.Mount(systick, systick.Def(), lenSysTick); err != nil {
		return err
	}

	nvic := peripherals.NewNVIC(baseNVIC, s.NVIC, s.Log)
	if err := s.Mount(nvic, nvic.Def(), 0); err != nil {
		return err
	}

	for i, name := range gpioNames {
		g := peripherals.NewGPIO(baseGPIOA+uint32(i)*gpioStride, name, s.Log)
		if err := s.Mount(g, g.Def(), 0); err != nil {
			return err
		}
	}

	for name, base := range map[string]uint32{"USART1": baseUSART1, "USART2": baseUSART2, "USART3": baseUSART3} {
		u := peripherals.NewUSART(base, name, s.Log)
		if err := s.Mount(u, u.Def(), 0); err != nil {
			return err
		}
	}

	for name, base := range map[string]uint32{"SPI1": baseSPI1, "SPI2": baseSPI2, "SPI3": baseSPI3} {
		p := peripherals.NewSPI(base, name, s.Log)
		if err := s.Mount(p, p.Def(), 0); err != nil {
			return err
		}
	}

	for name, base := range map[string]uint32{"I2C1": baseI2C1, "I2C2": baseI2C2, "I2C3": baseI2C3} {
		p := peripherals.NewI2C(base, name, s.Log)
		if err := s.Mount(p, p.Def(), 0); err != nil {
			return err
		}
	}

	for name, base := range map[string]uint32{"DMA1": baseDMA1, "DMA2": baseDMA2} {
		d := peripherals.NewDMA(base, name, s.Bus, s.Log)
		if err := s.Mount(d, d.Def(), 0); err != nil {
			return err
		}
	}

	fsmc := peripherals.NewFSMC(baseFSMC, "FSMC", fsmcCmdBit, s.Log)
	if err := s.Mount(fsmc, fsmc.Def(), 0); err != nil {
		return err
	}
	if err := s.Bus.MapRegion(&bus.Region{Start: baseFSMCNE, Len: lenFSMCNE, Name: "FSMC-NE1", Kind: bus.Device, Handler: fsmc}); err != nil {
		return err
	}
	s.peripherals["FSMC"] = fsmc

	for _, dev := range cfg.Devices {
		inst, err := s.buildDevice(dev)
		if err != nil {
			return fmt.Errorf("building device %s: %w", dev.Name, err)
		}
		s.AddDevice(dev.Name, inst)
	}

	for _, pc := range cfg.Peripherals {
		if err := s.attach(pc); err != nil {
			return fmt.Errorf("attaching %s: %w", pc.Name, err)
		}
	}

	return nil
}

// loadSVD consumes cfg.CPU (spec.md §6 "cpu... used to select the
// SVD"), a path to a CMSIS-SVD file for the target part. Each core
// peripheral's Mount call then prefers a same-named entry from it over
// the built-in catalog in defs.go. A missing file is not fatal: no
// vendor SVD ships in this environment, so Boot falls back to the
// built-in catalog (defs.go) and only fails on a malformed one.
func (s *System) loadSVD(cfg *config.Config) error {
	if cfg.CPU == "" {
		return nil
	}
	dev, err := svd.ParseFile(cfg.CPU)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.Log.Info("no SVD file for cpu, using built-in peripheral catalog", "cpu", cfg.CPU)
			return nil
		}
		return fmt.Errorf("loading SVD for cpu %s: %w", cfg.CPU, err)
	}
	s.SVD = dev
	return nil
}

func settingString(dev config.Device, key, def string) string {
	if v, ok := dev.Settings[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func settingInt(dev config.Device, key string, def int) int {
	if v, ok := dev.Settings[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}

func settingBool(dev config.Device, key string, def bool) bool {
	if v, ok := dev.Settings[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (s *System) buildDevice(dev config.Device) (any, error) {
	switch dev.Kind {
	case "spi-flash":
		path := settingString(dev, "image", "")
		var image []byte
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			image = data
		} else {
			image = make([]byte, settingInt(dev, "size", 1<<20))
		}
		jedec := [3]byte{0xEF, 0x40, 0x16}
		return devices.NewSPIFlash(dev.Name, image, settingBool(dev, "writable", true), jedec, s.Log), nil

	case "tft":
		sink := framebuffer.NewChannelSink(0)
		return devices.NewTFT(dev.Name, settingInt(dev, "width", 240), settingInt(dev, "height", 320), sink, s.Log), nil

	case "touch":
		return devices.NewTouch(dev.Name, s.Log), nil

	case "fpga":
		sink := framebuffer.NewChannelSink(0)
		return devices.NewFPGA(dev.Name, settingInt(dev, "width", 240), settingInt(dev, "height", 320), sink, s.Log), nil

	case "usart-probe":
		return devices.NewUSARTProbe(dev.Name, s.Log), nil

	case "i2c-eeprom":
		return devices.NewI2CEEPROM(dev.Name, settingInt(dev, "size", 256), s.Log), nil

	case "soft-spi":
		return devices.NewSoftSPI(dev.Name, nil, s.Log), nil

	default:
		return nil, fmt.Errorf("unknown device kind %q", dev.Kind)
	}
}

func (s *System) attach(pc config.Peripheral) error {
	p, ok := s.Peripheral(pc.Name)
	if !ok {
		return fmt.Errorf("no such peripheral %q", pc.Name)
	}
	if len(pc.Attach) == 0 {
		return nil
	}

	switch t := p.(type) {
	case *peripherals.USART:
		name := pc.Attach["tx"]
		d, ok := s.Device(name)
		if !ok {
			return fmt.Errorf("no such device %q", name)
		}
		sink, _ := d.(peripherals.ByteSink)
		source, _ := d.(peripherals.ByteSource)
		t.Attach(sink, source)
		if err := s.wireDMARequest(pc, t.SetDMARequest); err != nil {
			return err
		}

	case *peripherals.SPI:
		name := pc.Attach["slave"]
		d, ok := s.Device(name)
		if !ok {
			return fmt.Errorf("no such device %q", name)
		}
		slave, ok := d.(peripherals.SPISlave)
		if !ok {
			return fmt.Errorf("device %q does not implement SPISlave", name)
		}
		t.Attach(slave)
		if err := s.wireDMARequest(pc, t.SetDMARequest); err != nil {
			return err
		}

	case *peripherals.I2C:
		name := pc.Attach["device"]
		d, ok := s.Device(name)
		if !ok {
			return fmt.Errorf("no such device %q", name)
		}
		dev, ok := d.(peripherals.I2CDevice)
		if !ok {
			return fmt.Errorf("device %q does not implement I2CDevice", name)
		}
		t.Attach(dev)

	case *peripherals.FSMC:
		name := pc.Attach["sink"]
		d, ok := s.Device(name)
		if !ok {
			return fmt.Errorf("no such device %q", name)
		}
		sink, ok := d.(peripherals.ParallelSink)
		if !ok {
			return fmt.Errorf("device %q does not implement ParallelSink", name)
		}
		t.Attach(sink)
	}
	return nil
}

// wireDMARequest looks up an optional "dma" attach point of the form
// "<controller>:<stream>" (e.g. "DMA2:7") and wires setDMARequest to
// fire that stream's next transfer, modeling the peripheral's TXE/RXNE
// condition driving a DMA request (spec.md §4.5, §8 scenario 5).
func (s *System) wireDMARequest(pc config.Peripheral, setDMARequest func(func())) error {
	point, ok := pc.Attach["dma"]
	if !ok {
		return nil
	}
	name, idxStr, found := strings.Cut(point, ":")
	if !found {
		return fmt.Errorf("invalid dma attach point %q, want CONTROLLER:STREAM", point)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return fmt.Errorf("invalid dma stream index in %q: %w", point, err)
	}
	p, ok := s.Peripheral(name)
	if !ok {
		return fmt.Errorf("no such DMA controller %q", name)
	}
	dma, ok := p.(*peripherals.DMA)
	if !ok {
		return fmt.Errorf("peripheral %q is not a DMA controller", name)
	}
	setDMARequest(func() { dma.TriggerAuto(idx) })
	return nil
}
