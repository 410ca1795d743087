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

// Package system implements the orchestrator (spec.md §4.12): it
// builds the memory map from configuration, instantiates peripherals
// and devices, loads firmware and ext-flash images, applies patches,
// runs the CPU engine's per-instruction loop, polls the NVIC, detects
// stop conditions, and maintains tsc/dtsc.
package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nviennot/stm32-emulator/internal/bus"
	"github.com/nviennot/stm32-emulator/internal/config"
	"github.com/nviennot/stm32-emulator/internal/core"
	"github.com/nviennot/stm32-emulator/internal/engine"
	"github.com/nviennot/stm32-emulator/internal/peripheral"
	"github.com/nviennot/stm32-emulator/internal/svd"
)

// regionDefaultLen is the address span reserved for a register-mapped
// peripheral instance; every core peripheral's catalog fits well
// within it (spec.md §4.3-§4.7's widest, DMA, uses well under 0x400).
const regionDefaultLen = 0x400

const nullGuardLen = 4096 // spec.md §3 "NULL guard... at least 4 KiB".

// Ticker is the subset of peripheral.Ticker the system drives once per
// instruction.
type Ticker = peripheral.Ticker

// System owns the bus, the CPU engine, the exception controller, and
// every peripheral/device instance by name (spec.md §9 registry).
type System struct {
	Bus  *bus.Bus
	NVIC *core.IRQController
	Exc  *core.ExceptionController
	Eng  core.Engine
	Log  *slog.Logger
	SVD  *svd.Device

	tsc uint64

	tickers      []Ticker
	BusyLoopStop bool
	peripherals  map[string]peripheral.Peripheral
	devices      map[string]any
}

// New builds an empty System wired to log; the memory map and the
// reset-vector-driven Engine are added by Configure, and the
// regionDefaultLen-based peripheral mapping by Boot.
func New(log *slog.Logger) *System {
	if log == nil {
		log = slog.Default()
	}
	nvic := core.NewIRQController()
	return &System{
		Bus:         bus.New(log),
		NVIC:        nvic,
		Exc:         core.NewExceptionController(nvic),
		Log:         log,
		peripherals: map[string]peripheral.Peripheral{},
		devices:     map[string]any{},
	}
}

// TSC implements logger.Clock.
func (s *System) TSC() uint64 { return s.tsc }

// Configure builds the memory map and CPU engine from cfg: a guard
// region at 0x0, every configured RAM region (loading its image if
// any), then applies patches (spec.md §4.12 "applied... immediately
// after LoadImage, before Run starts").
func (s *System) Configure(cfg *config.Config) error {
	if err := s.Bus.MapRegion(&bus.Region{Start: 0, Len: nullGuardLen, Name: "null-guard", Kind: bus.Guard}); err != nil {
		return err
	}

	var resetVectorBase uint32
	for _, r := range cfg.Regions {
		region := &bus.Region{Start: r.Start, Len: r.Len, Name: r.Name, Kind: bus.RAM}
		if err := s.Bus.MapRegion(region); err != nil {
			return fmt.Errorf("mapping region %s: %w", r.Name, err)
		}
		if r.Load != "" {
			if err := s.Bus.LoadImage(r.Load, region, 0); err != nil {
				return fmt.Errorf("loading image for %s: %w", r.Name, err)
			}
			if resetVectorBase == 0 {
				resetVectorBase = r.Start
			}
		}
	}

	for _, p := range cfg.Patches {
		if err := s.Bus.Patch(p.Addr, p.Data); err != nil {
			return fmt.Errorf("applying patch at %#x: %w", p.Addr, err)
		}
	}

	s.Eng = engine.New(s.Bus, resetVectorBase)
	return nil
}

// Mount wraps p in a peripheral.Framework built from def and maps it
// onto the bus at p.Base() for length bytes (0 selects
// regionDefaultLen); this is the common path every core peripheral
// (spec.md §4.3-§4.7) is wired through. If a vendor SVD was loaded
// (spec.md §6 cpu field) and it defines a peripheral of the same name,
// its register catalog takes precedence over def's built-in one.
func (s *System) Mount(p peripheral.Peripheral, def *svd.Peripheral, length uint32) error {
	if s.SVD != nil {
		if d, err := s.SVD.ByName(p.Name()); err == nil {
			def = d
		}
	}
	framework := peripheral.NewFramework(p, def, s.Log)
	return s.MountPeripheral(p.Name(), p, framework, p.Base(), length)
}

// MountPeripheral maps p (already wrapped as a bus.Handler by its
// Framework) at base for length bytes, and records p for name lookup
// and, if it implements Ticker, per-instruction ticking.
func (s *System) MountPeripheral(name string, p peripheral.Peripheral, framework bus.Handler, base uint32, length uint32) error {
	if length == 0 {
		length = regionDefaultLen
	}
	if err := s.Bus.MapRegion(&bus.Region{Start: base, Len: length, Name: name, Kind: bus.Device, Handler: framework}); err != nil {
		return err
	}
	s.peripherals[name] = p
	if t, ok := p.(Ticker); ok {
		s.tickers = append(s.tickers, t)
	}
	return nil
}

// AddDevice records an external device instance by name (spec.md §9).
func (s *System) AddDevice(name string, d any) {
	s.devices[name] = d
}

// Peripheral looks up a previously-mounted peripheral by name.
func (s *System) Peripheral(name string) (peripheral.Peripheral, bool) {
	p, ok := s.peripherals[name]
	return p, ok
}

// Device looks up a previously-registered device by name.
func (s *System) Device(name string) (any, bool) {
	d, ok := s.devices[name]
	return d, ok
}

// PeripheralNames lists every mounted peripheral instance name, for
// inspection (internal/console).
func (s *System) PeripheralNames() []string {
	names := make([]string, 0, len(s.peripherals))
	for n := range s.peripherals {
		names = append(names, n)
	}
	return names
}

// Run drives the per-instruction loop (spec.md §4.12/§5): step the
// engine, service exception return/entry, tick peripherals, check the
// busy-loop stop condition, until ctx is cancelled or a stop condition
// fires. Returns a non-nil error only for a *core.EngineFault (spec.md
// §7, exit code 3).
func (s *System) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pcBefore := s.Eng.GetReg(core.PC)

		if err := s.Eng.Step(); err != nil {
			return err
		}
		s.tsc++

		if !s.Exc.MaybeReturn(s.Eng, s.Bus) {
			s.Exc.Poll(s.Eng, s.Bus)
		}

		for _, t := range s.tickers {
			t.OnTick(1)
		}

		if s.BusyLoopStop && s.Eng.GetReg(core.PC) == pcBefore {
			s.Log.Info("Busy loop reached")
			return nil
		}
	}
}
