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
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/nviennot/stm32-emulator/internal/config"
)

// writeFirmware builds a minimal vector table (initial MSP, reset
// handler address) followed by a self-branch ("b .", encoding 0xE7FE)
// at the reset handler, the classic infinite-loop idiom a busy-wait
// firmware main loop reduces to.
func writeFirmware(t *testing.T, dir string) string {
	t.Helper()
	img := make([]byte, 16)
	binary.LittleEndian.PutUint32(img[0:4], 0x20001000) // initial MSP
	binary.LittleEndian.PutUint32(img[4:8], 0x08000009) // reset handler, thumb bit set
	binary.LittleEndian.PutUint16(img[8:10], 0xE7FE)    // b .

	path := filepath.Join(dir, "firmware.bin")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func baseConfig(fw string) *config.Config {
	return &config.Config{
		Regions: []config.Region{
			{Start: 0x08000000, Len: 0x1000, Name: "flash", Load: fw},
			{Start: 0x20000000, Len: 0x1000, Name: "sram"},
		},
	}
}

func TestRunStopsAtBusyLoop(t *testing.T) {
	dir := t.TempDir()
	fw := writeFirmware(t, dir)

	sys := New(nil)
	sys.BusyLoopStop = true
	if err := sys.Configure(baseConfig(fw)); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if err := sys.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sys.TSC() == 0 {
		t.Fatalf("expected at least one instruction to execute before the busy loop stop")
	}
}

func TestConfigureAppliesPatchBeforeRun(t *testing.T) {
	dir := t.TempDir()
	fw := writeFirmware(t, dir)

	cfg := baseConfig(fw)
	// Replace the self-branch with a NOP and check that Configure has
	// already spliced it into the loaded image, before any Run.
	cfg.Patches = []config.Patch{
		{Addr: 0x08000008, Data: []byte{0x00, 0xBF}}, // NOP
	}

	sys := New(nil)
	sys.BusyLoopStop = true
	if err := sys.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := sys.Bus.Read(0, 0x08000008, 2); got != 0xBF00 {
		t.Fatalf("patched word = %#04x, want NOP 0xbf00", got)
	}
}

func TestConfigureReportsMissingImage(t *testing.T) {
	sys := New(nil)
	if err := sys.Configure(baseConfig("/nonexistent/firmware.bin")); err == nil {
		t.Fatalf("expected error loading a nonexistent firmware path")
	}
}
