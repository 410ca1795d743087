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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
cpu: stm32f407
regions:
  - start: 0x08000000
    len: 0x100000
    name: flash
    load: firmware.bin
  - start: 0x20000000
    len: 0x20000
    name: sram
patches:
  - addr: 0x08020010
    data: [0x00, 0xBF]
peripherals:
  - name: USART1
    enabled: true
    attach:
      tx: probe0
devices:
  - name: probe0
    kind: usart-probe
`

func TestLoadParsesSampleConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.CPU != "stm32f407" {
		t.Fatalf("cpu = %q", c.CPU)
	}
	if len(c.Regions) != 2 || c.Regions[0].Name != "flash" {
		t.Fatalf("regions = %+v", c.Regions)
	}
	if len(c.Patches) != 1 || c.Patches[0].Addr != 0x08020010 {
		t.Fatalf("patches = %+v", c.Patches)
	}

	p, ok := c.PeripheralSettings("USART1")
	if !ok || p.Attach["tx"] != "probe0" {
		t.Fatalf("peripheral settings = %+v, ok=%v", p, ok)
	}

	d, ok := c.DeviceSettings("probe0")
	if !ok || d.Kind != "usart-probe" {
		t.Fatalf("device settings = %+v, ok=%v", d, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
