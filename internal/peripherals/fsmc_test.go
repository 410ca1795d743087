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

type captureParallel struct {
	cmds  []uint16
	datas []uint16
}

func (c *captureParallel) OnParallelWrite(isCmd bool, value uint16) {
	if isCmd {
		c.cmds = append(c.cmds, value)
	} else {
		c.datas = append(c.datas, value)
	}
}

func (c *captureParallel) OnParallelRead(isCmd bool) uint16 { return 0 }

func TestFSMCCommandDataSplit(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := NewFSMC(0x60000000, "FSMC_NE1", 16, log)
	sink := &captureParallel{}
	f.Attach(sink)

	f.Access(0x00000, 2, true, 0x2C) // bit16=0 -> command
	f.Access(0x10000, 2, true, 0xF800)

	if len(sink.cmds) != 1 || sink.cmds[0] != 0x2C {
		t.Fatalf("unexpected cmds: %v", sink.cmds)
	}
	if len(sink.datas) != 1 || sink.datas[0] != 0xF800 {
		t.Fatalf("unexpected datas: %v", sink.datas)
	}
}
