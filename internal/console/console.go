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

// Package console implements an interactive inspection prompt for a
// running System: register dump, raw bus peek/poke, and the mounted
// peripheral registry. It runs alongside System.Run rather than
// replacing it, for poking at a stuck or misbehaving firmware image
// without restarting the emulator.
package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/nviennot/stm32-emulator/internal/core"
	"github.com/nviennot/stm32-emulator/internal/system"
)

var commandNames = []string{"regs", "peek", "poke", "periph", "help", "quit"}

// Run drives a liner-backed prompt against sys until the user quits or
// the line reader aborts (Ctrl-D/Ctrl-C), then cancels ctx so
// System.Run's loop stops. Grounded on the teacher's
// command/reader.ConsoleReader: a liner.Liner with history and prefix
// completion, dispatching each line to a command table in place of
// S/370's device-command parser.
func Run(ctx context.Context, cancel context.CancelFunc, sys *system.System) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range commandNames {
			if strings.HasPrefix(c, prefix) {
				out = append(out, c)
			}
		}
		return out
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		input, err := line.Prompt("stm32> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("error reading line: " + err.Error())
			}
			cancel()
			return
		}
		line.AppendHistory(input)

		if dispatch(sys, input) {
			cancel()
			return
		}
	}
}

// dispatch runs one command line and reports whether the console
// should quit.
func dispatch(sys *system.System, input string) bool {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true

	case "help":
		fmt.Println("commands: regs, peek <addr>, poke <addr> <value>, periph, quit")

	case "regs":
		printRegs(sys.Eng)

	case "periph":
		names := sys.PeripheralNames()
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}

	case "peek":
		addr, ok := parseAddr(fields, 1)
		if !ok {
			fmt.Println("usage: peek <hex addr>")
			break
		}
		fmt.Printf("%#08x: %#08x\n", addr, sys.Bus.Read(0, addr, 4))

	case "poke":
		addr, ok := parseAddr(fields, 1)
		if !ok || len(fields) != 3 {
			fmt.Println("usage: poke <hex addr> <hex value>")
			break
		}
		value, err := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 32)
		if err != nil {
			fmt.Println("bad value: " + err.Error())
			break
		}
		sys.Bus.Write(0, addr, 4, uint32(value))

	default:
		fmt.Println("unknown command: " + fields[0])
	}
	return false
}

func parseAddr(fields []string, idx int) (uint32, bool) {
	if len(fields) <= idx {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(fields[idx], "0x"), 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func printRegs(eng core.Engine) {
	for i := core.R0; i <= core.PC; i++ {
		fmt.Printf("r%-2d = %#08x\n", i, eng.GetReg(i))
	}
	fmt.Printf("xpsr = %#08x\n", eng.GetXPSR())
}
