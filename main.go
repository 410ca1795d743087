/*
 * stm32-emulator - Main process.
 *
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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/nviennot/stm32-emulator/internal/config"
	"github.com/nviennot/stm32-emulator/internal/console"
	"github.com/nviennot/stm32-emulator/internal/core"
	"github.com/nviennot/stm32-emulator/internal/logger"
	"github.com/nviennot/stm32-emulator/internal/system"
)

// Exit codes (spec.md §6).
const (
	exitOK        = 0
	exitConfigErr = 1
	exitIOErr     = 2
	exitEngineErr = 3
)

var Logger *slog.Logger

func main() {
	verbose := getopt.CounterLong("verbose", 'v', "increase log verbosity (-v/-vv/-vvv/-vvvv)")
	busyLoopStop := getopt.BoolLong("busy-loop-stop", 0, "stop when PC executes a self-branch")
	interactive := getopt.BoolLong("console", 0, "run an interactive inspection prompt alongside the emulator")
	color := getopt.StringLong("color", 0, "auto", "color output: auto, always, never")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(exitOK)
	}

	if *color != "auto" && *color != "always" && *color != "never" {
		fmt.Fprintf(os.Stderr, "invalid --color value %q\n", *color)
		os.Exit(exitConfigErr)
	}

	args := getopt.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: stm32-emulator [flags] <config.yaml>")
		os.Exit(exitConfigErr)
	}

	level := new(slog.LevelVar)
	level.Set(logger.LevelFromVerbosity(*verbose))
	handler := logger.NewHandler(os.Stdout, nil, level)
	Logger = slog.New(handler)
	slog.SetDefault(Logger)

	Logger.Info("stm32-emulator started")

	cfg, err := config.Load(args[0])
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(exitConfigErr)
	}

	sys := system.New(Logger)
	sys.BusyLoopStop = *busyLoopStop
	handler.SetClock(sys)

	if err := sys.Configure(cfg); err != nil {
		Logger.Error(err.Error())
		os.Exit(exitIOErr)
	}
	if err := sys.Boot(cfg); err != nil {
		Logger.Error(err.Error())
		os.Exit(exitConfigErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		Logger.Info("Got quit signal")
		cancel()
	}()

	if *interactive {
		go console.Run(ctx, cancel, sys)
	}

	err = sys.Run(ctx)
	cancel()

	if err != nil {
		var fault *core.EngineFault
		if errors.As(err, &fault) {
			Logger.Error("engine fault", "pc", fault.PC, "msg", fault.Error())
		} else {
			Logger.Error(err.Error())
		}
		os.Exit(exitEngineErr)
	}

	Logger.Info("Emulation stop")
	os.Exit(exitOK)
}
