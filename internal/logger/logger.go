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

// Package logger wraps log/slog with the emulator's tsc-prefixed line
// format: "[tsc=NNNNNNNN dtsc=+NNNNNNNN pc=0xHHHHHHHH] LEVEL message".
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// TraceLevel is below slog.LevelDebug; enabled by -vvv or more.
const TraceLevel = slog.LevelDebug - 4

// Clock is consulted by the handler for the current tsc on every line.
// The system orchestrator implements it over its instruction counter.
type Clock interface {
	TSC() uint64
}

// Handler renders the "[tsc=... dtsc=... pc=...]" prefix ahead of the
// level and message, and mirrors to an extra writer (e.g. stderr) when
// mirror is non-nil, the way the teacher's LogHandler mirrors to stderr.
type Handler struct {
	out    io.Writer
	mirror io.Writer
	h      slog.Handler
	mu     *sync.Mutex
	clock  Clock
	prevTSC uint64
	seen    bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, mirror: h.mirror, h: h.h.WithAttrs(attrs), mu: h.mu, clock: h.clock}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, mirror: h.mirror, h: h.h.WithGroup(name), mu: h.mu, clock: h.clock}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var pc uint32
	hasPC := false
	var rest []string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "pc" && a.Value.Kind() == slog.KindUint64 {
			pc = uint32(a.Value.Uint64())
			hasPC = true
			return true
		}
		rest = append(rest, fmt.Sprintf("%s=%s", a.Key, a.Value.String()))
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	tsc := h.prevTSC
	if h.clock != nil {
		tsc = h.clock.TSC()
	}
	dtsc := uint64(0)
	if h.seen && tsc >= h.prevTSC {
		dtsc = tsc - h.prevTSC
	}
	h.prevTSC = tsc
	h.seen = true

	var prefix string
	if hasPC {
		prefix = fmt.Sprintf("[tsc=%08d dtsc=+%08d pc=0x%08X]", tsc, dtsc, pc)
	} else {
		prefix = fmt.Sprintf("[tsc=%08d dtsc=+%08d]", tsc, dtsc)
	}

	level := levelName(r.Level)
	line := []string{prefix, level, r.Message}
	line = append(line, rest...)
	out := strings.Join(line, " ") + "\n"
	b := []byte(out)

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}
	if h.mirror != nil {
		_, err = h.mirror.Write(b)
	}
	return err
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// NewHandler builds a Handler writing to out (always) and mirror (when
// non-nil, e.g. stderr for -v runs that still want a log file). clock
// may be nil until the system orchestrator is constructed; it is set
// with SetClock once the tsc counter exists.
func NewHandler(out io.Writer, mirror io.Writer, level slog.Leveler) *Handler {
	return &Handler{
		out:    out,
		mirror: mirror,
		h:      slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}),
		mu:     &sync.Mutex{},
	}
}

// SetClock attaches the tsc source once it exists.
func (h *Handler) SetClock(c Clock) {
	h.clock = c
}

// LevelFromVerbosity maps the CLI's repeated -v count to a slog level,
// per spec: 0=WARN, 1=INFO, 2=DEBUG, 3+=TRACE (incl. instruction trace).
func LevelFromVerbosity(count int) slog.Level {
	switch {
	case count <= 0:
		return slog.LevelWarn
	case count == 1:
		return slog.LevelInfo
	case count == 2:
		return slog.LevelDebug
	default:
		return TraceLevel
	}
}
