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

package devices

import "log/slog"

// USARTProbe is a line-buffered log sink attached to a USART's TX
// (spec.md §4.7): it accumulates bytes and emits one INFO line per
// complete '\n'-terminated line, per spec.md §8 scenario 5.
type USARTProbe struct {
	name string
	log  *slog.Logger
	buf  []byte
}

func NewUSARTProbe(name string, log *slog.Logger) *USARTProbe {
	return &USARTProbe{name: name, log: log}
}

// OnByte implements peripherals.ByteSink.
func (p *USARTProbe) OnByte(b byte) {
	if b == '\n' {
		p.flush()
		return
	}
	p.buf = append(p.buf, b)
}

func (p *USARTProbe) flush() {
	p.log.Info("usart-probe", "p", p.name, "usart-probe", string(p.buf))
	p.buf = p.buf[:0]
}
