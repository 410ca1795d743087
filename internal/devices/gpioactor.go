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

// GPIOActorStep is one scripted level change at an absolute tsc.
type GPIOActorStep struct {
	TSC   uint64
	Level bool
}

// GPIOActor is a plain GPIO-attached device that does nothing but
// reflect a configured logic level, or a scripted sequence of
// level-changes-at-tsc, onto a claimed GPIO line (spec.md §2 item 5,
// the [EXPANDED] "plain GPIO-attached actors" component) — grounded on
// Touch's pen-down line, generalized to any fixed or scripted signal
// (e.g. power-good, card-detect).
type GPIOActor struct {
	name  string
	level bool
	steps []GPIOActorStep
	next  int
}

// NewGPIOActor constructs an actor fixed at level, or with an
// optional scripted sequence of timed level changes applied as the
// system's tsc advances past each step (steps must be tsc-ascending).
func NewGPIOActor(name string, level bool, steps []GPIOActorStep) *GPIOActor {
	return &GPIOActor{name: name, level: level, steps: steps}
}

// Level implements peripherals.PinDriver.
func (a *GPIOActor) Level() bool { return a.level }

// Advance applies any scripted steps whose tsc has been reached.
func (a *GPIOActor) Advance(tsc uint64) {
	for a.next < len(a.steps) && a.steps[a.next].TSC <= tsc {
		a.level = a.steps[a.next].Level
		a.next++
	}
}
