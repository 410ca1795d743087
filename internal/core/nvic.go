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

package core

// IRQCount is the number of external interrupt lines modeled. STM32F4
// parts implement up to 240 per the architecture; firmware for small
// appliances rarely uses more than a few dozen, but the array is sized
// to the architectural max so any vector number firmware programs is
// addressable.
const IRQCount = 240

// SysTickIRQ is the CMSIS IRQn for the SysTick exception (spec.md §4.4,
// "pends IRQ -1"): negative IRQ numbers address system exceptions.
const SysTickIRQ = -1

// IRQController holds the NVIC's per-IRQ state (spec.md §3): enabled,
// pending, active bits, priority, priority grouping, exception depth,
// and vtor. The register-mapped peripheral view (ISER/ICER/ISPR/ICPR/
// IPR) is a thin wrapper over this type in internal/peripherals/nvic.go;
// this type is where the arbitration and exception entry/return logic
// that spec.md §4.4 actually describes lives.
type IRQController struct {
	enabled  [IRQCount]bool
	pending  [IRQCount]bool
	active   [IRQCount]bool
	priority [IRQCount]uint8

	sysTickEnabled bool
	sysTickPending bool
	sysTickActive  bool
	sysTickPrio    uint8

	// PriorityBits is how many of the top bits of an 8-bit priority
	// field are actually implemented, per SVD (spec.md §4.4 tie-break
	// note); unimplemented low bits are read-as-written and ignored for
	// arbitration.
	PriorityBits int

	VTOR  uint32
	Depth int
}

// NewIRQController returns a controller with vtor at the default reset
// vector base and all priority bits implemented.
func NewIRQController() *IRQController {
	return &IRQController{VTOR: 0x08000000, PriorityBits: 8}
}

func (c *IRQController) effectivePriority(p uint8) uint8 {
	if c.PriorityBits >= 8 {
		return p
	}
	shift := uint(8 - c.PriorityBits)
	return (p >> shift) << shift
}

// SetPending marks irq (>=0 external, or SysTickIRQ) pending.
func (c *IRQController) SetPending(irq int, v bool) {
	if irq == SysTickIRQ {
		c.sysTickPending = v
		return
	}
	if irq >= 0 && irq < IRQCount {
		c.pending[irq] = v
	}
}

func (c *IRQController) SetEnabled(irq int, v bool) {
	if irq == SysTickIRQ {
		c.sysTickEnabled = v
		return
	}
	if irq >= 0 && irq < IRQCount {
		c.enabled[irq] = v
	}
}

func (c *IRQController) SetPriority(irq int, p uint8) {
	if irq == SysTickIRQ {
		c.sysTickPrio = p
		return
	}
	if irq >= 0 && irq < IRQCount {
		c.priority[irq] = p
	}
}

func (c *IRQController) Pending(irq int) bool {
	if irq == SysTickIRQ {
		return c.sysTickPending
	}
	if irq >= 0 && irq < IRQCount {
		return c.pending[irq]
	}
	return false
}

func (c *IRQController) Enabled(irq int) bool {
	if irq == SysTickIRQ {
		return c.sysTickEnabled
	}
	if irq >= 0 && irq < IRQCount {
		return c.enabled[irq]
	}
	return false
}

// PriorityOf returns the raw (unshifted) priority byte programmed for irq.
func (c *IRQController) PriorityOf(irq int) uint8 {
	if irq == SysTickIRQ {
		return c.sysTickPrio
	}
	if irq >= 0 && irq < IRQCount {
		return c.priority[irq]
	}
	return 0
}

func (c *IRQController) Active(irq int) bool {
	if irq == SysTickIRQ {
		return c.sysTickActive
	}
	if irq >= 0 && irq < IRQCount {
		return c.active[irq]
	}
	return false
}

// exceptionNumber maps an IRQn to the ARMv7-M exception/vector number:
// negative system exceptions are offset from 16 downward (SysTick=15),
// external IRQ0 starts at 16.
func exceptionNumber(irq int) int {
	if irq < 0 {
		return 16 + irq
	}
	return 16 + irq
}

// pendingCandidate picks the highest-priority pending-and-enabled
// exception not already active at equal-or-higher priority, applying
// the lower-IRQ-number tie-break (spec.md §4.4, §8 boundary behavior).
// Returns irq, priority, ok.
func (c *IRQController) pendingCandidate() (int, uint8, bool) {
	bestIRQ := 0
	bestPrio := uint8(0)
	found := false

	consider := func(irq int, pending, enabled, active bool, prio uint8) {
		if !pending || !enabled || active {
			return
		}
		ep := c.effectivePriority(prio)
		if !found || ep < bestPrio || (ep == bestPrio && irq < bestIRQ) {
			bestIRQ = irq
			bestPrio = ep
			found = true
		}
	}

	consider(SysTickIRQ, c.sysTickPending, c.sysTickEnabled, c.sysTickActive, c.sysTickPrio)
	for i := 0; i < IRQCount; i++ {
		consider(i, c.pending[i], c.enabled[i], c.active[i], c.priority[i])
	}
	return bestIRQ, bestPrio, found
}

// currentExecPriority is the priority of the highest currently-active
// exception, or 256 (lower than any valid 8-bit priority) if none.
func (c *IRQController) currentExecPriority() int {
	best := 256
	if c.sysTickActive {
		ep := int(c.effectivePriority(c.sysTickPrio))
		if ep < best {
			best = ep
		}
	}
	for i := 0; i < IRQCount; i++ {
		if c.active[i] {
			ep := int(c.effectivePriority(c.priority[i]))
			if ep < best {
				best = ep
			}
		}
	}
	return best
}

func (c *IRQController) setActive(irq int, v bool) {
	if irq == SysTickIRQ {
		c.sysTickActive = v
		return
	}
	if irq >= 0 && irq < IRQCount {
		c.active[irq] = v
	}
}
