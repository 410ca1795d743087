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

// Package event implements a delta-queue timer list: each entry stores
// the number of cycles remaining relative to the entry ahead of it, so
// advancing time is O(1) amortized regardless of how many timers are
// armed. Adapted from the teacher's event-list scheduler, generalized
// from a single S/370 channel clock to arbitrary owners (SysTick, DMA
// streams, scripted GPIO actors) keyed by an opaque owner+arg pair.
package event

// Callback fires when an armed event's remaining time reaches zero.
type Callback func(arg int)

type entry struct {
	time  int
	owner any
	cb    Callback
	arg   int
	prev  *entry
	next  *entry
}

// Queue is a list of pending timed callbacks.
type Queue struct {
	head *entry
	tail *entry
}

// Add arms a callback to fire after delay cycles. delay<=0 fires
// immediately, inline, without entering the list.
func (q *Queue) Add(owner any, cb Callback, delay int, arg int) {
	if delay <= 0 {
		cb(arg)
		return
	}

	e := &entry{owner: owner, cb: cb, time: delay, arg: arg}

	cur := q.head
	if cur == nil {
		q.head = e
		q.tail = e
		return
	}

	for cur != nil {
		if e.time <= cur.time {
			cur.time -= e.time
			e.prev = cur.prev
			e.next = cur
			cur.prev = e
			if e.prev != nil {
				e.prev.next = e
			} else {
				q.head = e
			}
			return
		}
		e.time -= cur.time
		cur = cur.next
	}

	e.prev = q.tail
	q.tail.next = e
	q.tail = e
}

// Cancel removes a still-pending event matching owner and arg, if any.
func (q *Queue) Cancel(owner any, arg int) {
	cur := q.head
	for cur != nil {
		if cur.owner == owner && cur.arg == arg {
			if cur.next != nil {
				cur.next.time += cur.time
				cur.next.prev = cur.prev
			} else {
				q.tail = cur.prev
			}
			if cur.prev != nil {
				cur.prev.next = cur.next
			} else {
				q.head = cur.next
			}
			return
		}
		cur = cur.next
	}
}

// Any reports whether a timer is armed.
func (q *Queue) Any() bool {
	return q.head != nil
}

// Advance moves time forward by t cycles, firing every event whose
// remaining time reaches zero or below, in order.
func (q *Queue) Advance(t int) {
	cur := q.head
	if cur == nil {
		return
	}
	cur.time -= t
	for cur != nil && cur.time <= 0 {
		cur.cb(cur.arg)
		q.head = cur.next
		if q.head != nil {
			q.head.prev = nil
			q.head.time += cur.time
		} else {
			q.tail = nil
		}
		cur = q.head
	}
}
