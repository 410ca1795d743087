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

// Package peripherals implements the STM32F4 core peripherals named in
// spec.md §4.3-§4.7: RCC, SysTick, NVIC, GPIO, USART, SPI, I2C, FSMC,
// DMA. Each is a peripheral.Peripheral driven by a small built-in
// register catalog (internal/peripherals/defs.go) rather than requiring
// a real vendor SVD file to be present, since none ships in this
// environment; a real SVD loaded via internal/svd at configuration time
// (spec.md §6) takes precedence when it defines the same peripheral
// name, per spec.md §9 "materialized at load" — see DESIGN.md.
package peripherals

import "github.com/nviennot/stm32-emulator/internal/svd"

func reg(name string, offset, reset uint32) svd.Register {
	return svd.Register{Name: name, Offset: offset, Width: 32, Reset: reset, Access: svd.AccessReadWrite}
}

func regRO(name string, offset, reset uint32) svd.Register {
	return svd.Register{Name: name, Offset: offset, Width: 32, Reset: reset, Access: svd.AccessReadOnly}
}

func field(name string, bitOffset, bitWidth uint32) svd.Field {
	return svd.Field{Name: name, BitOffset: bitOffset, BitWidth: bitWidth}
}

func withFields(r svd.Register, fields ...svd.Field) svd.Register {
	r.Fields = fields
	return r
}

func bit(v uint32, n uint) bool { return v&(1<<n) != 0 }

func setBit(v uint32, n uint, on bool) uint32 {
	if on {
		return v | (1 << n)
	}
	return v &^ (1 << n)
}
