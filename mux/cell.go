// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/cell.go
// Summary: Cell buffer primitives and overlay compositing.
// Usage: Surfaces render [][]Cell buffers; the desktop composites them over
// the window content in portal stacking order.

package mux

import "github.com/gdamore/tcell/v2"

// Cell is one character cell of a rendered buffer.
type Cell struct {
	Ch    rune
	Style tcell.Style
}

// NewBuffer allocates a rows×cols buffer filled with blanks.
func NewBuffer(cols, rows int, style tcell.Style) [][]Cell {
	buf := make([][]Cell, rows)
	for y := range buf {
		buf[y] = make([]Cell, cols)
		for x := range buf[y] {
			buf[y][x] = Cell{Ch: ' ', Style: style}
		}
	}
	return buf
}

// CompositeAt copies the src buffer onto dst at the given cell offset,
// clipping to dst. Cells with rune(0) are treated as transparent.
func CompositeAt(dst, src [][]Cell, offX, offY int) {
	for y := 0; y < len(src); y++ {
		dy := y + offY
		if dy < 0 || dy >= len(dst) {
			continue
		}
		for x := 0; x < len(src[y]); x++ {
			dx := x + offX
			if dx < 0 || dx >= len(dst[dy]) {
				continue
			}
			if src[y][x].Ch != rune(0) {
				dst[dy][dx] = src[y][x]
			}
		}
	}
}
