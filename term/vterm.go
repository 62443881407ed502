// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/vterm.go
// Summary: Compact virtual terminal: grid state plus an ANSI escape parser.
// Usage: The PTY surface feeds it runes; Render reads the grid. Not safe for
// concurrent use, callers hold the surface lock.

package term

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/pweiskircher/cmux/mux"
)

type parseState int

const (
	stateGround parseState = iota
	stateEscape
	stateCSI
	stateOSC
)

// vterm is a fixed-size character grid driven by a stream of runes with
// embedded xterm-style escape sequences.
type vterm struct {
	cols, rows int
	grid       [][]mux.Cell
	cx, cy     int
	style      tcell.Style

	savedX, savedY int
	wrapPending    bool

	state    parseState
	params   []int
	curParam int
	hasParam bool
	private  bool
	oscBuf   strings.Builder
	oscEsc   bool

	title   string
	onTitle func(string)
	// onLine fires with a line's text when it scrolls off the top.
	onLine func(string)
}

func newVTerm(cols, rows int) *vterm {
	v := &vterm{style: tcell.StyleDefault}
	v.Resize(cols, rows)
	return v
}

func (v *vterm) Resize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	grid := make([][]mux.Cell, rows)
	for y := range grid {
		grid[y] = make([]mux.Cell, cols)
		for x := range grid[y] {
			grid[y][x] = mux.Cell{Ch: ' ', Style: tcell.StyleDefault}
			if y < len(v.grid) && x < len(v.grid[y]) {
				grid[y][x] = v.grid[y][x]
			}
		}
	}
	v.grid = grid
	v.cols, v.rows = cols, rows
	v.cx = clamp(v.cx, 0, cols-1)
	v.cy = clamp(v.cy, 0, rows-1)
	v.wrapPending = false
}

func (v *vterm) Grid() [][]mux.Cell { return v.grid }
func (v *vterm) Cursor() (int, int) { return v.cx, v.cy }
func (v *vterm) Title() string      { return v.title }
func (v *vterm) Size() (int, int)   { return v.cols, v.rows }

// Parse consumes one rune of PTY output.
func (v *vterm) Parse(r rune) {
	switch v.state {
	case stateGround:
		v.parseGround(r)
	case stateEscape:
		v.parseEscape(r)
	case stateCSI:
		v.parseCSI(r)
	case stateOSC:
		v.parseOSC(r)
	}
}

func (v *vterm) parseGround(r rune) {
	switch r {
	case 0x1b:
		v.state = stateEscape
	case '\n':
		v.lineFeed()
	case '\r':
		v.cx = 0
		v.wrapPending = false
	case '\b':
		if v.cx > 0 {
			v.cx--
		}
		v.wrapPending = false
	case '\t':
		v.cx = clamp((v.cx/8+1)*8, 0, v.cols-1)
	case 0x07:
		// bell, ignored
	default:
		if r < 0x20 {
			return
		}
		v.printRune(r)
	}
}

func (v *vterm) printRune(r rune) {
	if v.wrapPending {
		v.cx = 0
		v.lineFeed()
	}
	v.grid[v.cy][v.cx] = mux.Cell{Ch: r, Style: v.style}
	if v.cx == v.cols-1 {
		v.wrapPending = true
	} else {
		v.cx++
	}
}

func (v *vterm) lineFeed() {
	v.wrapPending = false
	if v.cy == v.rows-1 {
		v.scrollUp()
	} else {
		v.cy++
	}
}

func (v *vterm) scrollUp() {
	if v.onLine != nil {
		v.onLine(rowText(v.grid[0]))
	}
	copy(v.grid, v.grid[1:])
	last := make([]mux.Cell, v.cols)
	for x := range last {
		last[x] = mux.Cell{Ch: ' ', Style: tcell.StyleDefault}
	}
	v.grid[v.rows-1] = last
}

func (v *vterm) parseEscape(r rune) {
	switch r {
	case '[':
		v.state = stateCSI
		v.params = v.params[:0]
		v.curParam = 0
		v.hasParam = false
		v.private = false
	case ']':
		v.state = stateOSC
		v.oscBuf.Reset()
		v.oscEsc = false
	case '7':
		v.savedX, v.savedY = v.cx, v.cy
		v.state = stateGround
	case '8':
		v.cx, v.cy = clamp(v.savedX, 0, v.cols-1), clamp(v.savedY, 0, v.rows-1)
		v.state = stateGround
	case 'M':
		// reverse index
		if v.cy > 0 {
			v.cy--
		}
		v.state = stateGround
	case 'c':
		v.reset()
		v.state = stateGround
	default:
		v.state = stateGround
	}
}

func (v *vterm) parseCSI(r rune) {
	switch {
	case r >= '0' && r <= '9':
		v.curParam = v.curParam*10 + int(r-'0')
		v.hasParam = true
	case r == ';':
		v.params = append(v.params, v.curParam)
		v.curParam = 0
		v.hasParam = false
	case r == '?':
		v.private = true
	case r == ' ' || r == '>' || r == '=':
		// intermediate bytes we don't act on
	default:
		if v.hasParam {
			v.params = append(v.params, v.curParam)
		}
		v.dispatchCSI(r)
		v.state = stateGround
	}
}

func (v *vterm) param(i, def int) int {
	if i < len(v.params) && v.params[i] > 0 {
		return v.params[i]
	}
	return def
}

func (v *vterm) dispatchCSI(final rune) {
	if v.private {
		// DEC private modes (cursor visibility, alt screen) are accepted
		// and ignored; the grid model has no alternate screen.
		return
	}
	switch final {
	case 'A':
		v.cy = clamp(v.cy-v.param(0, 1), 0, v.rows-1)
	case 'B':
		v.cy = clamp(v.cy+v.param(0, 1), 0, v.rows-1)
	case 'C':
		v.cx = clamp(v.cx+v.param(0, 1), 0, v.cols-1)
	case 'D':
		v.cx = clamp(v.cx-v.param(0, 1), 0, v.cols-1)
	case 'G':
		v.cx = clamp(v.param(0, 1)-1, 0, v.cols-1)
	case 'd':
		v.cy = clamp(v.param(0, 1)-1, 0, v.rows-1)
	case 'H', 'f':
		v.cy = clamp(v.param(0, 1)-1, 0, v.rows-1)
		v.cx = clamp(v.param(1, 1)-1, 0, v.cols-1)
	case 'J':
		v.eraseDisplay(v.paramRaw(0))
	case 'K':
		v.eraseLine(v.paramRaw(0))
	case 'm':
		v.applySGR()
	case 's':
		v.savedX, v.savedY = v.cx, v.cy
	case 'u':
		v.cx, v.cy = clamp(v.savedX, 0, v.cols-1), clamp(v.savedY, 0, v.rows-1)
	}
	v.wrapPending = false
}

// paramRaw is like param but treats an explicit 0 as 0.
func (v *vterm) paramRaw(i int) int {
	if i < len(v.params) {
		return v.params[i]
	}
	return 0
}

func (v *vterm) eraseDisplay(mode int) {
	switch mode {
	case 0:
		v.eraseLine(0)
		for y := v.cy + 1; y < v.rows; y++ {
			v.clearRow(y)
		}
	case 1:
		v.eraseLine(1)
		for y := 0; y < v.cy; y++ {
			v.clearRow(y)
		}
	case 2, 3:
		for y := 0; y < v.rows; y++ {
			v.clearRow(y)
		}
	}
}

func (v *vterm) eraseLine(mode int) {
	from, to := 0, v.cols
	switch mode {
	case 0:
		from = v.cx
	case 1:
		to = v.cx + 1
	}
	for x := from; x < to && x < v.cols; x++ {
		v.grid[v.cy][x] = mux.Cell{Ch: ' ', Style: v.style}
	}
}

func (v *vterm) clearRow(y int) {
	for x := 0; x < v.cols; x++ {
		v.grid[y][x] = mux.Cell{Ch: ' ', Style: v.style}
	}
}

func (v *vterm) applySGR() {
	if len(v.params) == 0 {
		v.style = tcell.StyleDefault
		return
	}
	for i := 0; i < len(v.params); i++ {
		p := v.params[i]
		switch {
		case p == 0:
			v.style = tcell.StyleDefault
		case p == 1:
			v.style = v.style.Bold(true)
		case p == 4:
			v.style = v.style.Underline(true)
		case p == 7:
			v.style = v.style.Reverse(true)
		case p == 22:
			v.style = v.style.Bold(false)
		case p == 24:
			v.style = v.style.Underline(false)
		case p == 27:
			v.style = v.style.Reverse(false)
		case p >= 30 && p <= 37:
			v.style = v.style.Foreground(tcell.PaletteColor(p - 30))
		case p == 39:
			v.style = v.style.Foreground(tcell.ColorDefault)
		case p >= 40 && p <= 47:
			v.style = v.style.Background(tcell.PaletteColor(p - 40))
		case p == 49:
			v.style = v.style.Background(tcell.ColorDefault)
		case p >= 90 && p <= 97:
			v.style = v.style.Foreground(tcell.PaletteColor(p - 90 + 8))
		case p >= 100 && p <= 107:
			v.style = v.style.Background(tcell.PaletteColor(p - 100 + 8))
		case p == 38 || p == 48:
			color, consumed := v.extendedColor(i)
			if consumed == 0 {
				return
			}
			if p == 38 {
				v.style = v.style.Foreground(color)
			} else {
				v.style = v.style.Background(color)
			}
			i += consumed
		}
	}
}

// extendedColor parses 38;5;n / 38;2;r;g;b starting at params[i] and returns
// the color plus the number of extra params consumed.
func (v *vterm) extendedColor(i int) (tcell.Color, int) {
	if i+1 >= len(v.params) {
		return tcell.ColorDefault, 0
	}
	switch v.params[i+1] {
	case 5:
		if i+2 >= len(v.params) {
			return tcell.ColorDefault, 0
		}
		return tcell.PaletteColor(clamp(v.params[i+2], 0, 255)), 2
	case 2:
		if i+4 >= len(v.params) {
			return tcell.ColorDefault, 0
		}
		r := int32(clamp(v.params[i+2], 0, 255))
		g := int32(clamp(v.params[i+3], 0, 255))
		b := int32(clamp(v.params[i+4], 0, 255))
		return tcell.NewRGBColor(r, g, b), 4
	}
	return tcell.ColorDefault, 0
}

func (v *vterm) parseOSC(r rune) {
	if v.oscEsc {
		v.oscEsc = false
		if r == '\\' {
			v.finishOSC()
			return
		}
		v.state = stateGround
		return
	}
	switch r {
	case 0x07:
		v.finishOSC()
	case 0x1b:
		v.oscEsc = true
	default:
		v.oscBuf.WriteRune(r)
	}
}

func (v *vterm) finishOSC() {
	v.state = stateGround
	payload := v.oscBuf.String()
	// OSC 0/2: set title
	if rest, ok := strings.CutPrefix(payload, "0;"); ok {
		v.setTitle(rest)
	} else if rest, ok := strings.CutPrefix(payload, "2;"); ok {
		v.setTitle(rest)
	}
}

func (v *vterm) setTitle(t string) {
	v.title = t
	if v.onTitle != nil {
		v.onTitle(t)
	}
}

func (v *vterm) reset() {
	v.style = tcell.StyleDefault
	v.cx, v.cy = 0, 0
	v.wrapPending = false
	for y := 0; y < v.rows; y++ {
		v.clearRow(y)
	}
}

func rowText(row []mux.Cell) string {
	var b strings.Builder
	for _, c := range row {
		if c.Ch == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(c.Ch)
	}
	return strings.TrimRight(b.String(), " ")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
