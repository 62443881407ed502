// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/statusbar.go
// Summary: Status bar rendering the bottom screen row from desktop state
// events.
// Usage: Subscribed to the desktop's dispatcher at construction; it never
// reaches into the engine, EventStateUpdate is its only input.

package mux

import (
	"strconv"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// statusBar caches the latest desktop state snapshot and draws it into the
// reserved bottom row.
type statusBar struct {
	mu    sync.RWMutex
	state StatePayload
}

func newStatusBar() *statusBar { return &statusBar{} }

// OnEvent implements Listener.
func (b *statusBar) OnEvent(event Event) {
	if event.Type != EventStateUpdate {
		return
	}
	payload, ok := event.Payload.(StatePayload)
	if !ok {
		return
	}
	b.mu.Lock()
	b.state = payload
	b.mu.Unlock()
}

// draw renders the cached state onto row. Runs on the UI goroutine.
func (b *statusBar) draw(screen tcell.Screen, width, row int, base tcell.Style) {
	b.mu.RLock()
	st := b.state
	b.mu.RUnlock()

	style := base.Reverse(true)
	left := " [" + strconv.Itoa(st.WorkspaceID) + "] " + st.ActiveTitle
	right := ""
	if st.InControlMode {
		right = " CTRL "
	}

	x := 0
	for _, r := range left {
		rw := runewidth.RuneWidth(r)
		if x+rw > width-runewidth.StringWidth(right) {
			break
		}
		screen.SetContent(x, row, r, nil, style)
		x += rw
	}
	for ; x < width-runewidth.StringWidth(right); x++ {
		screen.SetContent(x, row, ' ', nil, style)
	}
	for _, r := range right {
		screen.SetContent(x, row, r, nil, style.Bold(true))
		x += runewidth.RuneWidth(r)
	}
}
