// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/app.go
// Summary: Contract for hosted surface applications.
// Usage: Implemented by terminal surfaces (term package); the desktop engine
// composites them and routes input, the portal positions them.

package mux

import (
	"github.com/gdamore/tcell/v2"

	"github.com/pweiskircher/cmux/portal"
)

// SurfaceApp is a persistent, stateful rendering resource hosted by the
// portal. It keeps its internal state across reparenting and frame moves.
type SurfaceApp interface {
	portal.Surface

	// Run starts the app's content loop. Called once, on its own goroutine.
	Run() error

	// Stop terminates the app and releases its resources.
	Stop()

	// Render returns the current cell buffer at the app's frame size.
	Render() [][]Cell

	// Frame returns the last frame applied by the portal.
	Frame() (portal.Rect, bool)

	// Title returns the app's current title for the status line.
	Title() string

	// HandleKey delivers a key event to the focused app.
	HandleKey(ev *tcell.EventKey)

	// SetRefreshNotifier gives the app a channel to request redraws on.
	SetRefreshNotifier(ch chan<- bool)
}

// AppFactory creates the app hosted by a freshly created pane.
type AppFactory func() SurfaceApp
