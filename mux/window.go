// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/window.go
// Summary: Top-level window: stable identity, content root, portal overlay
// and workspaces.
// Usage: One per logical desktop window; implements the portal's Window
// contract. Only the desktop mutates it, on the UI goroutine.

package mux

import (
	"log"

	"github.com/pweiskircher/cmux/portal"
)

// Window is a top-level window holding workspaces (tabs). Its content root
// identity changes only on a full rebuild; the portal overlay follows it.
type Window struct {
	id      portal.WindowID
	desktop *Desktop
	title   string
	alive   bool

	root    portal.RootID
	hasRoot bool
	overlay *winOverlay

	// content area in cells
	width, height int

	workspaces map[int]*Workspace
	active     *Workspace
}

func newWindow(d *Desktop, title string, width, height int) *Window {
	w := &Window{
		id:         portal.NewWindowID(),
		desktop:    d,
		title:      title,
		alive:      true,
		root:       portal.NewRootID(),
		hasRoot:    true,
		width:      width,
		height:     height,
		workspaces: make(map[int]*Workspace),
	}
	log.Printf("Window: created %s (%q, %dx%d)", w.id, title, width, height)
	return w
}

// WindowID returns the window's identity handle.
func (w *Window) WindowID() portal.WindowID { return w.id }

// Alive reports whether the window still exists.
func (w *Window) Alive() bool { return w.alive }

// Title returns the window title.
func (w *Window) Title() string { return w.title }

// ContentRootID returns the identity of the current content container.
func (w *Window) ContentRootID() (portal.RootID, bool) {
	if !w.alive || !w.hasRoot {
		return portal.RootID{}, false
	}
	return w.root, true
}

// InstallOverlay mounts the portal overlay directly above the given content
// root, replacing a stale overlay left over from a previous root.
func (w *Window) InstallOverlay(above portal.RootID) portal.Overlay {
	if !w.alive {
		return nil
	}
	if w.overlay == nil || w.overlay.root != above {
		log.Printf("Window %s: installing overlay above root %s", w.id, above)
		w.overlay = &winOverlay{win: w, root: above}
	}
	return w.overlay
}

// Defer schedules fn on the desktop's serial UI task queue.
func (w *Window) Defer(fn func()) {
	w.desktop.Defer(fn)
}

// RebuildContent replaces the window's content container, giving it a new
// identity, and re-mounts every workspace tree under it. The portal host
// detects the swap and reinstalls its overlay.
func (w *Window) RebuildContent() {
	w.root = portal.NewRootID()
	for _, ws := range w.workspaces {
		ws.tree.SetMount(w.root)
	}
	log.Printf("Window %s: content rebuilt, new root %s", w.id, w.root)
	if w.active != nil {
		for _, a := range w.active.tree.Anchors() {
			w.desktop.registry.Synchronize(a)
		}
	}
}

// SetSize updates the content area and relayouts the workspaces.
func (w *Window) SetSize(width, height int) {
	if width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	for _, ws := range w.workspaces {
		ws.resize()
	}
}

// ActiveWorkspace returns the foreground workspace, if any.
func (w *Window) ActiveWorkspace() *Workspace { return w.active }

// Bounds returns the content area in window coordinates.
func (w *Window) Bounds() portal.Rect {
	return portal.Rect{W: float64(w.width), H: float64(w.height)}
}

// winOverlay is the persistent container surfaces are parented into, kept
// directly above the window content. Stacking order is bottom to top.
type winOverlay struct {
	win   *Window
	root  portal.RootID
	stack []portal.Surface
}

func (o *winOverlay) Bounds() portal.Rect { return o.win.Bounds() }

func (o *winOverlay) Contains(id portal.SurfaceID) bool {
	for _, s := range o.stack {
		if s.SurfaceID() == id {
			return true
		}
	}
	return false
}

func (o *winOverlay) Add(s portal.Surface) {
	if o.Contains(s.SurfaceID()) {
		return
	}
	o.stack = append(o.stack, s)
}

func (o *winOverlay) Remove(id portal.SurfaceID) {
	for i, s := range o.stack {
		if s.SurfaceID() == id {
			o.stack = append(o.stack[:i], o.stack[i+1:]...)
			return
		}
	}
}

func (o *winOverlay) RaiseToTop(id portal.SurfaceID) {
	for i, s := range o.stack {
		if s.SurfaceID() == id {
			o.stack = append(o.stack[:i], o.stack[i+1:]...)
			o.stack = append(o.stack, s)
			return
		}
	}
}

func (o *winOverlay) Stacking() []portal.Surface {
	out := make([]portal.Surface, len(o.stack))
	copy(out, o.stack)
	return out
}
