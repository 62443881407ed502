// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: portal/registry.go
// Summary: Process-wide portal registry: window→host and surface→window.
// Usage: Constructed explicitly (no ambient state) so tests and embedders can
// run isolated instances; the desktop owns one and routes all portal calls
// through it.

package portal

import "log"

// Registry resolves portal operations without the caller tracking windows.
// Hosts are created lazily on first bind and destroyed on window close; the
// surface→window table detects cross-window migration (a tab dragged to
// another top-level window).
type Registry struct {
	hosts         map[WindowID]*Host
	surfaceWindow map[SurfaceID]WindowID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		hosts:         make(map[WindowID]*Host),
		surfaceWindow: make(map[SurfaceID]WindowID),
	}
}

// Bind resolves the anchor's window, migrates the surface out of a previous
// window if needed, and delegates to the owning host.
func (r *Registry) Bind(s Surface, a Anchor, visible bool, zPriority int) {
	if s == nil || a == nil {
		return
	}
	w, ok := a.Window()
	if !ok || w == nil || !w.Alive() {
		// No window yet: preserve the visibility request on an existing
		// binding so a remount in progress does not flash hidden.
		if h := r.hostForSurface(s.SurfaceID()); h != nil {
			h.SetVisibilityOnly(s, visible)
		}
		return
	}
	sid := s.SurfaceID()
	if prev, known := r.surfaceWindow[sid]; known && prev != w.WindowID() {
		if ph := r.hosts[prev]; ph != nil {
			log.Printf("PortalRegistry: surface %s migrating %s -> %s", sid, prev, w.WindowID())
			ph.Detach(s)
		}
	}
	h := r.hostFor(w)
	h.Bind(s, a, visible, zPriority)
	r.surfaceWindow[sid] = w.WindowID()
	r.pruneSurfaceRecords(w.WindowID(), h)
}

// Detach removes the surface wherever it is currently hosted. Idempotent.
func (r *Registry) Detach(s Surface) {
	if s == nil {
		return
	}
	sid := s.SurfaceID()
	if h := r.hostForSurface(sid); h != nil {
		h.Detach(s)
	}
	delete(r.surfaceWindow, sid)
}

// Hide marks the surface logically gone but rebindable, wherever it lives.
func (r *Registry) Hide(s Surface) {
	if s == nil {
		return
	}
	if h := r.hostForSurface(s.SurfaceID()); h != nil {
		h.Hide(s)
	}
}

// SetVisibilityOnly forwards a visibility pre-declaration to the surface's
// current host, if any.
func (r *Registry) SetVisibilityOnly(s Surface, visible bool) {
	if s == nil {
		return
	}
	if h := r.hostForSurface(s.SurfaceID()); h != nil {
		h.SetVisibilityOnly(s, visible)
	}
}

// Synchronize routes a layout change notification to the anchor's host.
func (r *Registry) Synchronize(a Anchor) {
	if a == nil {
		return
	}
	w, ok := a.Window()
	if !ok || w == nil || !w.Alive() {
		return
	}
	r.hostFor(w).Synchronize(a)
}

// HitTest asks the window's host for the topmost surface at the point.
func (r *Registry) HitTest(x, y float64, wid WindowID) (Surface, bool) {
	h, ok := r.hosts[wid]
	if !ok {
		return nil, false
	}
	return h.HitTest(x, y)
}

// Host returns the live host for a window, for compositing.
func (r *Registry) Host(wid WindowID) (*Host, bool) {
	h, ok := r.hosts[wid]
	return h, ok
}

// WindowClosed tears down the window's host, detaching every remaining
// surface, and forgets all surface records pointing at it.
func (r *Registry) WindowClosed(wid WindowID) {
	if h, ok := r.hosts[wid]; ok {
		log.Printf("PortalRegistry: window %s closed, tearing down host", wid)
		h.DetachAll()
		delete(r.hosts, wid)
	}
	for sid, w := range r.surfaceWindow {
		if w == wid {
			delete(r.surfaceWindow, sid)
		}
	}
}

func (r *Registry) hostFor(w Window) *Host {
	if h, ok := r.hosts[w.WindowID()]; ok {
		return h
	}
	h := NewHost(w)
	r.hosts[w.WindowID()] = h
	return h
}

func (r *Registry) hostForSurface(sid SurfaceID) *Host {
	wid, ok := r.surfaceWindow[sid]
	if !ok {
		return nil
	}
	return r.hosts[wid]
}

// pruneSurfaceRecords drops surface→window records for wid that the host no
// longer tracks.
func (r *Registry) pruneSurfaceRecords(wid WindowID, h *Host) {
	for sid, w := range r.surfaceWindow {
		if w == wid && !h.Tracks(sid) {
			delete(r.surfaceWindow, sid)
		}
	}
}
