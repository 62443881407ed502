// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: portal/host.go
// Summary: Portal host: owns one window's overlay and binding index and
// orchestrates bind/detach/synchronize/hit-test.
// Usage: One host per top-level window, created and torn down by the
// Registry. All operations run on the window's serial UI task queue.

package portal

import "log"

// maxSyncPasses bounds the re-entrant retry loop of the full defensive pass.
// Layout notifications can arrive from inside our own frame writes; instead
// of recursing we consume a single pending-request slot per pass.
const maxSyncPasses = 8

// Host decouples logical placement (anchors the layout engine churns through)
// from physical hosting (the persistent overlay that owns surface frames).
// Every operation tolerates a missing window, anchor or surface as a no-op;
// the layout engine tears structures down asynchronously relative to us.
type Host struct {
	window Window
	index  *bindingIndex

	overlay       Overlay
	installedRoot RootID
	installed     bool

	fullPassPending bool
	synchronizing   bool
	syncRequested   bool
}

// NewHost creates a host for the given window. The overlay is installed
// lazily on the first bind.
func NewHost(w Window) *Host {
	return &Host{window: w, index: newBindingIndex()}
}

// Bind records (surface, anchor) with the requested visibility and stacking
// priority, reparents the surface into the overlay, applies the z-order
// policy and runs one immediate geometry pass. A surface already bound to
// the anchor is detached first; a previous anchor of this surface is
// forgotten.
func (h *Host) Bind(s Surface, a Anchor, visible bool, zPriority int) {
	if s == nil || !s.Alive() || a == nil {
		return
	}
	if !h.installOverlayIfNeeded() {
		return
	}
	sid := s.SurfaceID()
	e := h.index.entry(sid)
	fresh := e == nil
	if fresh {
		// New bindings start logically hidden so the first visible geometry
		// pass counts as a hidden-to-visible transition.
		e = &bindingEntry{surface: s, hidden: true}
	}
	prevZ := e.zPriority

	if evicted := h.index.bind(e, a); evicted != nil {
		log.Printf("Portal: anchor %s rebound, detaching surface %s", a.AnchorID(), evicted.surface.SurfaceID())
		h.overlay.Remove(evicted.surface.SurfaceID())
	}
	e.visibleRequested = visible
	e.zPriority = zPriority

	if !h.overlay.Contains(sid) {
		h.overlay.Add(s)
	}
	// Restack only on a fresh bind or a priority increase. Anchor identity
	// churn with unchanged visibility/priority must not re-stack: that is
	// the common restructuring case and restacking bounces the surface
	// visibly through the z-order.
	if fresh || zPriority > prevZ {
		h.overlay.RaiseToTop(sid)
	}

	h.syncEntryGuarded(e)
	h.pruneDeadEntries()
}

// Detach removes the surface's binding and takes it out of the overlay.
// Idempotent; detaching an unknown surface is a no-op.
func (h *Host) Detach(s Surface) {
	if s == nil {
		return
	}
	h.detachID(s.SurfaceID())
}

func (h *Host) detachID(sid SurfaceID) {
	if h.index.remove(sid) == nil {
		return
	}
	if h.overlay != nil {
		h.overlay.Remove(sid)
	}
}

// Hide marks the surface logically gone but able to return: the binding
// stays, visibleRequested drops to false. Distinct from Detach, which is
// permanent removal.
func (h *Host) Hide(s Surface) {
	h.SetVisibilityOnly(s, false)
}

// SetVisibilityOnly updates the requested visibility without touching the
// binding structure. Callers use it to pre-declare visibility before the
// real anchor exists, which keeps a remount from flashing hidden.
func (h *Host) SetVisibilityOnly(s Surface, visible bool) {
	if s == nil {
		return
	}
	e := h.index.entry(s.SurfaceID())
	if e == nil {
		return
	}
	e.visibleRequested = visible
	if h.installOverlayIfNeeded() {
		h.syncEntryGuarded(e)
	}
}

// Synchronize runs the geometry pass for whatever surface is bound to the
// anchor, then schedules the coalesced deferred full pass. One structural
// layout change can silently move sibling anchors without their own
// notifications, so a per-anchor pass alone is not enough.
func (h *Host) Synchronize(a Anchor) {
	if h.synchronizing {
		// Re-entrant notification from inside our own pass; fold it into
		// the pending-request slot instead of recursing.
		h.syncRequested = true
		return
	}
	if !h.installOverlayIfNeeded() {
		return
	}
	if a != nil {
		if e := h.index.entryForAnchor(a.AnchorID()); e != nil {
			h.syncEntryGuarded(e)
		}
	}
	h.scheduleFullPass()
	h.pruneDeadEntries()
}

// HitTest returns the topmost live, non-hidden surface whose current frame
// contains the point (window coordinates). Only surfaces present in the
// index qualify: a detached-but-not-yet-destroyed surface never intercepts
// input.
func (h *Host) HitTest(x, y float64) (Surface, bool) {
	if h.overlay == nil {
		return nil, false
	}
	stack := h.overlay.Stacking()
	for i := len(stack) - 1; i >= 0; i-- {
		s := stack[i]
		e := h.index.entry(s.SurfaceID())
		if e == nil || e.hidden || !e.hasFrame {
			continue
		}
		if e.lastFrame.Contains(x, y) {
			return s, true
		}
	}
	return nil, false
}

// Stacking returns the currently bound, non-hidden surfaces bottom to top,
// for the desktop compositor.
func (h *Host) Stacking() []Surface {
	if h.overlay == nil {
		return nil
	}
	var out []Surface
	for _, s := range h.overlay.Stacking() {
		e := h.index.entry(s.SurfaceID())
		if e == nil || e.hidden {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Tracks reports whether the host has a live binding for the surface.
func (h *Host) Tracks(sid SurfaceID) bool {
	return h.index.entry(sid) != nil
}

// DetachAll removes every remaining binding. Used on window teardown.
func (h *Host) DetachAll() {
	for sid := range h.index.bySurface {
		h.detachID(sid)
	}
}

// syncEntryGuarded runs one geometry pass with the re-entrancy guard held.
// Frame writes can bounce a layout notification straight back into us; the
// notification collapses into the pending-request slot and is served by a
// deferred full pass instead of recursion.
func (h *Host) syncEntryGuarded(e *bindingEntry) {
	if h.synchronizing {
		h.syncRequested = true
		return
	}
	h.synchronizing = true
	h.syncEntry(e)
	h.synchronizing = false
	if h.syncRequested {
		h.scheduleFullPass()
	}
}

// syncEntry applies one geometry evaluation to a single binding.
func (h *Host) syncEntry(e *bindingEntry) {
	d := evaluateGeometry(e, h.overlay.Bounds())
	if d.indeterminate {
		return
	}
	alive := e.surface != nil && e.surface.Alive()
	if d.writeFrame && alive {
		e.surface.SetFrame(d.local)
		e.lastFrame = d.frame
		e.hasFrame = true
		if d.notifyResize {
			e.surface.NotifyResized()
		}
	}
	wasHidden := e.hidden
	if alive {
		e.surface.SetHidden(d.hidden)
	}
	e.hidden = d.hidden
	if wasHidden && !d.hidden {
		h.overlay.RaiseToTop(e.surface.SurfaceID())
	}
}

// scheduleFullPass defers one full defensive pass by a scheduling tick to
// catch late-settling geometry. At most one is pending regardless of how
// many synchronize calls arrive in between.
func (h *Host) scheduleFullPass() {
	if h.fullPassPending {
		return
	}
	h.fullPassPending = true
	h.window.Defer(func() {
		h.fullPassPending = false
		h.runFullPass()
	})
}

func (h *Host) runFullPass() {
	if h.index.empty() {
		return
	}
	if !h.installOverlayIfNeeded() {
		return
	}
	h.synchronizing = true
	for pass := 0; pass < maxSyncPasses; pass++ {
		h.syncRequested = false
		for _, e := range h.index.bySurface {
			h.syncEntry(e)
		}
		if !h.syncRequested {
			break
		}
	}
	h.synchronizing = false
	h.pruneDeadEntries()
}

// pruneDeadEntries drops bindings whose anchor is gone, attached to another
// window, or no longer under our installation point. Staleness is discovered
// here lazily; nothing reports it as a failure.
func (h *Host) pruneDeadEntries() {
	for sid, e := range h.index.bySurface {
		if !h.entryStale(e) {
			continue
		}
		log.Printf("Portal: pruning stale binding for surface %s", sid)
		h.detachID(sid)
	}
}

func (h *Host) entryStale(e *bindingEntry) bool {
	a := e.anchor
	if a == nil || !a.Alive() {
		return true
	}
	w, ok := a.Window()
	if !ok || w == nil || w.WindowID() != h.window.WindowID() {
		return true
	}
	if h.installed && !a.Under(h.installedRoot) {
		return true
	}
	return false
}

// installOverlayIfNeeded keeps the overlay parented directly above the
// window's real content, repairing content-container identity changes.
// Returns false when the window is gone, which turns every public operation
// into a no-op.
func (h *Host) installOverlayIfNeeded() bool {
	w := h.window
	if w == nil || !w.Alive() {
		return false
	}
	root, ok := w.ContentRootID()
	if !ok {
		return false
	}
	if h.overlay != nil && h.installed && h.installedRoot == root {
		return true
	}
	old := h.overlay
	h.overlay = w.InstallOverlay(root)
	if h.overlay == nil {
		return false
	}
	h.installedRoot = root
	h.installed = true
	// Re-adopt surfaces bound before the content root was swapped out from
	// under us. The old overlay still knows their relative order; replay it
	// bottom to top so the swap does not shuffle the stack.
	if old != nil && old != h.overlay {
		for _, s := range old.Stacking() {
			if h.index.entry(s.SurfaceID()) == nil {
				continue
			}
			if !h.overlay.Contains(s.SurfaceID()) {
				h.overlay.Add(s)
			}
		}
	}
	for _, e := range h.index.bySurface {
		if e.surface != nil && !h.overlay.Contains(e.surface.SurfaceID()) {
			h.overlay.Add(e.surface)
		}
	}
	return true
}
