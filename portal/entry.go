// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: portal/entry.go
// Summary: Binding entry and the bidirectional surface/anchor index.
// Usage: Pure bookkeeping for a host; eviction on rebind happens here, all
// other policy lives in the host and geometry synchronizer.

package portal

// bindingEntry is the live association of one hosted surface to one anchor,
// plus the visibility and stacking metadata the caller requested and the
// last physically applied frame/hidden state.
type bindingEntry struct {
	surface  Surface
	anchor   Anchor
	anchorID AnchorID

	visibleRequested bool
	zPriority        int

	// Last applied state, used for the epsilon frame-write policy, the
	// hidden-to-visible restack trigger and hit testing.
	lastFrame Rect
	hasFrame  bool
	hidden    bool
}

// bindingIndex keeps the surface→entry and anchor→surface lookups for one
// host. At most one entry per surface, at most one surface per anchor.
type bindingIndex struct {
	bySurface map[SurfaceID]*bindingEntry
	byAnchor  map[AnchorID]SurfaceID
}

func newBindingIndex() *bindingIndex {
	return &bindingIndex{
		bySurface: make(map[SurfaceID]*bindingEntry),
		byAnchor:  make(map[AnchorID]SurfaceID),
	}
}

// bind points a at e's surface, enforcing detach-then-bind: an entry for a
// different surface already bound to a is removed and returned so the host
// can physically detach it, and a stale anchor mapping left from the
// surface's previous anchor is dropped. e.anchor must still hold the
// previous anchor when bind is called; bind updates it.
func (ix *bindingIndex) bind(e *bindingEntry, a Anchor) (evicted *bindingEntry) {
	sid := e.surface.SurfaceID()
	aid := a.AnchorID()

	if prev, ok := ix.byAnchor[aid]; ok && prev != sid {
		evicted = ix.bySurface[prev]
		delete(ix.bySurface, prev)
	}
	if old, ok := ix.bySurface[sid]; ok && old.anchorID != aid {
		if cur, mapped := ix.byAnchor[old.anchorID]; mapped && cur == sid {
			delete(ix.byAnchor, old.anchorID)
		}
	}

	e.anchor = a
	e.anchorID = aid
	ix.byAnchor[aid] = sid
	ix.bySurface[sid] = e
	return evicted
}

// remove drops the entry for sid and its anchor mapping. Nil when untracked.
func (ix *bindingIndex) remove(sid SurfaceID) *bindingEntry {
	e, ok := ix.bySurface[sid]
	if !ok {
		return nil
	}
	delete(ix.bySurface, sid)
	if cur, mapped := ix.byAnchor[e.anchorID]; mapped && cur == sid {
		delete(ix.byAnchor, e.anchorID)
	}
	return e
}

func (ix *bindingIndex) entry(sid SurfaceID) *bindingEntry {
	return ix.bySurface[sid]
}

func (ix *bindingIndex) entryForAnchor(aid AnchorID) *bindingEntry {
	sid, ok := ix.byAnchor[aid]
	if !ok {
		return nil
	}
	return ix.bySurface[sid]
}

func (ix *bindingIndex) empty() bool {
	return len(ix.bySurface) == 0
}
