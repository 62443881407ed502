// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: portal/entry_test.go
// Summary: Exercises detach-then-bind enforcement in the binding index.

package portal

import "testing"

func TestIndexBindEvictsAnchorOccupant(t *testing.T) {
	win := newStubWindow(100, 100)
	a := newStubAnchor(win, Rect{W: 10, H: 10})
	ix := newBindingIndex()

	s1 := newStubSurface()
	s2 := newStubSurface()
	e1 := &bindingEntry{surface: s1}
	if evicted := ix.bind(e1, a); evicted != nil {
		t.Fatalf("first bind must not evict")
	}

	e2 := &bindingEntry{surface: s2}
	evicted := ix.bind(e2, a)
	if evicted != e1 {
		t.Fatalf("binding a second surface to an occupied anchor must evict the first")
	}
	if ix.entry(s1.SurfaceID()) != nil {
		t.Fatalf("evicted surface still indexed")
	}
	if got := ix.entryForAnchor(a.AnchorID()); got != e2 {
		t.Fatalf("anchor should map to the new surface")
	}
}

func TestIndexBindClearsStaleAnchorMapping(t *testing.T) {
	win := newStubWindow(100, 100)
	a1 := newStubAnchor(win, Rect{W: 10, H: 10})
	a2 := newStubAnchor(win, Rect{W: 10, H: 10})
	ix := newBindingIndex()

	s := newStubSurface()
	e := &bindingEntry{surface: s}
	ix.bind(e, a1)
	ix.bind(e, a2)

	if got := ix.entryForAnchor(a1.AnchorID()); got != nil {
		t.Fatalf("previous anchor mapping must be removed on rebind")
	}
	if got := ix.entryForAnchor(a2.AnchorID()); got != e {
		t.Fatalf("new anchor mapping missing")
	}
	if e.anchorID != a2.AnchorID() {
		t.Fatalf("entry anchor identity not updated")
	}
}

func TestIndexRemoveIsIdempotent(t *testing.T) {
	win := newStubWindow(100, 100)
	a := newStubAnchor(win, Rect{W: 10, H: 10})
	ix := newBindingIndex()

	s := newStubSurface()
	ix.bind(&bindingEntry{surface: s}, a)

	if ix.remove(s.SurfaceID()) == nil {
		t.Fatalf("first remove should return the entry")
	}
	if ix.remove(s.SurfaceID()) != nil {
		t.Fatalf("second remove should be a no-op")
	}
	if !ix.empty() {
		t.Fatalf("index should be empty")
	}
	if ix.entryForAnchor(a.AnchorID()) != nil {
		t.Fatalf("anchor mapping should be gone")
	}
}
