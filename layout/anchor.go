// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: layout/anchor.go
// Summary: Anchor: the transient leaf placeholder a hosted surface binds to.
// Usage: Created and destroyed by the tree during splits, closes and
// remounts; the portal holds only non-owning references to it.

package layout

import "github.com/pweiskircher/cmux/portal"

// Anchor is a leaf placeholder in the layout tree. Its identity is transient:
// restructuring can kill an anchor and grow a fresh one in the same place.
type Anchor struct {
	id   portal.AnchorID
	tree *Tree
	node *Node

	bounds    portal.Rect
	hasBounds bool
}

func newAnchor(t *Tree, n *Node) *Anchor {
	return &Anchor{id: portal.NewAnchorID(), tree: t, node: n}
}

// AnchorID returns the anchor's identity handle.
func (a *Anchor) AnchorID() portal.AnchorID { return a.id }

// Alive reports whether the anchor still sits in a tree.
func (a *Anchor) Alive() bool {
	return a.node != nil && a.tree != nil
}

// Window returns the window the anchor's tree is mounted in.
func (a *Anchor) Window() (portal.Window, bool) {
	if !a.Alive() || a.tree.win == nil {
		return nil, false
	}
	return a.tree.win, true
}

// BoundsInWindow returns the anchor's bounds in window coordinates. ok is
// false until the first resize pass has resolved them.
func (a *Anchor) BoundsInWindow() (portal.Rect, bool) {
	if !a.Alive() || !a.hasBounds {
		return portal.Rect{}, false
	}
	return a.bounds, true
}

// EffectivelyHidden reports whether the anchor or any ancestor node in its
// containment chain is hidden (e.g. the whole tree belongs to a background
// tab).
func (a *Anchor) EffectivelyHidden() bool {
	if !a.Alive() {
		return false
	}
	if a.tree.hidden {
		return true
	}
	for n := a.node; n != nil; n = n.parent {
		if n.hidden {
			return true
		}
	}
	return false
}

// Under reports whether the anchor's tree is still mounted under the given
// content root.
func (a *Anchor) Under(root portal.RootID) bool {
	return a.Alive() && a.tree.mount == root
}

// detach kills the anchor. The portal discovers this lazily via Alive.
func (a *Anchor) detach() {
	a.node = nil
}
