// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: layout/tree.go
// Summary: Tiling layout tree whose leaves are portal anchors.
// Usage: One tree per workspace. The desktop engine drives Resize and
// structural operations; anchor-moved callbacks feed portal synchronization.

package layout

import (
	"log"
	"math"

	"github.com/pweiskircher/cmux/portal"
)

type SplitType int

const (
	Horizontal SplitType = iota
	Vertical
)

type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

const (
	// ResizeStep is the ratio moved per divider-drag increment.
	ResizeStep = 0.05
	// MinRatio keeps panes from collapsing to nothing.
	MinRatio = 0.1
)

// Node is an internal split (with children and ratios) or a leaf carrying an
// anchor.
type Node struct {
	parent   *Node
	split    SplitType
	ratios   []float64
	children []*Node
	anchor   *Anchor
	hidden   bool
}

// Tree manages the anchor hierarchy for one workspace. Structural operations
// create and destroy anchors freely; hosted surfaces are expected to survive
// that churn on the portal side.
type Tree struct {
	win    portal.Window
	mount  portal.RootID
	root   *Node
	active *Node
	hidden bool

	// last applied outer bounds, reused when ratios change
	x, y, w, h float64
	resized    bool

	// OnAnchorMoved fires for every anchor whose bounds changed in a resize
	// pass. The desktop routes it into portal synchronization.
	OnAnchorMoved func(a *Anchor)
}

// NewTree creates an empty tree mounted under the given window content root.
func NewTree(win portal.Window, mount portal.RootID) *Tree {
	return &Tree{win: win, mount: mount}
}

// SetMount re-points the tree at a new content root (the window swapped its
// container). Anchors answer Under() against the new root from here on.
func (t *Tree) SetMount(mount portal.RootID) {
	t.mount = mount
}

// SetHidden hides or shows the whole tree, e.g. when its tab goes to the
// background. Anchors report it through EffectivelyHidden.
func (t *Tree) SetHidden(hidden bool) {
	t.hidden = hidden
}

// Hidden reports the tree-level hidden flag.
func (t *Tree) Hidden() bool { return t.hidden }

// SetRoot replaces the tree contents with a single leaf and returns its
// anchor. Anchors of any previous contents die.
func (t *Tree) SetRoot() *Anchor {
	t.traverse(t.root, func(n *Node) {
		if n.anchor != nil {
			n.anchor.detach()
		}
	})
	leaf := &Node{}
	leaf.anchor = newAnchor(t, leaf)
	t.root = leaf
	t.active = leaf
	log.Printf("Tree.SetRoot: new root anchor %s", leaf.anchor.AnchorID())
	if t.resized {
		t.Resize(t.x, t.y, t.w, t.h)
	}
	return leaf.anchor
}

// ratiosAreEqual checks if all ratios in a slice are effectively equal.
func ratiosAreEqual(ratios []float64) bool {
	if len(ratios) <= 1 {
		return true
	}
	first := ratios[0]
	for _, r := range ratios[1:] {
		if math.Abs(r-first) > 0.001 {
			return false
		}
	}
	return true
}

// SplitActive splits the active leaf and returns the new leaf's anchor. When
// the parent is an equally-sized group in the same direction the new leaf
// joins the group; otherwise the active leaf becomes a group of two.
func (t *Tree) SplitActive(dir SplitType) *Anchor {
	if t.active == nil {
		log.Printf("Tree.SplitActive: no active leaf to split")
		return nil
	}
	nodeToModify := t.active
	parent := nodeToModify.parent

	var newLeaf *Node
	if parent != nil && parent.split == dir && ratiosAreEqual(parent.ratios) {
		// Join the existing equally-sized group and re-balance.
		newLeaf = &Node{parent: parent}
		newLeaf.anchor = newAnchor(t, newLeaf)
		parent.children = append(parent.children, newLeaf)
		equal := 1.0 / float64(len(parent.children))
		parent.ratios = make([]float64, len(parent.children))
		for i := range parent.ratios {
			parent.ratios[i] = equal
		}
		log.Printf("Tree.SplitActive: joined group, %d children at %.3f each", len(parent.children), equal)
	} else {
		// The leaf becomes an internal node of two.
		moved := nodeToModify.anchor
		nodeToModify.anchor = nil
		nodeToModify.split = dir
		nodeToModify.ratios = []float64{0.5, 0.5}

		kept := &Node{parent: nodeToModify, anchor: moved}
		moved.node = kept
		newLeaf = &Node{parent: nodeToModify}
		newLeaf.anchor = newAnchor(t, newLeaf)
		nodeToModify.children = []*Node{kept, newLeaf}
		log.Printf("Tree.SplitActive: new split group, anchors %s / %s", moved.AnchorID(), newLeaf.anchor.AnchorID())
	}

	t.active = newLeaf
	if t.resized {
		t.Resize(t.x, t.y, t.w, t.h)
	}
	return newLeaf.anchor
}

// CloseActiveLeaf removes the active leaf, killing its anchor, and returns
// the anchor of the next active leaf. The root leaf cannot be closed.
func (t *Tree) CloseActiveLeaf() *Anchor {
	leaf := t.active
	if leaf == nil || leaf.parent == nil {
		if leaf != nil && leaf.anchor != nil {
			return leaf.anchor
		}
		return nil
	}
	parent := leaf.parent
	idx := childIndex(parent, leaf)
	if idx < 0 {
		return t.activeAnchor()
	}
	parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
	parent.ratios = append(parent.ratios[:idx], parent.ratios[idx+1:]...)
	normalize(parent.ratios)

	leaf.anchor.detach()
	log.Printf("Tree.CloseActiveLeaf: closed anchor, %d siblings remain", len(parent.children))

	var next *Node
	if len(parent.children) == 1 {
		// The split is no longer needed; promote the remaining child.
		remaining := parent.children[0]
		grandparent := parent.parent
		remaining.parent = grandparent
		if grandparent == nil {
			t.root = remaining
		} else {
			for i, child := range grandparent.children {
				if child == parent {
					grandparent.children[i] = remaining
					break
				}
			}
		}
		next = firstLeaf(remaining)
	} else {
		newIdx := idx
		if newIdx >= len(parent.children) {
			newIdx = len(parent.children) - 1
		}
		next = firstLeaf(parent.children[newIdx])
	}
	t.active = next
	if t.resized {
		t.Resize(t.x, t.y, t.w, t.h)
	}
	return t.activeAnchor()
}

// RemountActive recreates the active leaf's anchor with a fresh identity,
// killing the old one. This is the anchor churn a restructure produces:
// logically the same slot, physically a new placeholder.
func (t *Tree) RemountActive() *Anchor {
	if t.active == nil || t.active.anchor == nil {
		return nil
	}
	old := t.active.anchor
	old.detach()
	fresh := newAnchor(t, t.active)
	fresh.bounds = old.bounds
	fresh.hasBounds = old.hasBounds
	t.active.anchor = fresh
	log.Printf("Tree.RemountActive: anchor %s remounted as %s", old.AnchorID(), fresh.AnchorID())
	return fresh
}

// MoveActive moves the active leaf in the given direction.
func (t *Tree) MoveActive(d Direction) *Anchor {
	if target := t.findNeighbor(d); target != nil {
		t.active = target
	}
	return t.activeAnchor()
}

// ActiveAnchor returns the anchor of the active leaf.
func (t *Tree) ActiveAnchor() *Anchor { return t.activeAnchor() }

func (t *Tree) activeAnchor() *Anchor {
	if t.active == nil {
		return nil
	}
	return t.active.anchor
}

// SetActive makes the given anchor's leaf active, if it is still in the tree.
func (t *Tree) SetActive(a *Anchor) {
	if a != nil && a.tree == t && a.node != nil {
		t.active = a.node
	}
}

// AdjustActiveRatio drags the divider between the active leaf and its
// neighbor in the given direction by one step. Note that this silently moves
// every sibling sharing the divider; only their resize callbacks tell the
// portal about it.
func (t *Tree) AdjustActiveRatio(d Direction, grow bool) {
	curr := t.active
	for curr != nil && curr.parent != nil {
		parent := curr.parent
		wantSplit := Vertical
		if d == DirUp || d == DirDown {
			wantSplit = Horizontal
		}
		idx := childIndex(parent, curr)
		if parent.split == wantSplit && idx >= 0 && len(parent.children) > 1 {
			other := idx + 1
			if other >= len(parent.children) {
				other = idx - 1
			}
			step := ResizeStep
			if !grow {
				step = -step
			}
			if parent.ratios[idx]+step < MinRatio || parent.ratios[other]-step < MinRatio {
				return
			}
			parent.ratios[idx] += step
			parent.ratios[other] -= step
			if t.resized {
				t.Resize(t.x, t.y, t.w, t.h)
			}
			return
		}
		curr = parent
	}
}

// Resize recomputes every anchor's window-space bounds from the outer
// rectangle, firing OnAnchorMoved for each anchor that actually moved.
func (t *Tree) Resize(x, y, w, h float64) {
	t.x, t.y, t.w, t.h = x, y, w, h
	t.resized = true
	if t.root == nil {
		return
	}
	t.resizeNode(t.root, x, y, w, h)
}

func (t *Tree) resizeNode(n *Node, x, y, w, h float64) {
	if n == nil {
		return
	}
	if n.anchor != nil {
		bounds := portal.Rect{X: x, Y: y, W: w, H: h}
		moved := !n.anchor.hasBounds || n.anchor.bounds != bounds
		n.anchor.bounds = bounds
		n.anchor.hasBounds = true
		if moved && t.OnAnchorMoved != nil {
			t.OnAnchorMoved(n.anchor)
		}
		return
	}
	count := len(n.children)
	if count == 0 || len(n.ratios) != count {
		log.Printf("Tree.resizeNode: invalid internal node, children=%d ratios=%d", count, len(n.ratios))
		return
	}
	ratios := make([]float64, count)
	copy(ratios, n.ratios)
	normalize(ratios)

	if n.split == Vertical {
		currentX := x
		for i, child := range n.children {
			childW := w * ratios[i]
			if i == count-1 {
				childW = w - (currentX - x)
			}
			t.resizeNode(child, currentX, y, childW, h)
			currentX += childW
		}
	} else {
		currentY := y
		for i, child := range n.children {
			childH := h * ratios[i]
			if i == count-1 {
				childH = h - (currentY - y)
			}
			t.resizeNode(child, x, currentY, w, childH)
			currentY += childH
		}
	}
}

// FindLeafAt returns the anchor whose bounds contain the point, if any.
func (t *Tree) FindLeafAt(x, y float64) *Anchor {
	return findLeafAt(t.root, x, y)
}

func findLeafAt(n *Node, x, y float64) *Anchor {
	if n == nil {
		return nil
	}
	if n.anchor != nil {
		if n.anchor.hasBounds && n.anchor.bounds.Contains(x, y) {
			return n.anchor
		}
		return nil
	}
	for _, child := range n.children {
		if hit := findLeafAt(child, x, y); hit != nil {
			return hit
		}
	}
	return nil
}

// Anchors returns every live anchor in the tree.
func (t *Tree) Anchors() []*Anchor {
	var out []*Anchor
	t.traverse(t.root, func(n *Node) {
		if n.anchor != nil {
			out = append(out, n.anchor)
		}
	})
	return out
}

func (t *Tree) traverse(n *Node, f func(*Node)) {
	if n == nil {
		return
	}
	f(n)
	for _, child := range n.children {
		t.traverse(child, f)
	}
}

// findNeighbor finds the neighboring leaf of the active one in direction d.
func (t *Tree) findNeighbor(d Direction) *Node {
	curr := t.active
	if curr == nil {
		return nil
	}
	for curr.parent != nil {
		parent := curr.parent
		idx := childIndex(parent, curr)
		if idx < 0 {
			return nil
		}
		switch d {
		case DirRight:
			if parent.split == Vertical && idx+1 < len(parent.children) {
				return firstLeaf(parent.children[idx+1])
			}
		case DirLeft:
			if parent.split == Vertical && idx-1 >= 0 {
				return firstLeaf(parent.children[idx-1])
			}
		case DirDown:
			if parent.split == Horizontal && idx+1 < len(parent.children) {
				return firstLeaf(parent.children[idx+1])
			}
		case DirUp:
			if parent.split == Horizontal && idx-1 >= 0 {
				return firstLeaf(parent.children[idx-1])
			}
		}
		curr = parent
	}
	return nil
}

func childIndex(parent, child *Node) int {
	for i, c := range parent.children {
		if c == child {
			return i
		}
	}
	return -1
}

func firstLeaf(n *Node) *Node {
	curr := n
	for curr != nil && len(curr.children) > 0 {
		curr = curr.children[0]
	}
	return curr
}

func normalize(ratios []float64) {
	total := 0.0
	for _, r := range ratios {
		total += r
	}
	if total <= 0 {
		equal := 1.0 / float64(len(ratios))
		for i := range ratios {
			ratios[i] = equal
		}
		return
	}
	for i := range ratios {
		ratios[i] /= total
	}
}
