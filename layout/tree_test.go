// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: layout/tree_test.go
// Summary: Exercises tree structure, bounds resolution and anchor lifecycle.

package layout

import (
	"math"
	"testing"

	"github.com/pweiskircher/cmux/portal"
)

func newTestTree() *Tree {
	return NewTree(nil, portal.NewRootID())
}

func TestSetRootResolvesBoundsAfterResize(t *testing.T) {
	tr := newTestTree()
	a := tr.SetRoot()
	if _, ok := a.BoundsInWindow(); ok {
		t.Fatalf("bounds should be unresolved before the first resize")
	}
	tr.Resize(0, 0, 200, 100)
	b, ok := a.BoundsInWindow()
	if !ok || b != (portal.Rect{X: 0, Y: 0, W: 200, H: 100}) {
		t.Fatalf("root bounds = %+v ok=%v", b, ok)
	}
}

func TestSplitActiveHalvesBounds(t *testing.T) {
	tr := newTestTree()
	first := tr.SetRoot()
	tr.Resize(0, 0, 200, 100)
	second := tr.SplitActive(Vertical)

	b1, _ := first.BoundsInWindow()
	b2, _ := second.BoundsInWindow()
	if b1 != (portal.Rect{X: 0, Y: 0, W: 100, H: 100}) {
		t.Fatalf("left pane bounds = %+v", b1)
	}
	if b2 != (portal.Rect{X: 100, Y: 0, W: 100, H: 100}) {
		t.Fatalf("right pane bounds = %+v", b2)
	}
}

func TestSplitJoinsEquallySizedGroup(t *testing.T) {
	tr := newTestTree()
	tr.SetRoot()
	tr.Resize(0, 0, 300, 100)
	tr.SplitActive(Vertical)
	third := tr.SplitActive(Vertical)

	b, _ := third.BoundsInWindow()
	if math.Abs(b.W-100) > 0.001 {
		t.Fatalf("three-way group should give each pane a third, got W=%f", b.W)
	}
	if len(tr.root.children) != 3 {
		t.Fatalf("expected a flat group of 3, got %d children", len(tr.root.children))
	}
}

func TestCloseActiveLeafPromotesRemainingChild(t *testing.T) {
	tr := newTestTree()
	first := tr.SetRoot()
	tr.Resize(0, 0, 200, 100)
	second := tr.SplitActive(Vertical)

	tr.CloseActiveLeaf()

	if second.Alive() {
		t.Fatalf("closed leaf's anchor must be dead")
	}
	if !first.Alive() {
		t.Fatalf("remaining anchor must survive")
	}
	b, _ := first.BoundsInWindow()
	if b != (portal.Rect{X: 0, Y: 0, W: 200, H: 100}) {
		t.Fatalf("promoted leaf should reclaim the full area, got %+v", b)
	}
	if tr.root.anchor != first {
		t.Fatalf("remaining leaf should be promoted to root")
	}
}

func TestCloseRootLeafIsRefused(t *testing.T) {
	tr := newTestTree()
	a := tr.SetRoot()
	if got := tr.CloseActiveLeaf(); got != a {
		t.Fatalf("root leaf must not be closable")
	}
	if !a.Alive() {
		t.Fatalf("root anchor must stay alive")
	}
}

func TestRemountActiveChurnsAnchorIdentity(t *testing.T) {
	tr := newTestTree()
	old := tr.SetRoot()
	tr.Resize(0, 0, 200, 100)

	fresh := tr.RemountActive()
	if fresh == nil || fresh == old {
		t.Fatalf("remount must produce a new anchor")
	}
	if old.Alive() {
		t.Fatalf("old anchor must be dead after remount")
	}
	if fresh.AnchorID() == old.AnchorID() {
		t.Fatalf("remounted anchor must have a fresh identity")
	}
	fb, ok := fresh.BoundsInWindow()
	if !ok || fb != (portal.Rect{X: 0, Y: 0, W: 200, H: 100}) {
		t.Fatalf("remounted anchor should inherit resolved bounds, got %+v", fb)
	}
}

func TestResizeFiresMovedCallbacks(t *testing.T) {
	tr := newTestTree()
	tr.SetRoot()
	tr.Resize(0, 0, 200, 100)
	tr.SplitActive(Vertical)

	var moved []*Anchor
	tr.OnAnchorMoved = func(a *Anchor) { moved = append(moved, a) }

	tr.Resize(0, 0, 400, 100)
	if len(moved) != 2 {
		t.Fatalf("both anchors moved, got %d callbacks", len(moved))
	}

	moved = nil
	tr.Resize(0, 0, 400, 100)
	if len(moved) != 0 {
		t.Fatalf("unchanged bounds must not fire callbacks, got %d", len(moved))
	}
}

func TestAdjustRatioSilentlyMovesSibling(t *testing.T) {
	tr := newTestTree()
	first := tr.SetRoot()
	tr.Resize(0, 0, 200, 100)
	second := tr.SplitActive(Vertical)

	b1Before, _ := first.BoundsInWindow()
	tr.AdjustActiveRatio(DirLeft, true)
	b1After, _ := first.BoundsInWindow()
	b2After, _ := second.BoundsInWindow()

	if b1Before == b1After {
		t.Fatalf("divider drag should shrink the sibling")
	}
	if math.Abs(b1After.W+b2After.W-200) > 0.001 {
		t.Fatalf("widths should still cover the tree, got %f + %f", b1After.W, b2After.W)
	}
}

func TestFindLeafAt(t *testing.T) {
	tr := newTestTree()
	first := tr.SetRoot()
	tr.Resize(0, 0, 200, 100)
	second := tr.SplitActive(Vertical)

	if got := tr.FindLeafAt(10, 10); got != first {
		t.Fatalf("left half should hit the first anchor")
	}
	if got := tr.FindLeafAt(150, 50); got != second {
		t.Fatalf("right half should hit the second anchor")
	}
	if got := tr.FindLeafAt(500, 500); got != nil {
		t.Fatalf("outside the tree should hit nothing")
	}
}

func TestHiddenTreePropagatesToAnchors(t *testing.T) {
	tr := newTestTree()
	a := tr.SetRoot()
	tr.Resize(0, 0, 200, 100)

	if a.EffectivelyHidden() {
		t.Fatalf("anchor should start visible")
	}
	tr.SetHidden(true)
	if !a.EffectivelyHidden() {
		t.Fatalf("tree-level hidden must propagate to anchors")
	}
}

func TestNeighborNavigation(t *testing.T) {
	tr := newTestTree()
	first := tr.SetRoot()
	tr.Resize(0, 0, 200, 200)
	tr.SplitActive(Vertical)

	if got := tr.MoveActive(DirLeft); got != first {
		t.Fatalf("moving left should land on the first anchor")
	}
	below := tr.SplitActive(Horizontal)
	if got := tr.MoveActive(DirUp); got != first {
		t.Fatalf("moving up should land on the first anchor")
	}
	if got := tr.MoveActive(DirDown); got != below {
		t.Fatalf("moving down should land on the split-off anchor")
	}
}
