// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: portal/interfaces.go
// Summary: Collaborator contracts the portal depends on.
// Usage: Implemented by the layout engine (Anchor), terminal surfaces (Surface)
// and the desktop engine (Window, Overlay). The portal holds only non-owning
// references; every contract carries an explicit Alive() liveness query so
// staleness can be discovered lazily instead of through finalizers.

package portal

// Anchor is a transient layout-tree placeholder marking where a hosted
// surface should appear. The layout engine creates, destroys and repositions
// anchors constantly; the portal never owns one.
type Anchor interface {
	// AnchorID returns the anchor's identity handle.
	AnchorID() AnchorID

	// Alive reports whether the anchor still exists in its layout tree.
	Alive() bool

	// Window returns the window the anchor is currently attached to.
	// ok is false while the anchor is detached (e.g. mid-restructure).
	Window() (w Window, ok bool)

	// BoundsInWindow returns the anchor's bounds in the shared window
	// coordinate space. ok is false when bounds cannot be resolved.
	BoundsInWindow() (r Rect, ok bool)

	// EffectivelyHidden reports whether the anchor or any ancestor in its
	// containment chain is hidden.
	EffectivelyHidden() bool

	// Under reports whether the anchor is still a descendant of the given
	// content root.
	Under(root RootID) bool
}

// Surface is the persistent rendering resource hosted by the portal. It
// survives layout churn; the portal positions it but never destroys it.
type Surface interface {
	// SurfaceID returns the surface's identity handle.
	SurfaceID() SurfaceID

	// Alive reports whether the resource behind the handle still exists.
	Alive() bool

	// SetFrame applies an overlay-local frame. Reparenting and frame writes
	// must preserve the surface's internal state.
	SetFrame(r Rect)

	// SetHidden toggles physical visibility without detaching.
	SetHidden(hidden bool)

	// NotifyResized tells the resource its size changed. A frame write alone
	// does not reliably trigger the resource's internal relayout.
	NotifyResized()
}

// Overlay is the persistent container a host parents surfaces into. It keeps
// an explicit stacking order, bottom to top.
type Overlay interface {
	// Bounds returns the overlay's bounds in window coordinates.
	Bounds() Rect

	// Contains reports whether the surface is currently a child.
	Contains(id SurfaceID) bool

	// Add appends the surface as the topmost child. Adding an existing child
	// is a no-op.
	Add(s Surface)

	// Remove detaches the surface from the overlay if present.
	Remove(id SurfaceID)

	// RaiseToTop moves an existing child to the top of the stacking order.
	RaiseToTop(id SurfaceID)

	// Stacking returns the current children, bottom to top.
	Stacking() []Surface
}

// Window is the host window-system contract: stable identity, a content
// container the overlay installs above, a one-tick task queue, and liveness.
type Window interface {
	// WindowID returns the window's identity handle.
	WindowID() WindowID

	// Alive reports whether the window still exists.
	Alive() bool

	// ContentRootID returns the identity of the window's current content
	// container. ok is false when the window has no content yet or is being
	// torn down.
	ContentRootID() (root RootID, ok bool)

	// InstallOverlay mounts (or re-mounts) the portal overlay directly above
	// the given content root and returns it. Idempotent for the same root.
	InstallOverlay(above RootID) Overlay

	// Defer schedules fn on the window's serial UI task queue, to run one
	// scheduling tick later.
	Defer(fn func())
}
