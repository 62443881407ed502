// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: portal/handles.go
// Summary: Opaque identity handles for windows, anchors, surfaces and content roots.
// Usage: Handles are identity-equal tokens; liveness is a separate Alive() query.

package portal

import "github.com/google/uuid"

// WindowID identifies a top-level window.
type WindowID uuid.UUID

// AnchorID identifies a layout-tree placeholder. The layout engine may
// recreate an anchor at any time, so an AnchorID is only as durable as the
// anchor behind it.
type AnchorID uuid.UUID

// SurfaceID identifies a persistent hosted surface.
type SurfaceID uuid.UUID

// RootID identifies a window's content container. A window may swap its
// content container, in which case the old RootID stops matching.
type RootID uuid.UUID

// NewWindowID returns a fresh window handle.
func NewWindowID() WindowID { return WindowID(uuid.New()) }

// NewAnchorID returns a fresh anchor handle.
func NewAnchorID() AnchorID { return AnchorID(uuid.New()) }

// NewSurfaceID returns a fresh surface handle.
func NewSurfaceID() SurfaceID { return SurfaceID(uuid.New()) }

// NewRootID returns a fresh content-root handle.
func NewRootID() RootID { return RootID(uuid.New()) }

func (id WindowID) String() string  { return uuid.UUID(id).String() }
func (id AnchorID) String() string  { return uuid.UUID(id).String() }
func (id SurfaceID) String() string { return uuid.UUID(id).String() }
func (id RootID) String() string    { return uuid.UUID(id).String() }
