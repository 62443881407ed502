// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/workspace.go
// Summary: Workspace (tab): one tiling layout tree plus the apps hosted in
// its panes.
// Usage: Structural operations go through here; the portal keeps the
// surfaces attached across the anchor churn they produce.

package mux

import (
	"log"

	"github.com/pweiskircher/cmux/layout"
	"github.com/pweiskircher/cmux/portal"
)

// Workspace is a single tab with its own tiling layout. Splitting, closing
// and remounting recreate anchors freely; apps survive on the portal side.
type Workspace struct {
	id      int
	win     *Window
	tree    *layout.Tree
	factory AppFactory
	hidden  bool

	apps     map[portal.SurfaceID]SurfaceApp
	byAnchor map[portal.AnchorID]portal.SurfaceID
	anchors  map[portal.SurfaceID]*layout.Anchor
}

func newWorkspace(win *Window, id int, factory AppFactory) *Workspace {
	ws := &Workspace{
		id:       id,
		win:      win,
		factory:  factory,
		apps:     make(map[portal.SurfaceID]SurfaceApp),
		byAnchor: make(map[portal.AnchorID]portal.SurfaceID),
		anchors:  make(map[portal.SurfaceID]*layout.Anchor),
	}
	ws.tree = layout.NewTree(win, win.root)
	ws.tree.OnAnchorMoved = func(a *layout.Anchor) {
		win.desktop.registry.Synchronize(a)
	}
	return ws
}

// ID returns the workspace number.
func (ws *Workspace) ID() int { return ws.id }

// Tree exposes the layout tree for navigation.
func (ws *Workspace) Tree() *layout.Tree { return ws.tree }

// ensureRoot spawns the first pane once the workspace has dimensions.
func (ws *Workspace) ensureRoot() {
	if ws.tree.ActiveAnchor() != nil {
		return
	}
	ws.resize()
	anchor := ws.tree.SetRoot()
	ws.spawnAt(anchor)
}

// Split creates a new pane next to the active one and spawns an app in it.
func (ws *Workspace) Split(dir layout.SplitType) {
	anchor := ws.tree.SplitActive(dir)
	if anchor == nil {
		return
	}
	ws.spawnAt(anchor)
	ws.win.desktop.dispatcher.Broadcast(Event{Type: EventTreeChanged})
}

// CloseActive closes the active pane, stopping its app. The last pane of
// the workspace is kept.
func (ws *Workspace) CloseActive() {
	anchor := ws.tree.ActiveAnchor()
	if anchor == nil {
		return
	}
	sid, ok := ws.byAnchor[anchor.AnchorID()]
	if !ok {
		return
	}
	if ws.tree.CloseActiveLeaf() == anchor {
		// root leaf, refused
		return
	}
	app := ws.apps[sid]
	ws.forget(sid, anchor.AnchorID())
	if app != nil {
		ws.win.desktop.registry.Detach(app)
		app.Stop()
	}
	ws.win.desktop.dispatcher.Broadcast(Event{Type: EventTreeChanged})
}

// RemountActive recreates the active pane's anchor with a fresh identity and
// rebinds the app to it. The app's surface must not flicker or restack.
func (ws *Workspace) RemountActive() {
	old := ws.tree.ActiveAnchor()
	if old == nil {
		return
	}
	sid, ok := ws.byAnchor[old.AnchorID()]
	if !ok {
		return
	}
	app := ws.apps[sid]
	// Pre-declare visibility before the fresh anchor exists, then swap.
	ws.win.desktop.registry.SetVisibilityOnly(app, !ws.hidden)
	fresh := ws.tree.RemountActive()
	if fresh == nil {
		return
	}
	delete(ws.byAnchor, old.AnchorID())
	ws.byAnchor[fresh.AnchorID()] = sid
	ws.anchors[sid] = fresh
	ws.win.desktop.registry.Bind(app, fresh, !ws.hidden, ws.win.desktop.paneZ)
}

// FocusDirection moves pane focus.
func (ws *Workspace) FocusDirection(d layout.Direction) {
	ws.tree.MoveActive(d)
	ws.win.desktop.dispatcher.Broadcast(Event{Type: EventSurfaceFocused, Payload: ws.ActiveApp()})
}

// FocusSurface gives focus to the pane hosting the surface, e.g. after a
// portal hit test resolved a mouse click.
func (ws *Workspace) FocusSurface(sid portal.SurfaceID) {
	if a, ok := ws.anchors[sid]; ok {
		ws.tree.SetActive(a)
		ws.win.desktop.dispatcher.Broadcast(Event{Type: EventSurfaceFocused, Payload: ws.ActiveApp()})
	}
}

// ActiveApp returns the app in the focused pane.
func (ws *Workspace) ActiveApp() SurfaceApp {
	anchor := ws.tree.ActiveAnchor()
	if anchor == nil {
		return nil
	}
	sid, ok := ws.byAnchor[anchor.AnchorID()]
	if !ok {
		return nil
	}
	return ws.apps[sid]
}

// removeActiveKeepApp takes the active app out of the workspace without
// stopping it, for migration to another window. The vacated slot is
// refilled with a fresh app when it was the last pane.
func (ws *Workspace) removeActiveKeepApp() (SurfaceApp, bool) {
	anchor := ws.tree.ActiveAnchor()
	if anchor == nil {
		return nil, false
	}
	sid, ok := ws.byAnchor[anchor.AnchorID()]
	if !ok {
		return nil, false
	}
	app := ws.apps[sid]
	ws.forget(sid, anchor.AnchorID())

	if ws.tree.CloseActiveLeaf() == anchor {
		// Last pane: replace the tree root and spawn a fresh shell.
		root := ws.tree.SetRoot()
		ws.spawnAt(root)
	}
	return app, true
}

// Adopt hosts an app migrated from another window in a new pane.
func (ws *Workspace) Adopt(app SurfaceApp) {
	anchor := ws.tree.SplitActive(layout.Vertical)
	if anchor == nil {
		ws.resize()
		anchor = ws.tree.SetRoot()
	}
	sid := app.SurfaceID()
	ws.apps[sid] = app
	ws.byAnchor[anchor.AnchorID()] = sid
	ws.anchors[sid] = anchor
	ws.win.desktop.registry.Bind(app, anchor, !ws.hidden, ws.win.desktop.paneZ)
	log.Printf("Workspace %d: adopted surface %s", ws.id, sid)
}

// setHidden flips the workspace between foreground and background and lets
// the portal resynchronize every affected anchor.
func (ws *Workspace) setHidden(hidden bool) {
	ws.hidden = hidden
	ws.tree.SetHidden(hidden)
	for _, a := range ws.tree.Anchors() {
		ws.win.desktop.registry.Synchronize(a)
	}
}

func (ws *Workspace) resize() {
	b := ws.win.Bounds()
	ws.tree.Resize(0, 0, b.W, b.H)
}

func (ws *Workspace) spawnAt(anchor *layout.Anchor) {
	app := ws.factory()
	sid := app.SurfaceID()
	ws.apps[sid] = app
	ws.byAnchor[anchor.AnchorID()] = sid
	ws.anchors[sid] = anchor
	app.SetRefreshNotifier(ws.win.desktop.refreshChan)
	go func() {
		if err := app.Run(); err != nil {
			log.Printf("Workspace %d: app %q exited: %v", ws.id, app.Title(), err)
		}
	}()
	ws.win.desktop.registry.Bind(app, anchor, !ws.hidden, ws.win.desktop.paneZ)
}

func (ws *Workspace) forget(sid portal.SurfaceID, aid portal.AnchorID) {
	delete(ws.apps, sid)
	delete(ws.byAnchor, aid)
	delete(ws.anchors, sid)
}

// stopAll stops every app, for window teardown. Portal detachment happens
// through the registry's window-close path.
func (ws *Workspace) stopAll() {
	for sid, app := range ws.apps {
		app.Stop()
		delete(ws.apps, sid)
	}
	ws.byAnchor = make(map[portal.AnchorID]portal.SurfaceID)
	ws.anchors = make(map[portal.SurfaceID]*layout.Anchor)
}
