// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/desktop_test.go
// Summary: Engine tests: window/workspace lifecycle, portal-driven
// geometry, migration and input routing.
// Usage: Test-only.

package mux

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/pweiskircher/cmux/config"
	"github.com/pweiskircher/cmux/layout"
	"github.com/pweiskircher/cmux/portal"
)

// screenRow reads one row of the simulation screen as a string.
func screenRow(sim tcell.SimulationScreen, row int) string {
	cells, w, _ := sim.GetContents()
	var sb strings.Builder
	for x := 0; x < w; x++ {
		c := cells[row*w+x]
		if len(c.Runes) > 0 {
			sb.WriteRune(c.Runes[0])
		}
	}
	return sb.String()
}

func TestNewWindowSpawnsRootPane(t *testing.T) {
	d, rec := newTestDesktop(t)
	win := d.NewWindow("main")
	settle(d)

	if len(rec.apps) != 1 {
		t.Fatalf("expected 1 spawned app, got %d", len(rec.apps))
	}
	app := rec.apps[0]
	if !app.frameSet {
		t.Fatalf("root pane app never got a frame")
	}
	want := portal.Rect{X: 0, Y: 0, W: 80, H: 23}
	if app.frame != want {
		t.Fatalf("root pane frame = %+v, want %+v", app.frame, want)
	}
	if app.hidden {
		t.Fatalf("root pane app should be visible")
	}
	host, ok := d.registry.Host(win.id)
	if !ok || !host.Tracks(app.SurfaceID()) {
		t.Fatalf("portal host does not track the root pane surface")
	}
}

func TestSplitPartitionsWidth(t *testing.T) {
	d, _ := newTestDesktop(t)
	d.NewWindow("main")
	settle(d)
	ws := d.ActiveWindow().ActiveWorkspace()

	ws.Split(layout.Vertical)
	settle(d)

	left := ws.Tree().FindLeafAt(1, 1)
	right := ws.Tree().FindLeafAt(79, 1)
	if left == nil || right == nil || left == right {
		t.Fatalf("expected two distinct panes after split")
	}
	lb, _ := left.BoundsInWindow()
	rb, _ := right.BoundsInWindow()
	if lb.W != 40 || rb.W != 40 || rb.X != 40 {
		t.Fatalf("split bounds wrong: left=%+v right=%+v", lb, rb)
	}
}

func TestCloseActiveStopsAppAndReclaimsSpace(t *testing.T) {
	d, rec := newTestDesktop(t)
	win := d.NewWindow("main")
	settle(d)
	ws := win.ActiveWorkspace()

	ws.Split(layout.Vertical)
	settle(d)
	first, second := rec.apps[0], rec.apps[1]

	ws.CloseActive()
	settle(d)

	if !second.stopped {
		t.Fatalf("closed pane's app still running")
	}
	if first.stopped {
		t.Fatalf("surviving pane's app was stopped")
	}
	host, _ := d.registry.Host(win.id)
	if host.Tracks(second.SurfaceID()) {
		t.Fatalf("portal still tracks the closed surface")
	}
	if first.frame.W != 80 {
		t.Fatalf("surviving pane not resized to full width, frame=%+v", first.frame)
	}
}

func TestCloseLastPaneRefused(t *testing.T) {
	d, rec := newTestDesktop(t)
	d.NewWindow("main")
	settle(d)

	d.ActiveWindow().ActiveWorkspace().CloseActive()
	settle(d)

	if rec.apps[0].stopped {
		t.Fatalf("last pane must not be closable")
	}
}

func TestWorkspaceSwitchHidesAndRestores(t *testing.T) {
	d, rec := newTestDesktop(t)
	d.NewWindow("main")
	settle(d)
	first := rec.apps[0]

	d.SwitchToWorkspace(2)
	settle(d)
	if len(rec.apps) != 2 {
		t.Fatalf("expected workspace 2 to spawn an app, got %d apps", len(rec.apps))
	}
	second := rec.apps[1]
	if !first.hidden {
		t.Fatalf("background workspace surface still visible")
	}
	if second.hidden {
		t.Fatalf("foreground workspace surface hidden")
	}

	d.SwitchToWorkspace(1)
	settle(d)
	if first.hidden {
		t.Fatalf("surface not restored after switching back")
	}
	if !second.hidden {
		t.Fatalf("background surface not hidden after switching back")
	}
}

func TestRemountKeepsSurfaceAttached(t *testing.T) {
	d, rec := newTestDesktop(t)
	win := d.NewWindow("main")
	settle(d)
	app := rec.apps[0]
	frameBefore := app.frame

	win.ActiveWorkspace().RemountActive()
	settle(d)

	if app.hidden {
		t.Fatalf("surface hidden across a remount")
	}
	if app.frame != frameBefore {
		t.Fatalf("frame moved across remount: %+v -> %+v", frameBefore, app.frame)
	}
	host, _ := d.registry.Host(win.id)
	if !host.Tracks(app.SurfaceID()) {
		t.Fatalf("portal lost the surface across remount")
	}
}

func TestMigrateActiveMovesAppToNewWindow(t *testing.T) {
	d, rec := newTestDesktop(t)
	first := d.NewWindow("main")
	settle(d)
	app := rec.apps[0]

	d.MigrateActive()
	settle(d)

	if app.stopped {
		t.Fatalf("migrated app was stopped")
	}
	target := d.ActiveWindow()
	if target == first {
		t.Fatalf("migration did not create and activate a second window")
	}
	newHost, _ := d.registry.Host(target.id)
	if newHost == nil || !newHost.Tracks(app.SurfaceID()) {
		t.Fatalf("target window's host does not track the migrated surface")
	}
	oldHost, _ := d.registry.Host(first.id)
	if oldHost != nil && oldHost.Tracks(app.SurfaceID()) {
		t.Fatalf("source window's host still tracks the migrated surface")
	}
	if app.hidden {
		t.Fatalf("migrated surface should be visible in the target window")
	}
	// The vacated last pane was refilled with a fresh shell.
	if len(first.ActiveWorkspace().apps) != 1 {
		t.Fatalf("source workspace not refilled after migrating its only pane")
	}
}

func TestCloseWindowTearsDownHost(t *testing.T) {
	d, rec := newTestDesktop(t)
	first := d.NewWindow("main")
	second := d.NewWindow("other")
	settle(d)

	d.CloseWindow(second)
	settle(d)

	for _, app := range rec.apps {
		if _, tracked := first.ActiveWorkspace().apps[app.SurfaceID()]; tracked {
			continue
		}
		if !app.stopped {
			t.Fatalf("app %q of closed window still running", app.Title())
		}
	}
	if _, ok := d.registry.Host(second.id); ok {
		t.Fatalf("registry still holds a host for the closed window")
	}
	if d.ActiveWindow() != first {
		t.Fatalf("focus did not fall back to the remaining window")
	}
}

func TestMouseClickFocusesPane(t *testing.T) {
	d, rec := newTestDesktop(t)
	d.NewWindow("main")
	settle(d)
	ws := d.ActiveWindow().ActiveWorkspace()
	ws.Split(layout.Vertical)
	settle(d)

	// The fresh pane has focus; click into the original left pane.
	if ws.ActiveApp() == rec.apps[0] {
		t.Fatalf("precondition: new pane should hold focus after split")
	}
	d.handleMouse(tcell.NewEventMouse(5, 5, tcell.Button1, 0))
	if ws.ActiveApp() != rec.apps[0] {
		t.Fatalf("click did not focus the left pane")
	}
}

func TestControlModeSplitAndKeyForwarding(t *testing.T) {
	d, rec := newTestDesktop(t)
	d.NewWindow("main")
	settle(d)

	d.handleKey(tcell.NewEventKey(tcell.KeyCtrlA, 0, tcell.ModCtrl))
	d.handleKey(tcell.NewEventKey(tcell.KeyRune, '|', tcell.ModNone))
	settle(d)
	if len(rec.apps) != 2 {
		t.Fatalf("prefix split did not spawn a second pane")
	}
	if d.inControlMode {
		t.Fatalf("control mode should drop after one command")
	}

	active := d.ActiveWindow().ActiveWorkspace().ActiveApp().(*fakeApp)
	d.handleKey(tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone))
	if len(active.keys) != 1 || active.keys[0].Rune() != 'z' {
		t.Fatalf("plain key not forwarded to the focused app")
	}
}

func TestDrawCompositesSurfaces(t *testing.T) {
	d, rec := newTestDesktop(t)
	d.NewWindow("main")
	settle(d)
	rec.apps[0].fill = 'A'

	d.draw()

	sim := d.screen.(tcell.SimulationScreen)
	cells, _, _ := sim.GetContents()
	if cells[0].Runes[0] != 'A' {
		t.Fatalf("composited cell = %q, want 'A'", cells[0].Runes[0])
	}
}

func TestRebuildContentKeepsSurfacesAttached(t *testing.T) {
	d, rec := newTestDesktop(t)
	win := d.NewWindow("main")
	settle(d)
	app := rec.apps[0]

	win.RebuildContent()
	settle(d)

	if app.hidden {
		t.Fatalf("surface hidden after content rebuild")
	}
	host, _ := d.registry.Host(win.id)
	if !host.Tracks(app.SurfaceID()) {
		t.Fatalf("portal lost the surface across the rebuild")
	}
	if _, ok := d.registry.HitTest(1, 1, win.id); !ok {
		t.Fatalf("hit test broken after overlay reinstall")
	}
}

func TestStatusBarConsumesStateUpdates(t *testing.T) {
	d, _ := newTestDesktop(t)
	d.NewWindow("main")
	settle(d)

	d.dispatcher.Broadcast(Event{Type: EventStateUpdate, Payload: StatePayload{
		WorkspaceID:   7,
		ActiveTitle:   "remote",
		InControlMode: true,
	}})
	d.draw()

	row := screenRow(d.screen.(tcell.SimulationScreen), 23)
	if !strings.Contains(row, "[7] remote") {
		t.Fatalf("status row = %q, want workspace and title from the event", row)
	}
	if !strings.Contains(row, "CTRL") {
		t.Fatalf("status row = %q, want control mode indicator", row)
	}
}

func TestStatusBarTracksControlMode(t *testing.T) {
	d, _ := newTestDesktop(t)
	d.NewWindow("main")
	settle(d)

	d.handleKey(tcell.NewEventKey(tcell.KeyCtrlA, 0, tcell.ModCtrl))
	d.broadcastState()
	d.draw()
	if !strings.Contains(screenRow(d.screen.(tcell.SimulationScreen), 23), "CTRL") {
		t.Fatalf("entering control mode not reflected on the status bar")
	}

	d.handleKey(tcell.NewEventKey(tcell.KeyRune, 'l', tcell.ModNone))
	d.broadcastState()
	d.draw()
	row := screenRow(d.screen.(tcell.SimulationScreen), 23)
	if strings.Contains(row, "CTRL") {
		t.Fatalf("status row = %q, control mode indicator should drop", row)
	}
	if !strings.Contains(row, "[1]") {
		t.Fatalf("status row = %q, want workspace number", row)
	}
}

func TestPaneZPriorityFromConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	config.SetSystem(config.Config{"zorder": map[string]interface{}{"pane": 3}})
	t.Cleanup(func() { config.SetSystem(make(config.Config)) })

	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("sim screen init: %v", err)
	}
	sim.SetSize(80, 24)
	rec := &spawnRecorder{}
	d := NewDesktopForScreen(sim, rec.factory)
	t.Cleanup(d.Close)

	if d.paneZ != 3 {
		t.Fatalf("paneZ = %d, want the configured zorder.pane", d.paneZ)
	}
}
