// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/stubs_test.go
// Summary: Fake surface app and desktop construction helpers for the engine
// tests.
// Usage: Test-only.

package mux

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/pweiskircher/cmux/config"
	"github.com/pweiskircher/cmux/portal"
)

// fakeApp is a minimal SurfaceApp. Run blocks until Stop.
type fakeApp struct {
	id      portal.SurfaceID
	name    string
	alive   bool
	stopped bool
	done    chan struct{}

	frame    portal.Rect
	frameSet bool
	hidden   bool

	resized int
	keys    []*tcell.EventKey
	refresh chan<- bool
	fill    rune
}

func newFakeApp(name string) *fakeApp {
	return &fakeApp{
		id:    portal.NewSurfaceID(),
		name:  name,
		alive: true,
		done:  make(chan struct{}),
		fill:  'x',
	}
}

func (f *fakeApp) SurfaceID() portal.SurfaceID { return f.id }
func (f *fakeApp) Alive() bool                 { return f.alive }
func (f *fakeApp) SetFrame(r portal.Rect)      { f.frame = r; f.frameSet = true }
func (f *fakeApp) SetHidden(h bool)            { f.hidden = h }
func (f *fakeApp) NotifyResized()              { f.resized++ }

func (f *fakeApp) Run() error {
	<-f.done
	return nil
}

func (f *fakeApp) Stop() {
	if f.stopped {
		return
	}
	f.stopped = true
	f.alive = false
	close(f.done)
}

func (f *fakeApp) Render() [][]Cell {
	if !f.frameSet {
		return nil
	}
	buf := NewBuffer(int(f.frame.W), int(f.frame.H), tcell.StyleDefault)
	for y := range buf {
		for x := range buf[y] {
			buf[y][x].Ch = f.fill
		}
	}
	return buf
}

func (f *fakeApp) Frame() (portal.Rect, bool)       { return f.frame, f.frameSet }
func (f *fakeApp) Title() string                    { return f.name }
func (f *fakeApp) HandleKey(ev *tcell.EventKey)     { f.keys = append(f.keys, ev) }
func (f *fakeApp) SetRefreshNotifier(c chan<- bool) { f.refresh = c }

// spawnRecorder hands out fakeApps and remembers them in spawn order.
type spawnRecorder struct {
	apps []*fakeApp
}

func (r *spawnRecorder) factory() SurfaceApp {
	app := newFakeApp("fake")
	r.apps = append(r.apps, app)
	return app
}

func newTestDesktop(t *testing.T) (*Desktop, *spawnRecorder) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := config.Reload(); err != nil {
		t.Fatalf("config reload: %v", err)
	}
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("sim screen init: %v", err)
	}
	sim.SetSize(80, 24)
	rec := &spawnRecorder{}
	d := NewDesktopForScreen(sim, rec.factory)
	t.Cleanup(d.Close)
	return d, rec
}

// settle runs deferred portal passes until the queue drains.
func settle(d *Desktop) {
	d.runPendingTasks()
}
