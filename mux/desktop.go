// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/desktop.go
// Summary: The desktop engine: serial UI loop, input handling, window
// lifecycle and compositing.
// Usage: Create with NewDesktop, add a window, call Run. Everything that
// touches windows, workspaces or the portal runs on the Run goroutine;
// other goroutines get in through Defer or the refresh channel.

package mux

import (
	"log"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pweiskircher/cmux/config"
	"github.com/pweiskircher/cmux/layout"
	"github.com/pweiskircher/cmux/portal"
)

const (
	keyControlMode = tcell.KeyCtrlA
	keyQuit        = tcell.KeyCtrlQ
)

// Desktop owns the terminal screen and drives the single UI goroutine. The
// portal registry lives here; hosts defer their coalesced passes onto the
// desktop's task queue.
type Desktop struct {
	screen     tcell.Screen
	registry   *portal.Registry
	dispatcher *EventDispatcher
	statusBar  *statusBar
	paneZ      int

	windows      map[portal.WindowID]*Window
	windowOrder  []portal.WindowID
	activeWindow *Window

	factory      AppFactory
	defaultStyle tcell.Style

	tasks       chan func()
	refreshChan chan bool
	quit        chan struct{}
	closeOnce   sync.Once

	inControlMode bool
}

// NewDesktop creates a desktop on the real terminal.
func NewDesktop(factory AppFactory) (*Desktop, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	d := NewDesktopForScreen(screen, factory)
	return d, nil
}

// NewDesktopForScreen creates a desktop on an existing screen, which the
// caller has already initialized. Simulation screens go through here.
func NewDesktopForScreen(screen tcell.Screen, factory AppFactory) *Desktop {
	defStyle := tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset)
	screen.SetStyle(defStyle)
	screen.HideCursor()

	d := &Desktop{
		screen:       screen,
		registry:     portal.NewRegistry(),
		dispatcher:   NewEventDispatcher(),
		statusBar:    newStatusBar(),
		paneZ:        config.System().GetInt("zorder", "pane", 0),
		windows:      make(map[portal.WindowID]*Window),
		factory:      factory,
		defaultStyle: defStyle,
		tasks:        make(chan func(), 128),
		refreshChan:  make(chan bool, 1),
		quit:         make(chan struct{}),
	}
	d.dispatcher.Subscribe(d.statusBar)
	return d
}

// Registry exposes the portal registry.
func (d *Desktop) Registry() *portal.Registry { return d.registry }

// Dispatcher exposes the desktop's event bus.
func (d *Desktop) Dispatcher() *EventDispatcher { return d.dispatcher }

// Defer schedules fn on the UI goroutine. Safe to call from the UI
// goroutine itself; fn runs on a later loop iteration.
func (d *Desktop) Defer(fn func()) {
	select {
	case d.tasks <- fn:
	case <-d.quit:
	}
}

// runPendingTasks drains the deferred task queue. Tasks scheduled while
// draining run in the same call.
func (d *Desktop) runPendingTasks() {
	for {
		select {
		case fn := <-d.tasks:
			fn()
		default:
			return
		}
	}
}

// NewWindow creates a window with a first workspace and makes it active.
func (d *Desktop) NewWindow(title string) *Window {
	w, h := d.screen.Size()
	win := newWindow(d, title, w, h-1)
	d.windows[win.id] = win
	d.windowOrder = append(d.windowOrder, win.id)

	ws := newWorkspace(win, 1, d.factory)
	win.workspaces[1] = ws
	win.active = ws
	ws.ensureRoot()

	d.activateWindow(win)
	return win
}

// CloseWindow tears a window down: apps stop, the portal host is destroyed
// and every surface record for the window is forgotten.
func (d *Desktop) CloseWindow(win *Window) {
	if _, ok := d.windows[win.id]; !ok {
		return
	}
	log.Printf("Desktop: closing window %s (%q)", win.id, win.title)
	for _, ws := range win.workspaces {
		ws.stopAll()
	}
	win.alive = false
	d.registry.WindowClosed(win.id)
	delete(d.windows, win.id)
	for i, id := range d.windowOrder {
		if id == win.id {
			d.windowOrder = append(d.windowOrder[:i], d.windowOrder[i+1:]...)
			break
		}
	}
	d.dispatcher.Broadcast(Event{Type: EventWindowClosed, Payload: win.id})

	if d.activeWindow == win {
		d.activeWindow = nil
		if len(d.windowOrder) > 0 {
			d.activateWindow(d.windows[d.windowOrder[len(d.windowOrder)-1]])
		}
	}
	if len(d.windows) == 0 {
		d.Close()
	}
}

// ActiveWindow returns the window currently on screen.
func (d *Desktop) ActiveWindow() *Window { return d.activeWindow }

// NextWindow cycles to the next window in creation order.
func (d *Desktop) NextWindow() {
	if len(d.windowOrder) < 2 || d.activeWindow == nil {
		return
	}
	for i, id := range d.windowOrder {
		if id == d.activeWindow.id {
			next := d.windowOrder[(i+1)%len(d.windowOrder)]
			d.activateWindow(d.windows[next])
			return
		}
	}
}

// activateWindow brings win to the foreground. Workspaces of the previous
// window go hidden so the portal pulls their surfaces off screen.
func (d *Desktop) activateWindow(win *Window) {
	if d.activeWindow == win {
		return
	}
	prev := d.activeWindow
	d.activeWindow = win
	if prev != nil {
		for _, ws := range prev.workspaces {
			ws.setHidden(true)
		}
	}
	w, h := d.screen.Size()
	win.SetSize(w, h-1)
	for _, ws := range win.workspaces {
		ws.setHidden(ws != win.active)
	}
	d.screen.Clear()
	d.broadcastState()
}

// SwitchToWorkspace switches the active window to workspace id, creating it
// on first use.
func (d *Desktop) SwitchToWorkspace(id int) {
	win := d.activeWindow
	if win == nil {
		return
	}
	if win.active != nil && win.active.id == id {
		return
	}
	ws, ok := win.workspaces[id]
	if !ok {
		ws = newWorkspace(win, id, d.factory)
		win.workspaces[id] = ws
	}
	prev := win.active
	win.active = ws
	if prev != nil {
		prev.setHidden(true)
	}
	ws.setHidden(false)
	ws.ensureRoot()
	d.screen.Clear()
	d.broadcastState()
}

// MigrateActive moves the focused app to the next window, creating one when
// this is the only window. The app keeps running throughout.
func (d *Desktop) MigrateActive() {
	win := d.activeWindow
	if win == nil || win.active == nil {
		return
	}
	app, ok := win.active.removeActiveKeepApp()
	if !ok || app == nil {
		return
	}
	target := d.nextWindowAfter(win)
	if target == nil {
		target = d.NewWindow("cmux")
	}
	target.ActiveWorkspace().Adopt(app)
	log.Printf("Desktop: migrated %q from window %s to %s", app.Title(), win.id, target.id)
	d.activateWindow(target)
	target.ActiveWorkspace().FocusSurface(app.SurfaceID())
}

func (d *Desktop) nextWindowAfter(win *Window) *Window {
	for i, id := range d.windowOrder {
		if id == win.id {
			next := d.windowOrder[(i+1)%len(d.windowOrder)]
			if next != win.id {
				return d.windows[next]
			}
			return nil
		}
	}
	return nil
}

// Run starts the main event loop. It returns when the desktop closes.
func (d *Desktop) Run() error {
	eventChan := make(chan tcell.Event, 10)
	go func() {
		for {
			select {
			case <-d.quit:
				return
			default:
				eventChan <- d.screen.PollEvent()
			}
		}
	}()

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev := <-eventChan:
			d.handleEvent(ev)
			d.runPendingTasks()
			d.broadcastState()
			d.draw()
		case fn := <-d.tasks:
			fn()
			d.runPendingTasks()
			d.draw()
		case <-d.refreshChan:
			d.broadcastState()
			d.draw()
		case <-ticker.C:
			d.draw()
		case <-d.quit:
			return nil
		}
	}
}

// Close shuts the desktop down exactly once.
func (d *Desktop) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		for _, win := range d.windows {
			for _, ws := range win.workspaces {
				ws.stopAll()
			}
			win.alive = false
		}
		if d.screen != nil {
			d.screen.Fini()
		}
	})
}

func (d *Desktop) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		w, h := ev.Size()
		d.screen.Clear()
		if d.activeWindow != nil {
			d.activeWindow.SetSize(w, h-1)
		}
	case *tcell.EventKey:
		d.handleKey(ev)
	case *tcell.EventMouse:
		d.handleMouse(ev)
	}
}

func (d *Desktop) handleKey(ev *tcell.EventKey) {
	if ev.Key() == keyQuit {
		d.Close()
		return
	}
	if ev.Key() == keyControlMode {
		d.inControlMode = !d.inControlMode
		return
	}
	if d.inControlMode {
		d.handleControlKey(ev)
		return
	}
	win := d.activeWindow
	if win == nil || win.active == nil {
		return
	}
	if app := win.active.ActiveApp(); app != nil {
		app.HandleKey(ev)
	}
}

// handleControlKey runs one prefix command, tmux style, then drops out of
// control mode.
func (d *Desktop) handleControlKey(ev *tcell.EventKey) {
	d.inControlMode = false
	win := d.activeWindow
	if win == nil || win.active == nil {
		return
	}
	ws := win.active

	switch ev.Key() {
	case tcell.KeyUp:
		ws.FocusDirection(layout.DirUp)
		return
	case tcell.KeyDown:
		ws.FocusDirection(layout.DirDown)
		return
	case tcell.KeyLeft:
		ws.FocusDirection(layout.DirLeft)
		return
	case tcell.KeyRight:
		ws.FocusDirection(layout.DirRight)
		return
	}

	switch r := ev.Rune(); r {
	case '|', '%':
		ws.Split(layout.Vertical)
	case '-', '"':
		ws.Split(layout.Horizontal)
	case 'h':
		ws.FocusDirection(layout.DirLeft)
	case 'j':
		ws.FocusDirection(layout.DirDown)
	case 'k':
		ws.FocusDirection(layout.DirUp)
	case 'l':
		ws.FocusDirection(layout.DirRight)
	case 'x':
		ws.CloseActive()
	case 'c':
		d.NewWindow("cmux")
	case 'n':
		d.NextWindow()
	case 'm':
		d.MigrateActive()
	case 'X':
		d.CloseWindow(win)
	default:
		if r >= '1' && r <= '9' {
			d.SwitchToWorkspace(int(r - '0'))
		}
	}
}

// handleMouse routes clicks through the portal's hit test, which respects
// stacking order and skips hidden surfaces.
func (d *Desktop) handleMouse(ev *tcell.EventMouse) {
	if ev.Buttons()&tcell.Button1 == 0 {
		return
	}
	win := d.activeWindow
	if win == nil || win.active == nil {
		return
	}
	x, y := ev.Position()
	surf, ok := d.registry.HitTest(float64(x), float64(y), win.id)
	if !ok {
		return
	}
	win.active.FocusSurface(surf.SurfaceID())
}

// draw composites the active window's surfaces in portal stacking order and
// renders the status bar.
func (d *Desktop) draw() {
	win := d.activeWindow
	if win == nil {
		return
	}
	w, h := d.screen.Size()
	if h < 2 {
		return
	}
	buf := NewBuffer(w, h-1, d.defaultStyle)

	if host, ok := d.registry.Host(win.id); ok {
		for _, surf := range host.Stacking() {
			app, ok := surf.(SurfaceApp)
			if !ok {
				continue
			}
			frame, ok := app.Frame()
			if !ok {
				continue
			}
			CompositeAt(buf, app.Render(), int(frame.X), int(frame.Y))
		}
	}

	for y := range buf {
		for x := range buf[y] {
			c := buf[y][x]
			ch := c.Ch
			if ch == 0 {
				ch = ' '
			}
			d.screen.SetContent(x, y, ch, nil, c.Style)
		}
	}
	d.statusBar.draw(d.screen, w, h-1, d.defaultStyle)
	d.screen.Show()
}

func (d *Desktop) broadcastState() {
	win := d.activeWindow
	if win == nil {
		return
	}
	payload := StatePayload{WindowID: win.id, InControlMode: d.inControlMode}
	if win.active != nil {
		payload.WorkspaceID = win.active.id
		payload.ActiveTitle = win.title
		if app := win.active.ActiveApp(); app != nil {
			payload.ActiveTitle = app.Title()
		}
	}
	d.dispatcher.Broadcast(Event{Type: EventStateUpdate, Payload: payload})
}
