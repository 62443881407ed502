// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: portal/stubs_test.go
// Summary: In-memory window/anchor/surface stubs for portal tests.

package portal

type stubOverlay struct {
	bounds Rect
	stack  []Surface
}

func newStubOverlay(w, h float64) *stubOverlay {
	return &stubOverlay{bounds: Rect{W: w, H: h}}
}

func (o *stubOverlay) Bounds() Rect { return o.bounds }

func (o *stubOverlay) Contains(id SurfaceID) bool {
	for _, s := range o.stack {
		if s.SurfaceID() == id {
			return true
		}
	}
	return false
}

func (o *stubOverlay) Add(s Surface) {
	if o.Contains(s.SurfaceID()) {
		return
	}
	o.stack = append(o.stack, s)
}

func (o *stubOverlay) Remove(id SurfaceID) {
	for i, s := range o.stack {
		if s.SurfaceID() == id {
			o.stack = append(o.stack[:i], o.stack[i+1:]...)
			return
		}
	}
}

func (o *stubOverlay) RaiseToTop(id SurfaceID) {
	for i, s := range o.stack {
		if s.SurfaceID() == id {
			o.stack = append(o.stack[:i], o.stack[i+1:]...)
			o.stack = append(o.stack, s)
			return
		}
	}
}

func (o *stubOverlay) Stacking() []Surface {
	out := make([]Surface, len(o.stack))
	copy(out, o.stack)
	return out
}

type stubWindow struct {
	id       WindowID
	alive    bool
	root     RootID
	hasRoot  bool
	overlay  *stubOverlay
	tasks    []func()
	installs int
}

func newStubWindow(w, h float64) *stubWindow {
	return &stubWindow{
		id:      NewWindowID(),
		alive:   true,
		root:    NewRootID(),
		hasRoot: true,
		overlay: newStubOverlay(w, h),
	}
}

func (w *stubWindow) WindowID() WindowID { return w.id }
func (w *stubWindow) Alive() bool        { return w.alive }

func (w *stubWindow) ContentRootID() (RootID, bool) {
	if !w.hasRoot {
		return RootID{}, false
	}
	return w.root, true
}

func (w *stubWindow) InstallOverlay(above RootID) Overlay {
	w.installs++
	return w.overlay
}

func (w *stubWindow) Defer(fn func()) {
	w.tasks = append(w.tasks, fn)
}

// pump runs the deferred task queue to exhaustion, one tick per task.
func (w *stubWindow) pump() {
	for len(w.tasks) > 0 {
		fn := w.tasks[0]
		w.tasks = w.tasks[1:]
		fn()
	}
}

// swapContentRoot simulates the window replacing its content container.
func (w *stubWindow) swapContentRoot() {
	w.root = NewRootID()
	w.overlay = newStubOverlay(w.overlay.bounds.W, w.overlay.bounds.H)
}

type stubAnchor struct {
	id               AnchorID
	alive            bool
	win              *stubWindow // nil while detached
	bounds           Rect
	hasBounds        bool
	hidden           bool
	detachedFromRoot bool
}

func newStubAnchor(win *stubWindow, bounds Rect) *stubAnchor {
	return &stubAnchor{
		id:        NewAnchorID(),
		alive:     true,
		win:       win,
		bounds:    bounds,
		hasBounds: true,
	}
}

func (a *stubAnchor) AnchorID() AnchorID { return a.id }
func (a *stubAnchor) Alive() bool        { return a.alive }

func (a *stubAnchor) Window() (Window, bool) {
	if a.win == nil {
		return nil, false
	}
	return a.win, true
}

func (a *stubAnchor) BoundsInWindow() (Rect, bool) {
	if !a.hasBounds {
		return Rect{}, false
	}
	return a.bounds, true
}

func (a *stubAnchor) EffectivelyHidden() bool { return a.hidden }

func (a *stubAnchor) Under(root RootID) bool {
	if a.detachedFromRoot || a.win == nil {
		return false
	}
	return a.win.root == root
}

type stubSurface struct {
	id    SurfaceID
	alive bool

	frame      Rect
	frameSet   int
	hidden     bool
	hiddenSet  int
	resized    int
	onSetFrame func(Rect)
}

func newStubSurface() *stubSurface {
	return &stubSurface{id: NewSurfaceID(), alive: true}
}

func (s *stubSurface) SurfaceID() SurfaceID { return s.id }
func (s *stubSurface) Alive() bool          { return s.alive }

func (s *stubSurface) SetFrame(r Rect) {
	s.frame = r
	s.frameSet++
	if s.onSetFrame != nil {
		s.onSetFrame(r)
	}
}

func (s *stubSurface) SetHidden(hidden bool) {
	s.hidden = hidden
	s.hiddenSet++
}

func (s *stubSurface) NotifyResized() { s.resized++ }
