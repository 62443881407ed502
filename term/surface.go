// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/surface.go
// Summary: PTY-backed terminal surface.
// Usage: Hosted by the desktop engine as a pane app. The portal moves and
// hides it; the shell process inside survives every reparenting.

package term

import (
	"bufio"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/gdamore/tcell/v2"

	"github.com/pweiskircher/cmux/mux"
	"github.com/pweiskircher/cmux/portal"
)

// Surface runs a shell in a PTY and renders it into a cell grid. Its
// identity and process state are independent of where the portal puts it.
type Surface struct {
	id      portal.SurfaceID
	command string
	history *History

	mu      sync.Mutex
	title   string
	cmd     *exec.Cmd
	pty     *os.File
	vt      *vterm
	alive   bool
	stopped bool

	frame    portal.Rect
	frameSet bool
	hidden   bool

	stop        chan struct{}
	refreshChan chan<- bool
	buf         [][]mux.Cell
}

// NewSurface creates a surface that will run command. history may be nil.
func NewSurface(title, command string, history *History) *Surface {
	return &Surface{
		id:      portal.NewSurfaceID(),
		command: command,
		history: history,
		title:   title,
		alive:   true,
		vt:      newVTerm(80, 24),
		stop:    make(chan struct{}),
	}
}

// NewShellFactory returns an app factory spawning command panes. Every
// surface shares the same history index.
func NewShellFactory(command string, history *History) mux.AppFactory {
	return func() mux.SurfaceApp {
		return NewSurface(command, command, history)
	}
}

func (s *Surface) SurfaceID() portal.SurfaceID { return s.id }

func (s *Surface) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// SetFrame records the frame the portal computed. Coordinates are local to
// the hosting overlay.
func (s *Surface) SetFrame(r portal.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = r
	s.frameSet = true
}

// SetHidden flips visibility. The process keeps running either way.
func (s *Surface) SetHidden(hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = hidden
}

// NotifyResized reflows the terminal to the current frame size.
func (s *Surface) NotifyResized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.frameSet {
		return
	}
	cols, rows := int(s.frame.W), int(s.frame.H)
	if cols <= 0 || rows <= 0 {
		return
	}
	s.vt.Resize(cols, rows)
	if s.pty != nil {
		pty.Setsize(s.pty, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	}
}

// Frame returns the last frame the portal applied.
func (s *Surface) Frame() (portal.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frameSet
}

// Hidden reports the portal-applied visibility.
func (s *Surface) Hidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}

func (s *Surface) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Surface) SetRefreshNotifier(ch chan<- bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshChan = ch
}

// Run starts the shell and consumes its output until it exits or Stop is
// called.
func (s *Surface) Run() error {
	s.mu.Lock()
	cols, rows := s.vt.Size()
	if s.frameSet {
		if c, r := int(s.frame.W), int(s.frame.H); c > 0 && r > 0 {
			cols, rows = c, r
			s.vt.Resize(cols, rows)
		}
	}
	cmd := exec.Command(s.command)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		s.alive = false
		s.mu.Unlock()
		log.Printf("Surface %s: start %q: %v", s.id, s.command, err)
		return err
	}
	s.cmd = cmd
	s.pty = ptmx
	s.vt.onTitle = func(title string) {
		s.title = title
		s.requestRefreshLocked()
	}
	if s.history != nil {
		s.vt.onLine = s.history.Append
	}
	s.mu.Unlock()

	go s.readLoop(ptmx)

	waitErr := cmd.Wait()
	s.mu.Lock()
	s.alive = false
	stopped := s.stopped
	s.requestRefreshLocked()
	s.mu.Unlock()
	if stopped {
		// Wait reports the SIGTERM we sent; not an error.
		return nil
	}
	return waitErr
}

func (s *Surface) readLoop(ptmx *os.File) {
	defer ptmx.Close()
	reader := bufio.NewReader(ptmx)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		r, _, err := reader.ReadRune()
		if err != nil {
			if err != io.EOF {
				log.Printf("Surface %s: pty read: %v", s.id, err)
			}
			return
		}
		s.mu.Lock()
		s.vt.Parse(r)
		s.requestRefreshLocked()
		s.mu.Unlock()
	}
}

// requestRefreshLocked asks the desktop for a redraw without blocking.
func (s *Surface) requestRefreshLocked() {
	if s.refreshChan == nil {
		return
	}
	select {
	case s.refreshChan <- true:
	default:
	}
}

// Stop terminates the shell process.
func (s *Surface) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.alive = false
	close(s.stop)
	pty, cmd := s.pty, s.cmd
	s.mu.Unlock()

	if pty != nil {
		pty.Close()
	}
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Render snapshots the grid, reversing the cursor cell.
func (s *Surface) Render() [][]mux.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()

	grid := s.vt.Grid()
	rows := len(grid)
	if rows == 0 {
		return nil
	}
	cols := len(grid[0])
	if len(s.buf) != rows || (rows > 0 && len(s.buf[0]) != cols) {
		s.buf = make([][]mux.Cell, rows)
		for y := range s.buf {
			s.buf[y] = make([]mux.Cell, cols)
		}
	}
	cx, cy := s.vt.Cursor()
	for y := 0; y < rows; y++ {
		copy(s.buf[y], grid[y])
		if y == cy && s.alive && cx < cols {
			s.buf[y][cx].Style = s.buf[y][cx].Style.Reverse(true)
		}
	}
	return s.buf
}

// HandleKey translates a tcell key event into the byte sequence the shell
// expects and writes it to the PTY.
func (s *Surface) HandleKey(ev *tcell.EventKey) {
	s.mu.Lock()
	ptmx := s.pty
	s.mu.Unlock()
	if ptmx == nil {
		return
	}

	var keyBytes []byte
	switch ev.Key() {
	case tcell.KeyUp:
		keyBytes = []byte("\x1b[A")
	case tcell.KeyDown:
		keyBytes = []byte("\x1b[B")
	case tcell.KeyRight:
		keyBytes = []byte("\x1b[C")
	case tcell.KeyLeft:
		keyBytes = []byte("\x1b[D")
	case tcell.KeyHome:
		keyBytes = []byte("\x1b[H")
	case tcell.KeyEnd:
		keyBytes = []byte("\x1b[F")
	case tcell.KeyInsert:
		keyBytes = []byte("\x1b[2~")
	case tcell.KeyDelete:
		keyBytes = []byte("\x1b[3~")
	case tcell.KeyPgUp:
		keyBytes = []byte("\x1b[5~")
	case tcell.KeyPgDn:
		keyBytes = []byte("\x1b[6~")
	case tcell.KeyEnter:
		keyBytes = []byte("\r")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		keyBytes = []byte{0x7f}
	case tcell.KeyTab:
		keyBytes = []byte("\t")
	case tcell.KeyEsc:
		keyBytes = []byte("\x1b")
	default:
		keyBytes = []byte(string(ev.Rune()))
	}
	ptmx.Write(keyBytes)
}
