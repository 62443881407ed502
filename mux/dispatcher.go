// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: mux/dispatcher.go
// Summary: Event dispatcher for desktop-level notifications.
// Usage: Components subscribe to hear about tree changes, focus moves and
// window teardown without coupling to the desktop engine.

package mux

import (
	"sync"

	"github.com/pweiskircher/cmux/portal"
)

// EventType defines the type of an event.
type EventType int

const (
	// EventTreeChanged fires after a structural layout change.
	EventTreeChanged EventType = iota
	// EventSurfaceFocused fires when a hosted surface takes focus.
	EventSurfaceFocused
	// EventWindowClosed fires after a window's portal host is torn down.
	EventWindowClosed
	// EventStateUpdate carries the desktop status snapshot.
	EventStateUpdate
)

// Event is a message passed through the system with an arbitrary payload.
type Event struct {
	Type    EventType
	Payload interface{}
}

// StatePayload is the data associated with an EventStateUpdate.
type StatePayload struct {
	WindowID      portal.WindowID
	WorkspaceID   int
	ActiveTitle   string
	InControlMode bool
}

// Listener is implemented by any component that wants events.
type Listener interface {
	OnEvent(event Event)
}

// EventDispatcher manages a list of listeners and broadcasts events to them.
type EventDispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewEventDispatcher creates a new dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{listeners: make([]Listener, 0)}
}

// Subscribe adds a new listener to receive events.
func (d *EventDispatcher) Subscribe(listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener)
}

// Unsubscribe removes a listener.
func (d *EventDispatcher) Unsubscribe(listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listeners {
		if l == listener {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			break
		}
	}
}

// Broadcast sends an event to all subscribed listeners.
func (d *EventDispatcher) Broadcast(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, l := range d.listeners {
		l.OnEvent(event)
	}
}
