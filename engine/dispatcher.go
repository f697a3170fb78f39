// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: engine/dispatcher.go
// Summary: Fan-out of correction events to interested components.
// Usage: The journal writer, the log observer and control-socket streams
// subscribe here.

package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/spacepatch/spacepatch/wm"
)

// CorrectionType defines the type of a correction event.
type CorrectionType int

const (
	// CorrectionTracked: a window announced fullscreen and was recorded.
	CorrectionTracked CorrectionType = iota
	// CorrectionEvicted: a tracked window was overwritten to make room.
	CorrectionEvicted
	// CorrectionRepaired: a window was fully repaired after a broken exit.
	CorrectionRepaired
	// CorrectionDeferred: a repair attempt failed and will be retried.
	CorrectionDeferred
)

func (t CorrectionType) String() string {
	switch t {
	case CorrectionTracked:
		return "tracked"
	case CorrectionEvicted:
		return "evicted"
	case CorrectionRepaired:
		return "repaired"
	case CorrectionDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("correction(%d)", int(t))
	}
}

// CorrectionEvent describes one step the engine took for a window.
type CorrectionEvent struct {
	Type   CorrectionType
	Window wm.WindowID
	Space  wm.SpaceID
	App    string
	Detail string
	At     time.Time
}

// Listener is implemented by any component that wants correction events.
type Listener interface {
	// OnCorrection is the callback method for receiving events.
	OnCorrection(event CorrectionEvent)
}

// Dispatcher manages a list of listeners and broadcasts correction
// events to them.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		listeners: make([]Listener, 0),
	}
}

// Subscribe adds a new listener to receive events.
func (d *Dispatcher) Subscribe(listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener)
}

// Unsubscribe removes a listener.
func (d *Dispatcher) Unsubscribe(listener Listener) {
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
func (d *Dispatcher) Broadcast(event CorrectionEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, l := range d.listeners {
		l.OnCorrection(event)
	}
}
