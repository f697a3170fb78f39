// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: engine/engine.go
// Summary: Event loop tying window signals to the fullscreen corrector.
// Usage: The daemon runs exactly one Engine over the manager connection.
// Notes: Signals are handled strictly in delivery order on one goroutine;
// status queries and listeners run concurrently against the snapshots.

// Package engine consumes window signals from the manager connection and
// drives the fullscreen exit correction for the targeted application.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spacepatch/spacepatch/fullscreen"
	"github.com/spacepatch/spacepatch/wm"
)

// Config carries the engine's operating parameters.
type Config struct {
	// TargetApp is the application identifier whose windows are
	// compensated for, e.g. "org.mozilla.firefox".
	TargetApp string
}

// Status is a point-in-time snapshot for the control socket.
type Status struct {
	RunID     string
	TargetApp string
	StartedAt time.Time
	Events    uint64
	Tracked   uint64
	Repaired  uint64
	Deferred  uint64
	Evicted   uint64
	Pending   []fullscreen.Entry
	Managed   []ManagedEntry
}

type counters struct {
	events   atomic.Uint64
	tracked  atomic.Uint64
	repaired atomic.Uint64
	deferred atomic.Uint64
	evicted  atomic.Uint64
}

// Engine owns the tracker, the corrector and the window/application map.
// It classifies every signal, feeds qualifying ones to the corrector and
// broadcasts the resulting correction events.
type Engine struct {
	cfg        Config
	runID      string
	startedAt  time.Time
	tracker    *fullscreen.Tracker
	corrector  *fullscreen.Corrector
	dispatcher *Dispatcher
	managed    *ManagedSet

	appsMu sync.RWMutex
	apps   map[wm.WindowID]string

	stats counters
}

var _ wm.Classifier = (*Engine)(nil)

// New builds an engine around the given manager-facing operations.
// remote is the manager's registry; the engine mirrors successful
// registrations locally. A nil remote keeps only the mirror, which is
// useful in tests.
func New(cfg Config, ops wm.FlagOps, placer wm.Placer, remote wm.Registry) *Engine {
	e := &Engine{
		cfg:        cfg,
		runID:      uuid.NewString(),
		startedAt:  time.Now(),
		tracker:    fullscreen.NewTracker(),
		dispatcher: NewDispatcher(),
		managed:    NewManagedSet(),
		apps:       make(map[wm.WindowID]string),
	}
	registry := &managedRegistry{remote: remote, local: e.managed}
	e.corrector = fullscreen.NewCorrector(e.tracker, ops, placer, registry)
	return e
}

// RunID identifies this daemon run in the journal and in status replies.
func (e *Engine) RunID() string { return e.runID }

// Subscribe registers a listener for correction events.
func (e *Engine) Subscribe(l Listener) { e.dispatcher.Subscribe(l) }

// Unsubscribe removes a previously registered listener.
func (e *Engine) Unsubscribe(l Listener) { e.dispatcher.Unsubscribe(l) }

// Run consumes signals until the channel closes or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, events <-chan wm.Event) error {
	log.Printf("Engine: run %s targeting %q", e.runID, e.cfg.TargetApp)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				log.Printf("Engine: signal source closed")
				return nil
			}
			e.Handle(ev)
		}
	}
}

// Handle processes one window signal. Exported so tests and embedders
// can drive the engine without a live socket.
func (e *Engine) Handle(ev wm.Event) {
	e.stats.events.Add(1)
	e.noteApp(ev)

	switch ev.Kind {
	case wm.EventWindowResized:
		e.handleResized(ev)
	case wm.EventWindowMoved:
		e.handleMoved(ev)
	case wm.EventWindowDestroyed:
		e.forget(ev.Window)
	}
}

// IsTargetWindow reports whether the window belongs to the targeted
// application, based on the application identifiers seen in signals.
func (e *Engine) IsTargetWindow(id wm.WindowID) bool {
	e.appsMu.RLock()
	app := e.apps[id]
	e.appsMu.RUnlock()
	return app != "" && app == e.cfg.TargetApp
}

// Status snapshots the engine for the control socket.
func (e *Engine) Status() Status {
	return Status{
		RunID:     e.runID,
		TargetApp: e.cfg.TargetApp,
		StartedAt: e.startedAt,
		Events:    e.stats.events.Load(),
		Tracked:   e.stats.tracked.Load(),
		Repaired:  e.stats.repaired.Load(),
		Deferred:  e.stats.deferred.Load(),
		Evicted:   e.stats.evicted.Load(),
		Pending:   e.tracker.Snapshot(),
		Managed:   e.managed.Snapshot(),
	}
}

// handleResized watches for the fullscreen announcement that precedes
// the actual space migration: the window reports fullscreen while the
// manager still has it on a user space.
func (e *Engine) handleResized(ev wm.Event) {
	if !e.IsTargetWindow(ev.Window) {
		return
	}
	if !ev.Fullscreen || ev.SpaceFullscreen || ev.Space == wm.SpaceNone {
		return
	}

	evicted, dropped := e.tracker.Record(ev.Window, ev.Space)
	e.stats.tracked.Add(1)
	log.Printf("Engine: tracking fullscreen entry of window %d on space %d", ev.Window, ev.Space)
	if dropped {
		e.stats.evicted.Add(1)
		log.Printf("Engine: evicted window %d from the transition table", evicted)
		e.dispatcher.Broadcast(CorrectionEvent{
			Type:   CorrectionEvicted,
			Window: evicted,
			App:    e.appOf(evicted),
			Detail: fmt.Sprintf("slot reused for window %d", ev.Window),
			At:     time.Now(),
		})
	}
	e.dispatcher.Broadcast(CorrectionEvent{
		Type:   CorrectionTracked,
		Window: ev.Window,
		Space:  ev.Space,
		App:    e.appOf(ev.Window),
		At:     time.Now(),
	})
}

// handleMoved hands qualifying moved signals to the corrector.
func (e *Engine) handleMoved(ev wm.Event) {
	if !e.IsTargetWindow(ev.Window) {
		return
	}

	outcome, err := e.corrector.OnWindowMoved(ev.Window, ev.Space, !ev.SpaceFullscreen, ev.Fullscreen, ev.Managed)
	switch outcome {
	case fullscreen.OutcomeRepaired:
		e.stats.repaired.Add(1)
		detail := ""
		if view, err := e.managed.Lookup(ev.Window); err == nil {
			detail = fmt.Sprintf("view %d", view)
		}
		e.dispatcher.Broadcast(CorrectionEvent{
			Type:   CorrectionRepaired,
			Window: ev.Window,
			Space:  ev.Space,
			App:    e.appOf(ev.Window),
			Detail: detail,
			At:     time.Now(),
		})
	case fullscreen.OutcomeDeferred:
		e.stats.deferred.Add(1)
		log.Printf("Engine: repair deferred for window %d: %v", ev.Window, err)
		e.dispatcher.Broadcast(CorrectionEvent{
			Type:   CorrectionDeferred,
			Window: ev.Window,
			Space:  ev.Space,
			App:    e.appOf(ev.Window),
			Detail: err.Error(),
			At:     time.Now(),
		})
	}
}

func (e *Engine) noteApp(ev wm.Event) {
	if ev.App == "" {
		return
	}
	e.appsMu.Lock()
	e.apps[ev.Window] = ev.App
	e.appsMu.Unlock()
}

func (e *Engine) appOf(id wm.WindowID) string {
	e.appsMu.RLock()
	defer e.appsMu.RUnlock()
	return e.apps[id]
}

func (e *Engine) forget(id wm.WindowID) {
	e.appsMu.Lock()
	delete(e.apps, id)
	e.appsMu.Unlock()
	e.managed.Remove(id)
}

// managedRegistry forwards registrations to the manager and mirrors the
// ones that succeed.
type managedRegistry struct {
	remote wm.Registry
	local  *ManagedSet
}

var _ wm.Registry = (*managedRegistry)(nil)

func (r *managedRegistry) RegisterManaged(id wm.WindowID, view wm.ViewHandle) error {
	if r.remote != nil {
		if err := r.remote.RegisterManaged(id, view); err != nil {
			return err
		}
	}
	r.local.Register(id, view)
	return nil
}
