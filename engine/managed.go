// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: engine/managed.go
// Summary: Local mirror of the windows spacepatch handed back to the manager.

package engine

import (
	"errors"
	"sort"
	"sync"

	"github.com/spacepatch/spacepatch/wm"
)

var (
	ErrNotManaged = errors.New("engine: window not managed")
)

// ManagedEntry pairs a window with the view it was registered under.
type ManagedEntry struct {
	Window wm.WindowID
	View   wm.ViewHandle
}

// ManagedSet tracks which windows this daemon re-registered with the
// manager, and under which view. It mirrors manager state so status
// queries never have to ask the manager.
type ManagedSet struct {
	mu    sync.RWMutex
	views map[wm.WindowID]wm.ViewHandle
}

func NewManagedSet() *ManagedSet {
	return &ManagedSet{views: make(map[wm.WindowID]wm.ViewHandle)}
}

// Register records the window under view, replacing any earlier entry.
func (m *ManagedSet) Register(id wm.WindowID, view wm.ViewHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[id] = view
}

func (m *ManagedSet) Lookup(id wm.WindowID) (wm.ViewHandle, error) {
	m.mu.RLock()
	view, ok := m.views[id]
	m.mu.RUnlock()
	if !ok {
		return 0, ErrNotManaged
	}
	return view, nil
}

// Remove drops the window, typically when the manager reports it
// destroyed.
func (m *ManagedSet) Remove(id wm.WindowID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, id)
}

func (m *ManagedSet) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.views)
}

// Snapshot returns the managed windows ordered by window id.
func (m *ManagedSet) Snapshot() []ManagedEntry {
	m.mu.RLock()
	out := make([]ManagedEntry, 0, len(m.views))
	for id, view := range m.views {
		out = append(out, ManagedEntry{Window: id, View: view})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Window < out[j].Window })
	return out
}
