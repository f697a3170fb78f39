// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: fullscreen/tracker.go
// Summary: Bounded table of windows observed entering fullscreen.
// Notes: Eviction is strictly by insertion order. Entries are reused in
// place, so a window that re-enters fullscreen keeps its original slot
// and does not move to the back of the queue.

// Package fullscreen compensates for applications that misreport their
// window state around native fullscreen transitions. The Tracker
// remembers which windows recently entered fullscreen; the Corrector
// repairs them when they come back with stale flags.
package fullscreen

import (
	"sync"
	"time"

	"github.com/spacepatch/spacepatch/wm"
)

// Capacity is the fixed number of in-flight fullscreen transitions the
// tracker can hold. With more concurrent transitions than this, the
// oldest is overwritten and that window will not be repaired.
const Capacity = 10

type slot struct {
	window wm.WindowID
	space  wm.SpaceID
	at     time.Time
}

// Entry is a snapshot of one tracked transition. A Space of
// wm.SpaceNone means the transition has already been resolved.
type Entry struct {
	Window wm.WindowID
	Space  wm.SpaceID
	At     time.Time
}

// Tracker is a fixed-capacity table mapping windows to the space they
// were last seen on when they announced fullscreen. Insertion reuses
// the oldest slot once full. All methods are safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	slots [Capacity]slot
	next  int // slot the next new window lands in
	used  int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Record notes that window announced a fullscreen transition while on
// space. If the window is already tracked its slot is updated in place.
// Otherwise it takes the next free slot, or overwrites the oldest one
// when the table is full. When the overwritten slot still held an
// unresolved transition, Record returns the evicted window and true;
// reusing a resolved slot is not an eviction. Record never fails.
func (t *Tracker) Record(window wm.WindowID, space wm.SpaceID) (wm.WindowID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if i, ok := t.find(window); ok {
		t.slots[i].space = space
		t.slots[i].at = now
		return 0, false
	}

	var evicted wm.WindowID
	var hasEvicted bool
	if t.used == Capacity {
		if old := t.slots[t.next]; old.space != wm.SpaceNone {
			evicted = old.window
			hasEvicted = true
		}
	} else {
		t.used++
	}
	t.slots[t.next] = slot{window: window, space: space, at: now}
	t.next = (t.next + 1) % Capacity
	return evicted, hasEvicted
}

// Pending reports the space recorded for window, if the window has an
// unresolved transition. Resolved entries (space reset to wm.SpaceNone)
// do not count.
func (t *Tracker) Pending(window wm.WindowID) (wm.SpaceID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.find(window)
	if !ok || t.slots[i].space == wm.SpaceNone {
		return wm.SpaceNone, false
	}
	return t.slots[i].space, true
}

// Resolve marks the window's transition as handled by resetting its
// recorded space to wm.SpaceNone. The slot itself stays where it is and
// ages out through normal eviction. Reports whether an unresolved entry
// existed.
func (t *Tracker) Resolve(window wm.WindowID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolveLocked(window)
}

func (t *Tracker) resolveLocked(window wm.WindowID) bool {
	i, ok := t.find(window)
	if !ok || t.slots[i].space == wm.SpaceNone {
		return false
	}
	t.slots[i].space = wm.SpaceNone
	return true
}

// Len reports how many slots are occupied, resolved or not.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Snapshot returns the occupied slots oldest-first.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, t.used)
	start := 0
	if t.used == Capacity {
		start = t.next
	}
	for n := 0; n < t.used; n++ {
		s := t.slots[(start+n)%Capacity]
		out = append(out, Entry{Window: s.window, Space: s.space, At: s.at})
	}
	return out
}

// find returns the slot index holding window. Caller must hold t.mu.
func (t *Tracker) find(window wm.WindowID) (int, bool) {
	for i := 0; i < t.used; i++ {
		if t.slots[i].window == window {
			return i, true
		}
	}
	return 0, false
}
