// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: fullscreen/corrector.go
// Summary: Repairs windows that exit fullscreen with stale manager state.
// Notes: The tracker lock is held across the predicate and the flag
// writes, released around placement, and re-taken only to resolve the
// entry. Placement can block on the tiling engine.

package fullscreen

import (
	"fmt"
	"log"

	"github.com/spacepatch/spacepatch/wm"
)

// Outcome classifies what a moved signal led to.
type Outcome int

const (
	// OutcomeNone: the signal did not match the broken exit state.
	OutcomeNone Outcome = iota
	// OutcomeRepaired: the window was repaired and re-registered.
	OutcomeRepaired
	// OutcomeDeferred: repair was attempted but a manager call failed.
	// The tracked entry is kept so the next moved signal retries.
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeRepaired:
		return "repaired"
	case OutcomeDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Corrector watches moved signals for windows the Tracker flagged and
// walks them through the repair sequence: restore movable and resizable,
// clear the stale fullscreen flag, re-place on the current space, and
// hand the window back to the manager's managed set.
type Corrector struct {
	tracker  *Tracker
	ops      wm.FlagOps
	placer   wm.Placer
	registry wm.Registry
}

func NewCorrector(tracker *Tracker, ops wm.FlagOps, placer wm.Placer, registry wm.Registry) *Corrector {
	return &Corrector{
		tracker:  tracker,
		ops:      ops,
		placer:   placer,
		registry: registry,
	}
}

// OnWindowMoved inspects one moved signal for a window of the targeted
// application. space is the space the manager now associates with the
// window; the boolean flags are the manager's cached state from the
// same signal.
//
// The repair runs only when every part of the broken exit signature
// holds: back on a user space, no longer reporting fullscreen, dropped
// from the managed set, and flagged by the tracker. A window the
// manager still considers managed is never touched.
//
// Errors from the manager abort the sequence without resolving the
// tracker entry, so a later moved signal for the same window retries.
// Flag writes that already happened are not rolled back; they are
// idempotent and the retry repeats them.
func (c *Corrector) OnWindowMoved(window wm.WindowID, space wm.SpaceID, onUserSpace, fullscreenReported, managed bool) (Outcome, error) {
	if !onUserSpace || fullscreenReported || managed {
		return OutcomeNone, nil
	}

	t := c.tracker
	t.mu.Lock()
	i, ok := t.find(window)
	if !ok || t.slots[i].space == wm.SpaceNone {
		t.mu.Unlock()
		return OutcomeNone, nil
	}
	recorded := t.slots[i].space

	if err := c.ops.SetMovable(window); err != nil {
		t.mu.Unlock()
		return OutcomeDeferred, fmt.Errorf("set movable on window %d: %w", window, err)
	}
	if err := c.ops.SetResizable(window); err != nil {
		t.mu.Unlock()
		return OutcomeDeferred, fmt.Errorf("set resizable on window %d: %w", window, err)
	}
	if err := c.ops.ClearFullscreen(window); err != nil {
		t.mu.Unlock()
		return OutcomeDeferred, fmt.Errorf("clear fullscreen on window %d: %w", window, err)
	}
	t.mu.Unlock()

	// Placement is delegated to the tiling engine and may block; the
	// tracker stays usable for other windows meanwhile.
	view, err := c.placer.PlaceOnSpace(window, space)
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("place window %d on space %d: %w", window, space, err)
	}
	if err := c.registry.RegisterManaged(window, view); err != nil {
		return OutcomeDeferred, fmt.Errorf("register window %d: %w", window, err)
	}

	t.mu.Lock()
	t.resolveLocked(window)
	t.mu.Unlock()

	log.Printf("Corrector: repaired window %d on space %d (entered fullscreen from space %d, view %d)", window, space, recorded, view)
	return OutcomeRepaired, nil
}
