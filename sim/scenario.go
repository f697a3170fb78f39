// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: sim/scenario.go
// Summary: Scripted browser fullscreen round trip ending in the broken exit.

package sim

import (
	"time"

	"github.com/spacepatch/spacepatch/wm"
)

// Scenario scripts the fullscreen round trip of one browser window,
// ending in the broken exit state the daemon exists to repair.
type Scenario struct {
	Window          wm.WindowID
	App             string
	Home            wm.SpaceID // user space the window is tiled on
	FullscreenSpace wm.SpaceID
}

// DefaultScenario returns the canonical episode: a firefox window tiled
// on space 2, using space 7 for its fullscreen stint.
func DefaultScenario() Scenario {
	return Scenario{
		Window:          23,
		App:             "org.mozilla.firefox",
		Home:            2,
		FullscreenSpace: 7,
	}
}

// Seed creates the window in its normal tiled state.
func (s Scenario) Seed(w *WM) {
	w.MarkSpaceFullscreen(s.FullscreenSpace)
	w.AddWindow(s.Window, s.App, s.Home)
	w.EmitCreated(s.Window)
}

// AnnounceFullscreen emits the resized signal in which the window
// already reports fullscreen while the manager still has it on its
// user space. This is the moment the daemon records the transition.
func (s Scenario) AnnounceFullscreen(w *WM) {
	w.Update(s.Window, func(st *WindowState) { st.Fullscreen = true })
	w.EmitResized(s.Window)
}

// EnterFullscreenSpace migrates the window to its dedicated space.
func (s Scenario) EnterFullscreenSpace(w *WM) {
	w.Update(s.Window, func(st *WindowState) { st.Space = s.FullscreenSpace })
	w.EmitMoved(s.Window)
}

// BrokenExit returns the window to its user space carrying the state
// the browser leaves behind: no longer fullscreen, but pinned in place
// and dropped from management.
func (s Scenario) BrokenExit(w *WM) {
	w.Update(s.Window, func(st *WindowState) {
		st.Space = s.Home
		st.Fullscreen = false
		st.Movable = false
		st.Resizable = false
		st.Managed = false
	})
	w.EmitMoved(s.Window)
}

// Play runs the whole episode in order.
func (s Scenario) Play(w *WM) {
	s.Seed(w)
	s.AnnounceFullscreen(w)
	s.EnterFullscreenSpace(w)
	s.BrokenExit(w)
}

// Repaired reports whether the window state looks fully repaired:
// movable, resizable, managed, no fullscreen flag, back on its space.
func (s Scenario) Repaired(st WindowState) bool {
	return st.Movable && st.Resizable && st.Managed && !st.Fullscreen && st.Space == s.Home
}

// Await polls the window until it reaches the repaired state or the
// timeout passes.
func (s Scenario) Await(w *WM, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if st, ok := w.Window(s.Window); ok && s.Repaired(st) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
