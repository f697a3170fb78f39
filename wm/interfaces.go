// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/interfaces.go
// Summary: Interfaces through which window repairs reach the manager.

package wm

// Classifier decides whether a window belongs to the application being
// compensated for.
type Classifier interface {
	IsTargetWindow(id WindowID) bool
}

// FlagOps mutates the manager's cached capability flags for a window.
// All three are plain attribute writes and must not block on the
// manager's layout machinery.
type FlagOps interface {
	SetMovable(id WindowID) error
	SetResizable(id WindowID) error
	ClearFullscreen(id WindowID) error
}

// Placer asks the tiling engine for a placement of the window on the
// given space. This can take arbitrarily long; callers must not hold
// locks across it.
type Placer interface {
	PlaceOnSpace(id WindowID, space SpaceID) (ViewHandle, error)
}

// Registry re-inserts a repaired window into the manager's managed set
// under the placement it was given.
type Registry interface {
	RegisterManaged(id WindowID, view ViewHandle) error
}
