// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/wm.go
// Summary: Core identifiers and event types shared with the window manager.

// Package wm defines the vocabulary spacepatch shares with the tiling
// window manager: window and space identifiers, window signals, and the
// narrow interfaces through which corrections are applied.
package wm

import "fmt"

// WindowID identifies a window within the window manager.
type WindowID uint32

// SpaceID identifies a virtual desktop. SpaceNone is the sentinel for
// "no space recorded".
type SpaceID uint32

// SpaceNone is the reserved null space identifier.
const SpaceNone SpaceID = 0

// ViewHandle is an opaque reference to a tiling placement computed by
// the window manager. Handles are only meaningful to the manager that
// issued them.
type ViewHandle uint64

// EventKind discriminates window signals delivered by the manager.
type EventKind uint8

const (
	EventWindowCreated EventKind = iota
	EventWindowDestroyed
	EventWindowResized
	EventWindowMoved
	EventWindowFocused
	EventSpaceChanged
)

func (k EventKind) String() string {
	switch k {
	case EventWindowCreated:
		return "window_created"
	case EventWindowDestroyed:
		return "window_destroyed"
	case EventWindowResized:
		return "window_resized"
	case EventWindowMoved:
		return "window_moved"
	case EventWindowFocused:
		return "window_focused"
	case EventSpaceChanged:
		return "space_changed"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one window signal as reported by the manager. Space is the
// space the manager currently associates with the window, and
// SpaceFullscreen tells whether that space is a fullscreen-dedicated
// one. The remaining flags mirror the manager's cached view of the
// window, which after a fullscreen exit may lag behind reality.
type Event struct {
	Kind            EventKind
	Window          WindowID
	Space           SpaceID
	SpaceFullscreen bool
	Fullscreen      bool
	Movable         bool
	Resizable       bool
	Managed         bool
	App             string
}
