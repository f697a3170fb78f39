// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/controller.go
// Summary: Interface the control socket uses to reach the running daemon.

package server

import "github.com/spacepatch/spacepatch/engine"

// Controller gives the control socket access to the daemon: snapshots
// for status replies, listener registration for streams, and shutdown.
type Controller interface {
	Status() engine.Status
	Connected() bool
	Subscribe(l engine.Listener)
	Unsubscribe(l engine.Listener)
	RequestShutdown()
}

// nopController answers with zero values when no controller is wired.
type nopController struct{}

func (nopController) Status() engine.Status       { return engine.Status{} }
func (nopController) Connected() bool             { return false }
func (nopController) Subscribe(engine.Listener)   {}
func (nopController) Unsubscribe(engine.Listener) {}
func (nopController) RequestShutdown()            {}
