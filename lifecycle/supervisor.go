// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: lifecycle/supervisor.go
// Summary: Brings the daemon to a healthy running state.

package lifecycle

import (
	"context"
	"fmt"
	"time"
)

// StartResult reports what EnsureRunning had to do.
type StartResult struct {
	WasStarted    bool // daemon was not running and got started
	WasRestarted  bool // daemon was unresponsive and got replaced
	PreviousState State
	CurrentState  State
	PID           int
}

// Supervisor drives the Manager until the daemon answers health checks.
type Supervisor struct {
	manager       *Manager
	health        HealthChecker
	pidFile       *PIDFile
	startupWait   time.Duration
	healthTimeout time.Duration
}

// SupervisorConfig tunes how long EnsureRunning is willing to wait.
type SupervisorConfig struct {
	StartupWait   time.Duration
	HealthTimeout time.Duration
}

func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		StartupWait:   5 * time.Second,
		HealthTimeout: 2 * time.Second,
	}
}

func NewSupervisor(manager *Manager, health HealthChecker, pidFile *PIDFile, cfg SupervisorConfig) *Supervisor {
	if cfg.StartupWait == 0 {
		cfg.StartupWait = 5 * time.Second
	}
	if cfg.HealthTimeout == 0 {
		cfg.HealthTimeout = 2 * time.Second
	}
	return &Supervisor{
		manager:       manager,
		health:        health,
		pidFile:       pidFile,
		startupWait:   cfg.StartupWait,
		healthTimeout: cfg.HealthTimeout,
	}
}

// EnsureRunning leaves the daemon running and healthy, starting or
// restarting it as the current state demands.
func (s *Supervisor) EnsureRunning(ctx context.Context, opts StartOptions) (*StartResult, error) {
	result := &StartResult{}

	state, err := s.manager.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("get daemon state: %w", err)
	}
	result.PreviousState = state

	switch state {
	case StateRunning:
		result.CurrentState = StateRunning
		result.PID = s.manager.PID()
		return result, nil

	case StateUnresponsive:
		fmt.Printf("Daemon is unresponsive (pid %d), restarting...\n", s.manager.PID())
		if err := s.manager.Restart(ctx, opts); err != nil {
			return nil, fmt.Errorf("restart unresponsive daemon: %w", err)
		}
		result.WasRestarted = true
		result.WasStarted = true

	case StateStale:
		fmt.Println("Cleaning up stale pid file...")
		s.pidFile.Remove()
		fallthrough

	case StateStopped, StateUnknown:
		fmt.Println("Starting spacepatch daemon...")
		if err := s.manager.Start(ctx, opts); err != nil {
			return nil, fmt.Errorf("start daemon: %w", err)
		}
		result.WasStarted = true
	}

	if err := s.waitForHealthy(ctx); err != nil {
		return nil, fmt.Errorf("daemon failed to become healthy: %w", err)
	}

	result.CurrentState = StateRunning
	result.PID = s.manager.PID()
	return result, nil
}

func (s *Supervisor) waitForHealthy(ctx context.Context) error {
	deadline := time.Now().Add(s.startupWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		probeCtx, cancel := context.WithTimeout(ctx, s.healthTimeout)
		err := s.health.Check(probeCtx, s.manager.socket)
		cancel()
		if err == nil {
			return nil
		}

		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for daemon on %s", s.manager.socket)
}

// State reports the daemon's current state.
func (s *Supervisor) State(ctx context.Context) (State, error) {
	return s.manager.State(ctx)
}

// Stop takes the daemon down via the manager.
func (s *Supervisor) Stop(ctx context.Context) error {
	return s.manager.Stop(ctx)
}
