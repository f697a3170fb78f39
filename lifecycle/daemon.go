// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: lifecycle/daemon.go
// Summary: Fork, probe and stop the spacepatch daemon process.

package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// State is what the pid file plus a health probe say about the daemon.
type State int

const (
	StateUnknown      State = iota
	StateStopped            // no pid file, or recorded process gone and file cleaned
	StateRunning            // process exists and answers health checks
	StateUnresponsive       // process exists but does not answer
	StateStale              // pid file names a process that no longer exists
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateUnresponsive:
		return "unresponsive"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// StartOptions configures the forked daemon process.
type StartOptions struct {
	ConfigPath string // passed through as --config when non-empty
	LogFile    string // destination for the child's stdout/stderr
}

// Manager owns one daemon process: it can fork it, classify its state
// and take it down.
type Manager struct {
	pidFile *PIDFile
	socket  string
	health  HealthChecker
}

func NewManager(pidFile *PIDFile, controlSocket string, health HealthChecker) *Manager {
	return &Manager{pidFile: pidFile, socket: controlSocket, health: health}
}

// State classifies the daemon using the pid file and a short health probe.
func (m *Manager) State(ctx context.Context) (State, error) {
	if !m.pidFile.Exists() {
		return StateStopped, nil
	}
	if !m.pidFile.Running() {
		return StateStale, nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.health.Check(probeCtx, m.socket); err != nil {
		return StateUnresponsive, nil
	}
	return StateRunning, nil
}

// PID returns the recorded process id, or 0 when there is none.
func (m *Manager) PID() int {
	pid, err := m.pidFile.Read()
	if err != nil {
		return 0
	}
	return pid
}

// Start forks the current executable as `spacepatch run` in its own
// session and records the child's pid. The log file handle is inherited
// by the child and intentionally left open here.
func (m *Manager) Start(ctx context.Context, opts StartOptions) error {
	if m.pidFile.Running() {
		return fmt.Errorf("daemon already running (pid %d)", m.PID())
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := []string{"run"}
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}

	var logFile *os.File
	if opts.LogFile != "" {
		logFile, err = os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("fork daemon: %w", err)
	}

	pid := cmd.Process.Pid
	if err := m.pidFile.Write(pid); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("record pid: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release daemon process: %w", err)
	}
	return nil
}

// Stop takes the daemon down: SIGTERM, then up to five seconds of
// polling, then SIGKILL. The pid file is removed in every exit path
// that leaves no process behind.
func (m *Manager) Stop(ctx context.Context) error {
	pid, err := m.pidFile.Read()
	if err != nil {
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		m.pidFile.Remove()
		return nil
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		m.pidFile.Remove()
		return nil
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			_ = process.Kill()
			m.pidFile.Remove()
			return ctx.Err()
		default:
		}
		if err := process.Signal(syscall.Signal(0)); err != nil {
			m.pidFile.Remove()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = process.Kill()
	m.pidFile.Remove()
	return nil
}

// Restart is a best-effort Stop followed by Start. The pause lets the
// old process release its sockets.
func (m *Manager) Restart(ctx context.Context, opts StartOptions) error {
	_ = m.Stop(ctx)
	time.Sleep(200 * time.Millisecond)
	return m.Start(ctx, opts)
}
