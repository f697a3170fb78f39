// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: lifecycle/pidfile.go
// Summary: PID file handling for the spacepatch daemon.

// Package lifecycle starts, stops and supervises the background daemon:
// pid file bookkeeping, health probes against the control socket, and the
// fork-and-detach dance for `spacepatch start`.
package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile records the daemon's process id on disk so later invocations
// can find, probe or stop it.
type PIDFile struct {
	path string
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

func (p *PIDFile) Path() string {
	return p.path
}

// Write stores pid, creating parent directories as needed.
func (p *PIDFile) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	content := fmt.Sprintf("%d\n", pid)
	if err := os.WriteFile(p.path, []byte(content), 0600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Read returns the stored pid, or an error when the file is missing or
// does not hold a positive integer.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", p.path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d in %s", pid, p.path)
	}
	return pid, nil
}

// Remove deletes the pid file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	err := os.Remove(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (p *PIDFile) Exists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// Running reports whether the recorded process still exists. Signal 0
// probes without delivering anything; it works on Linux and macOS.
func (p *PIDFile) Running() bool {
	pid, err := p.Read()
	if err != nil {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
