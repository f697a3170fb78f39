// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: Daemon configuration: TOML file, built-in defaults, env overrides.

// Package config loads the daemon configuration. Values resolve in three
// layers: built-in defaults, then the TOML file, then SPACEPATCH_* environment
// variables. A missing file is not an error; the defaults stand alone.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables recognised by Load. Each overrides the matching
// file setting when non-empty.
const (
	EnvTargetApp     = "SPACEPATCH_TARGET_APP"
	EnvWMSocket      = "SPACEPATCH_WM_SOCKET"
	EnvControlSocket = "SPACEPATCH_CONTROL_SOCKET"
	EnvJournalPath   = "SPACEPATCH_JOURNAL"
)

// Config is the full daemon configuration.
type Config struct {
	Target  TargetConfig  `toml:"target"`
	WM      WMConfig      `toml:"wm"`
	Daemon  DaemonConfig  `toml:"daemon"`
	Journal JournalConfig `toml:"journal"`
	Monitor MonitorConfig `toml:"monitor"`
}

// TargetConfig names the application whose windows get corrected.
type TargetConfig struct {
	App string `toml:"app"`
}

// WMConfig locates the window manager's command socket.
type WMConfig struct {
	Socket string `toml:"socket"`
}

// DaemonConfig holds the daemon's own runtime paths.
type DaemonConfig struct {
	ControlSocket string `toml:"control_socket"`
	PIDFile       string `toml:"pid_file"`
	LogFile       string `toml:"log_file"`
}

// JournalConfig controls the on-disk correction journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// MonitorConfig tunes the live status view.
type MonitorConfig struct {
	RefreshMS int `toml:"refresh_ms"`
}

// Interval returns the monitor refresh period.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.RefreshMS) * time.Millisecond
}

// Load reads the configuration at path, which may be empty to mean the
// default location. The file is optional; environment overrides are
// applied after it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvTargetApp); v != "" {
		cfg.Target.App = v
	}
	if v := os.Getenv(EnvWMSocket); v != "" {
		cfg.WM.Socket = v
	}
	if v := os.Getenv(EnvControlSocket); v != "" {
		cfg.Daemon.ControlSocket = v
	}
	if v := os.Getenv(EnvJournalPath); v != "" {
		cfg.Journal.Path = v
		cfg.Journal.Enabled = true
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Target.App == "" {
		return fmt.Errorf("config: target.app must not be empty")
	}
	if c.WM.Socket == "" {
		return fmt.Errorf("config: wm.socket must not be empty")
	}
	if c.Daemon.ControlSocket == "" {
		return fmt.Errorf("config: daemon.control_socket must not be empty")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("config: journal.path is required when the journal is enabled")
	}
	if c.Monitor.RefreshMS <= 0 {
		return fmt.Errorf("config: monitor.refresh_ms must be positive, got %d", c.Monitor.RefreshMS)
	}
	return nil
}

// Save writes cfg to path as TOML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
