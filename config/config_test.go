// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvTargetApp, "")
	t.Setenv(EnvWMSocket, "")
	t.Setenv(EnvControlSocket, "")
	t.Setenv(EnvJournalPath, "")
}

func TestMissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.App != defaultTargetApp {
		t.Fatalf("Target.App = %q, want default", cfg.Target.App)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path == "" {
		t.Fatalf("journal defaults: %+v", cfg.Journal)
	}
	if cfg.Monitor.RefreshMS != defaultRefreshMS {
		t.Fatalf("Monitor.RefreshMS = %d", cfg.Monitor.RefreshMS)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[target]
app = "org.chromium.Chromium"

[monitor]
refresh_ms = 250
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.App != "org.chromium.Chromium" {
		t.Fatalf("Target.App = %q", cfg.Target.App)
	}
	if cfg.Monitor.RefreshMS != 250 {
		t.Fatalf("Monitor.RefreshMS = %d", cfg.Monitor.RefreshMS)
	}
	// Untouched sections keep their defaults.
	if cfg.WM.Socket != defaultWMSocket {
		t.Fatalf("WM.Socket = %q, want default", cfg.WM.Socket)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[target]
app = "org.chromium.Chromium"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvTargetApp, "org.mozilla.firefox")
	t.Setenv(EnvControlSocket, "/tmp/spacepatch-test.sock")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.App != "org.mozilla.firefox" {
		t.Fatalf("Target.App = %q, env should win", cfg.Target.App)
	}
	if cfg.Daemon.ControlSocket != "/tmp/spacepatch-test.sock" {
		t.Fatalf("ControlSocket = %q", cfg.Daemon.ControlSocket)
	}
}

func TestJournalEnvEnablesJournal(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	journalPath := filepath.Join(t.TempDir(), "corrections.db")
	t.Setenv(EnvJournalPath, journalPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path != journalPath {
		t.Fatalf("journal: %+v", cfg.Journal)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty target app", func(c *Config) { c.Target.App = "" }},
		{"empty wm socket", func(c *Config) { c.WM.Socket = "" }},
		{"empty control socket", func(c *Config) { c.Daemon.ControlSocket = "" }},
		{"journal enabled without path", func(c *Config) { c.Journal.Path = "" }},
		{"zero refresh", func(c *Config) { c.Monitor.RefreshMS = 0 }},
		{"negative refresh", func(c *Config) { c.Monitor.RefreshMS = -1 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted bad config", tc.name)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	want := Default()
	want.Target.App = "org.chromium.Chromium"
	want.Monitor.RefreshMS = 100
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Target.App != want.Target.App {
		t.Fatalf("Target.App = %q, want %q", got.Target.App, want.Target.App)
	}
	if got.Monitor.RefreshMS != want.Monitor.RefreshMS {
		t.Fatalf("RefreshMS = %d, want %d", got.Monitor.RefreshMS, want.Monitor.RefreshMS)
	}
	if got.Daemon.PIDFile != want.Daemon.PIDFile {
		t.Fatalf("PIDFile = %q, want %q", got.Daemon.PIDFile, want.Daemon.PIDFile)
	}
}
