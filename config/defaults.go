// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Built-in default values for the daemon configuration.

package config

import "path/filepath"

const (
	defaultTargetApp     = "org.mozilla.firefox"
	defaultWMSocket      = "/tmp/wm.sock"
	defaultControlSocket = "/tmp/spacepatch.sock"
	defaultRefreshMS     = 500
)

// Default returns the built-in configuration. State files live under
// ~/.spacepatch; sockets stay in /tmp so path length limits for Unix
// sockets are never a concern.
func Default() Config {
	root := defaultRoot()
	return Config{
		Target: TargetConfig{App: defaultTargetApp},
		WM:     WMConfig{Socket: defaultWMSocket},
		Daemon: DaemonConfig{
			ControlSocket: defaultControlSocket,
			PIDFile:       filepath.Join(root, "spacepatch.pid"),
			LogFile:       filepath.Join(root, "daemon.log"),
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(root, "journal.db"),
		},
		Monitor: MonitorConfig{RefreshMS: defaultRefreshMS},
	}
}
