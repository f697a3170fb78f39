// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/paths.go
// Summary: Path helpers for spacepatch state and configuration.

package config

import (
	"os"
	"path/filepath"
)

const configName = "config.toml"

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spacepatch"
	}
	return filepath.Join(home, ".spacepatch")
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(defaultRoot(), configName)
}
