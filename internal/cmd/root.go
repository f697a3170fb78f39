// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/root.go
// Summary: Root command and shared flags for the spacepatch CLI.

// Package cmd implements the spacepatch command line: the daemon entry
// point and the control commands that talk to it.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spacepatch/spacepatch/config"
)

var (
	flagConfig string
	flagSocket string
)

var rootCmd = &cobra.Command{
	Use:   "spacepatch",
	Short: "Repairs windows a browser breaks when leaving fullscreen",
	Long: `spacepatch watches window signals from a tiling window manager and
compensates for a browser quirk: after native fullscreen ends, the
window can come back reporting a stale state and ends up immovable,
non-resizable and dropped from tiling.

The daemon remembers which windows of the configured application entered
fullscreen from a user space. When such a window later shows the broken
exit state, spacepatch restores its flags, asks the manager for a fresh
placement on the window's space and re-registers it as managed.`,
}

// Execute runs the CLI. Cobra prints the error; the exit code is ours.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.spacepatch/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagSocket, "socket", "", "control socket path (overrides config)")
}

// loadConfig resolves the effective configuration for a command,
// applying the persistent flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if flagSocket != "" {
		cfg.Daemon.ControlSocket = flagSocket
	}
	return cfg, nil
}
