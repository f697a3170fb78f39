// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/start.go
// Summary: Starts the daemon in the background, restarting it if unhealthy.

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacepatch/spacepatch/lifecycle"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	Long: `Starts the spacepatch daemon detached from the terminal. If a daemon
is already running and healthy this is a no-op; an unresponsive daemon
is restarted and a stale pid file is cleaned up.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := lifecycle.NewPIDFile(cfg.Daemon.PIDFile)
	health := lifecycle.NewProtocolChecker(2 * time.Second)
	manager := lifecycle.NewManager(pidFile, cfg.Daemon.ControlSocket, health)
	sup := lifecycle.NewSupervisor(manager, health, pidFile, lifecycle.DefaultSupervisorConfig())

	result, err := sup.EnsureRunning(cmd.Context(), lifecycle.StartOptions{
		ConfigPath: flagConfig,
		LogFile:    cfg.Daemon.LogFile,
	})
	if err != nil {
		return err
	}

	switch {
	case result.WasRestarted:
		fmt.Printf("Daemon restarted (pid %d)\n", result.PID)
	case result.WasStarted:
		fmt.Printf("Daemon started (pid %d), logging to %s\n", result.PID, cfg.Daemon.LogFile)
	default:
		fmt.Printf("Daemon already running (pid %d)\n", result.PID)
	}
	return nil
}
