// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/stop.go
// Summary: Asks the daemon to shut down, escalating to signals if it must.

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacepatch/spacepatch/lifecycle"
	"github.com/spacepatch/spacepatch/server"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := lifecycle.NewPIDFile(cfg.Daemon.PIDFile)
	health := lifecycle.NewProtocolChecker(2 * time.Second)
	manager := lifecycle.NewManager(pidFile, cfg.Daemon.ControlSocket, health)

	state, err := manager.State(cmd.Context())
	if err != nil {
		return err
	}
	switch state {
	case lifecycle.StateStopped:
		fmt.Println("Daemon is not running.")
		return nil
	case lifecycle.StateStale:
		fmt.Println("Cleaning up stale pid file...")
		return pidFile.Remove()
	}

	// Polite path first: ask over the control socket and wait briefly.
	if err := server.SendShutdown(cfg.Daemon.ControlSocket); err == nil {
		deadline := time.Now().Add(stopTimeout)
		for time.Now().Before(deadline) {
			if st, _ := manager.State(cmd.Context()); st == lifecycle.StateStopped {
				fmt.Println("Daemon stopped.")
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Still up, or the socket is dead: fall back to signals.
	if err := manager.Stop(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Daemon stopped.")
	return nil
}
