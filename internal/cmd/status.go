// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/status.go
// Summary: Queries the running daemon and reports its counters and state.

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacepatch/spacepatch/lifecycle"
	"github.com/spacepatch/spacepatch/server"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state and correction counters",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

type statusOutput struct {
	Running     bool            `json:"running"`
	State       string          `json:"state"`
	PID         int             `json:"pid,omitempty"`
	RunID       string          `json:"run_id,omitempty"`
	TargetApp   string          `json:"target_app,omitempty"`
	UptimeSec   int64           `json:"uptime_seconds,omitempty"`
	WMConnected bool            `json:"wm_connected"`
	Events      uint64          `json:"events"`
	Tracked     uint64          `json:"tracked"`
	Repaired    uint64          `json:"repaired"`
	Deferred    uint64          `json:"deferred"`
	Evicted     uint64          `json:"evicted"`
	Pending     []pendingOutput `json:"pending,omitempty"`
	Managed     []managedOutput `json:"managed,omitempty"`
}

type pendingOutput struct {
	Window   uint32 `json:"window"`
	Space    uint32 `json:"space"`
	AgeSec   int64  `json:"age_seconds"`
	Resolved bool   `json:"resolved"`
}

type managedOutput struct {
	Window uint32 `json:"window"`
	View   uint64 `json:"view"`
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	out := statusOutput{State: state.String()}

	if state == lifecycle.StateStopped || state == lifecycle.StateStale {
		return printStatus(out)
	}

	out.PID = manager.PID()
	reply, err := server.QueryStatus(cfg.Daemon.ControlSocket)
	if err != nil {
		if statusJSON {
			return printStatus(out)
		}
		fmt.Printf("Daemon:       %s (pid %d)\n", state, out.PID)
		return fmt.Errorf("query daemon status: %w", err)
	}

	out.Running = true
	out.RunID = reply.RunID
	out.TargetApp = reply.TargetApp
	out.UptimeSec = int64(time.Since(time.Unix(0, reply.StartedAt)).Seconds())
	out.WMConnected = reply.WMConnected
	out.Events = reply.Events
	out.Tracked = reply.Tracked
	out.Repaired = reply.Repaired
	out.Deferred = reply.Deferred
	out.Evicted = reply.Evicted
	for _, e := range reply.Pending {
		out.Pending = append(out.Pending, pendingOutput{
			Window:   e.Window,
			Space:    e.Space,
			AgeSec:   int64(time.Since(time.Unix(0, e.TrackedAt)).Seconds()),
			Resolved: e.Space == 0,
		})
	}
	for _, m := range reply.Managed {
		out.Managed = append(out.Managed, managedOutput{Window: m.Window, View: m.View})
	}
	return printStatus(out)
}

func printStatus(out statusOutput) error {
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !out.Running {
		fmt.Printf("Daemon:       %s\n", out.State)
		return nil
	}

	uptime := (time.Duration(out.UptimeSec) * time.Second).String()
	connected := "no"
	if out.WMConnected {
		connected = "yes"
	}

	fmt.Printf("Daemon:       %s (pid %d)\n", out.State, out.PID)
	fmt.Printf("Run ID:       %s\n", out.RunID)
	fmt.Printf("Target app:   %s\n", out.TargetApp)
	fmt.Printf("Uptime:       %s\n", uptime)
	fmt.Printf("WM connected: %s\n", connected)
	fmt.Printf("Events seen:  %d\n", out.Events)
	fmt.Printf("Tracked:      %d\n", out.Tracked)
	fmt.Printf("Repaired:     %d\n", out.Repaired)
	fmt.Printf("Deferred:     %d\n", out.Deferred)
	fmt.Printf("Evicted:      %d\n", out.Evicted)

	if len(out.Pending) > 0 {
		fmt.Println("\nPending transitions:")
		for _, p := range out.Pending {
			if p.Resolved {
				fmt.Printf("  window %-6d resolved\n", p.Window)
				continue
			}
			fmt.Printf("  window %-6d space %-4d tracked %ds ago\n", p.Window, p.Space, p.AgeSec)
		}
	}
	if len(out.Managed) > 0 {
		fmt.Println("\nRe-registered windows:")
		for _, m := range out.Managed {
			fmt.Printf("  window %-6d view %d\n", m.Window, m.View)
		}
	}
	return nil
}
