// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/simulate.go
// Summary: Replays the broken fullscreen exit against an in-process manager.

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacepatch/spacepatch/client"
	"github.com/spacepatch/spacepatch/engine"
	"github.com/spacepatch/spacepatch/sim"
	"github.com/spacepatch/spacepatch/wm"
)

var simFailPlacement bool

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay the browser bug against a simulated window manager",
	Long: `Starts an in-process window manager, connects a correction engine to it
and replays the misbehaving fullscreen exit. Useful for seeing what the
daemon would do without touching a real window manager.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().BoolVar(&simFailPlacement, "fail-placement", false,
		"refuse the first placement so the retry path is shown")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	dir, err := os.MkdirTemp("", "spacepatch-sim")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	w := sim.New(filepath.Join(dir, "wm.sock"))
	if err := w.Start(); err != nil {
		return fmt.Errorf("start simulator: %w", err)
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	defer w.Stop(stopCtx)

	scenario := sim.DefaultScenario()
	scenario.Seed(w)

	cli, err := client.Dial(w.Addr(), "spacepatch-sim")
	if err != nil {
		return fmt.Errorf("connect to simulator: %w", err)
	}
	defer cli.Close()
	err = cli.Subscribe(
		wm.EventWindowCreated,
		wm.EventWindowDestroyed,
		wm.EventWindowResized,
		wm.EventWindowMoved,
	)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{TargetApp: scenario.App}, cli, cli, cli)
	eng.Subscribe(engine.NewCorrectionLogger(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx, cli.Events())

	fmt.Printf("Window %d (%s) lives on space %d.\n", scenario.Window, scenario.App, scenario.Home)

	fmt.Printf("-> browser reports fullscreen while the window is still on space %d\n", scenario.Home)
	scenario.AnnounceFullscreen(w)

	fmt.Printf("-> window moves to fullscreen space %d\n", scenario.FullscreenSpace)
	scenario.EnterFullscreenSpace(w)

	if simFailPlacement {
		w.FailNextPlacement()
	}

	fmt.Printf("-> fullscreen exit: window back on space %d with every flag stripped\n", scenario.Home)
	scenario.BrokenExit(w)

	if simFailPlacement {
		if !waitForStatus(eng, 3*time.Second, func(st engine.Status) bool { return st.Deferred > 0 }) {
			return fmt.Errorf("expected a deferred correction, got none")
		}
		fmt.Println("-> placement refused, window left tracked for retry")
		fmt.Println("-> window moves again, repair retried")
		w.EmitMoved(scenario.Window)
	}

	if !scenario.Await(w, 3*time.Second) {
		return fmt.Errorf("window %d was not repaired", scenario.Window)
	}

	st, _ := w.Window(scenario.Window)
	status := eng.Status()
	fmt.Println()
	fmt.Printf("Window %d repaired: movable=%t resizable=%t managed=%t view=%d\n",
		scenario.Window, st.Movable, st.Resizable, st.Managed, st.View)
	fmt.Printf("Engine counters: tracked=%d repaired=%d deferred=%d evicted=%d\n",
		status.Tracked, status.Repaired, status.Deferred, status.Evicted)
	return nil
}

func waitForStatus(eng *engine.Engine, timeout time.Duration, cond func(engine.Status) bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond(eng.Status()) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
