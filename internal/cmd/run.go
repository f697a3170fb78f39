// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/run.go
// Summary: The foreground daemon: engine, control server, journal, signals.

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacepatch/spacepatch/client"
	"github.com/spacepatch/spacepatch/config"
	"github.com/spacepatch/spacepatch/engine"
	"github.com/spacepatch/spacepatch/journal"
	"github.com/spacepatch/spacepatch/lifecycle"
	"github.com/spacepatch/spacepatch/server"
	"github.com/spacepatch/spacepatch/wm"
)

const (
	wmDialAttempts = 10
	wmDialDelay    = time.Second
	stopTimeout    = 5 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Connects to the window manager, watches the configured application's
window signals and repairs broken fullscreen exits. Logs go to stderr;
'spacepatch start' runs this command detached with logs in a file.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// daemonController exposes the running daemon to the control server.
type daemonController struct {
	eng    *engine.Engine
	cli    *client.Client
	cancel context.CancelFunc
}

func (d *daemonController) Status() engine.Status         { return d.eng.Status() }
func (d *daemonController) Connected() bool               { return d.cli.Alive() }
func (d *daemonController) Subscribe(l engine.Listener)   { d.eng.Subscribe(l) }
func (d *daemonController) Unsubscribe(l engine.Listener) { d.eng.Unsubscribe(l) }
func (d *daemonController) RequestShutdown()              { d.cancel() }

var _ server.Controller = (*daemonController)(nil)

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := lifecycle.NewPIDFile(cfg.Daemon.PIDFile)
	if pidFile.Running() {
		pid, _ := pidFile.Read()
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	// First run: materialise the defaults so they can be edited.
	if flagConfig == "" {
		if _, statErr := os.Stat(config.DefaultPath()); os.IsNotExist(statErr) {
			if err := config.Save(config.DefaultPath(), cfg); err != nil {
				log.Printf("Daemon: could not write default config: %v", err)
			} else {
				log.Printf("Daemon: wrote default config to %s", config.DefaultPath())
			}
		}
	}

	log.Printf("Daemon: starting, target %q, manager socket %s", cfg.Target.App, cfg.WM.Socket)

	cli, err := dialManager(cfg.WM.Socket)
	if err != nil {
		return err
	}
	defer cli.Close()

	err = cli.Subscribe(
		wm.EventWindowCreated,
		wm.EventWindowDestroyed,
		wm.EventWindowResized,
		wm.EventWindowMoved,
	)
	if err != nil {
		return fmt.Errorf("subscribe to window signals: %w", err)
	}

	eng := engine.New(engine.Config{TargetApp: cfg.Target.App}, cli, cli, cli)
	eng.Subscribe(engine.NewCorrectionLogger(nil))

	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		eng.Subscribe(journal.NewCorrectionWriter(store, eng.RunID()))
		log.Printf("Daemon: journaling corrections to %s", cfg.Journal.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.New(cfg.Daemon.ControlSocket, &daemonController{eng: eng, cli: cli, cancel: cancel})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start control server: %w", err)
	}

	if err := pidFile.Write(os.Getpid()); err != nil {
		log.Printf("Daemon: could not write pid file: %v", err)
	} else {
		defer pidFile.Remove()
	}

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx, cli.Events())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Daemon: received %v, shutting down", sig)
		cancel()
		<-engineDone
	case err := <-engineDone:
		if err != nil && ctx.Err() == nil {
			log.Printf("Daemon: engine stopped: %v", err)
		} else if err == nil {
			log.Printf("Daemon: window manager connection closed")
		}
		cancel()
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		log.Printf("Daemon: control server stop: %v", err)
	}

	log.Printf("Daemon: stopped")
	return nil
}

// dialManager connects to the window manager, retrying while it boots.
func dialManager(socket string) (*client.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= wmDialAttempts; attempt++ {
		cli, err := client.Dial(socket, "spacepatch")
		if err == nil {
			return cli, nil
		}
		lastErr = err
		log.Printf("Daemon: window manager not reachable (attempt %d/%d): %v", attempt, wmDialAttempts, err)
		time.Sleep(wmDialDelay)
	}
	return nil, fmt.Errorf("connect to window manager at %s: %w", socket, lastErr)
}
