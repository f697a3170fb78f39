// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/events.go
// Summary: Streams live correction events from the daemon as JSON lines.

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/spacepatch/spacepatch/protocol"
	"github.com/spacepatch/spacepatch/server"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow correction events as they happen",
	Long: `Subscribes to the daemon's correction feed and prints one JSON object
per line. Output is colorized when stdout is a terminal, so it can be
piped into jq or a log file unchanged.`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

type eventLine struct {
	Kind   string `json:"kind"`
	Window uint32 `json:"window"`
	Space  uint32 `json:"space,omitempty"`
	App    string `json:"app,omitempty"`
	Detail string `json:"detail,omitempty"`
	At     string `json:"at"`
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emit := newLinePrinter()
	fmt.Fprintln(os.Stderr, "Streaming corrections (ctrl-c to stop)...")

	err = server.StreamCorrections(ctx, cfg.Daemon.ControlSocket, func(rec protocol.CorrectionRecord) {
		line := eventLine{
			Kind:   rec.Kind,
			Window: rec.Window,
			Space:  rec.Space,
			App:    rec.App,
			Detail: rec.Detail,
			At:     time.Unix(0, rec.At).Format(time.RFC3339),
		}
		b, err := json.Marshal(line)
		if err != nil {
			return
		}
		emit(string(b))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newLinePrinter returns a function that writes one line to stdout,
// syntax-highlighted when stdout is a terminal.
func newLinePrinter() func(string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(line string) { fmt.Println(line) }
	}

	style := styles.Get("catppuccin-mocha")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	return func(line string) {
		it, err := lexer.Tokenise(nil, line)
		if err != nil {
			fmt.Println(line)
			return
		}
		if err := formatter.Format(os.Stdout, style, it); err != nil {
			fmt.Println(line)
			return
		}
		fmt.Println()
	}
}
