// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/history.go
// Summary: Reads past corrections back out of the on-disk journal.

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacepatch/spacepatch/journal"
	"github.com/spacepatch/spacepatch/wm"
)

var (
	historyWindow uint32
	historyLimit  int
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past corrections from the journal",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Uint32Var(&historyWindow, "window", 0, "only show corrections for this window id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of records to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output records as JSON")
	rootCmd.AddCommand(historyCmd)
}

type historyLine struct {
	RunID  string `json:"run_id"`
	Kind   string `json:"kind"`
	Window uint32 `json:"window"`
	Space  uint32 `json:"space,omitempty"`
	App    string `json:"app,omitempty"`
	Detail string `json:"detail,omitempty"`
	At     string `json:"at"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return fmt.Errorf("journal is disabled in the configuration")
	}

	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	var records []journal.Record
	if historyWindow != 0 {
		records, err = store.ForWindow(wm.WindowID(historyWindow), historyLimit)
	} else {
		records, err = store.Recent(historyLimit)
	}
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		lines := make([]historyLine, 0, len(records))
		for _, r := range records {
			lines = append(lines, historyLine{
				RunID:  r.RunID,
				Kind:   r.Kind,
				Window: uint32(r.Window),
				Space:  uint32(r.Space),
				App:    r.App,
				Detail: r.Detail,
				At:     r.At.Format(time.RFC3339),
			})
		}
		return enc.Encode(lines)
	}

	if len(records) == 0 {
		fmt.Println("No corrections recorded.")
		return nil
	}

	for _, r := range records {
		detail := r.Detail
		if detail != "" {
			detail = "  " + detail
		}
		fmt.Printf("%s  %-9s window %-6d space %-4d %s%s\n",
			r.At.Format("2006-01-02 15:04:05"), r.Kind, r.Window, r.Space, r.App, detail)
	}

	counts, err := store.CountByKind()
	if err != nil {
		return nil
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Println()
	fmt.Print("Totals:")
	for _, k := range kinds {
		fmt.Printf(" %s=%d", k, counts[k])
	}
	fmt.Println()
	return nil
}
