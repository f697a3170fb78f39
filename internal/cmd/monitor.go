// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/cmd/monitor.go
// Summary: Full-screen live dashboard over the daemon's status and feed.

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/spacepatch/spacepatch/protocol"
	"github.com/spacepatch/spacepatch/server"
)

const recentCorrections = 8

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the daemon in a live terminal dashboard",
	Long: `Opens a full-screen view that refreshes the daemon's counters and shows
corrections as they stream in. Press q, Escape or ctrl-c to leave.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// correctionFeed keeps the last few corrections for the dashboard.
type correctionFeed struct {
	mu      sync.Mutex
	records []protocol.CorrectionRecord
}

func (f *correctionFeed) add(rec protocol.CorrectionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	if len(f.records) > recentCorrections {
		f.records = f.records[len(f.records)-recentCorrections:]
	}
}

func (f *correctionFeed) snapshot() []protocol.CorrectionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.CorrectionRecord, len(f.records))
	copy(out, f.records)
	return out
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer s.Fini()

	quit := make(chan struct{})
	go func() {
		for {
			ev := s.PollEvent()
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					close(quit)
					return
				}
			case *tcell.EventResize:
				s.Sync()
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := &correctionFeed{}
	go func() {
		for ctx.Err() == nil {
			server.StreamCorrections(ctx, cfg.Daemon.ControlSocket, feed.add)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()

	ticker := time.NewTicker(cfg.Monitor.Interval())
	defer ticker.Stop()

	drawMonitor(s, cfg.Daemon.ControlSocket, feed)
	for {
		select {
		case <-quit:
			return nil
		case <-ticker.C:
			drawMonitor(s, cfg.Daemon.ControlSocket, feed)
		}
	}
}

func drawMonitor(s tcell.Screen, socket string, feed *correctionFeed) {
	width, height := s.Size()
	s.Clear()

	header := tcell.StyleDefault.Bold(true)
	label := tcell.StyleDefault.Foreground(tcell.ColorGray)
	value := tcell.StyleDefault
	bad := tcell.StyleDefault.Foreground(tcell.ColorRed)
	good := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	warn := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	drawText(s, 1, 0, header, "spacepatch monitor")
	hint := "q to quit"
	drawText(s, width-runewidth.StringWidth(hint)-1, 0, label, hint)

	reply, err := server.QueryStatus(socket)
	if err != nil {
		drawText(s, 1, 2, bad, runewidth.Truncate("daemon unreachable: "+err.Error(), width-2, "…"))
		s.Show()
		return
	}

	y := 2
	x := drawText(s, 1, y, label, "Target ")
	x = drawText(s, x, y, value, reply.TargetApp)
	x = drawText(s, x+3, y, label, "Run ")
	drawText(s, x, y, value, reply.RunID)

	y++
	x = drawText(s, 1, y, label, "WM ")
	if reply.WMConnected {
		x = drawText(s, x, y, good, "connected")
	} else {
		x = drawText(s, x, y, bad, "disconnected")
	}
	x = drawText(s, x+3, y, label, "Uptime ")
	drawText(s, x, y, value, time.Since(time.Unix(0, reply.StartedAt)).Truncate(time.Second).String())

	y += 2
	x = 1
	for _, c := range []struct {
		name  string
		n     uint64
		style tcell.Style
	}{
		{"events", reply.Events, value},
		{"tracked", reply.Tracked, value},
		{"repaired", reply.Repaired, good},
		{"deferred", reply.Deferred, warn},
		{"evicted", reply.Evicted, bad},
	} {
		x = drawText(s, x, y, label, c.name+" ")
		x = drawText(s, x, y, c.style, fmt.Sprintf("%d", c.n))
		x += 3
	}

	y += 2
	drawText(s, 1, y, header, "Pending transitions")
	y++
	pending := 0
	for _, e := range reply.Pending {
		if e.Space == 0 || y >= height-1 {
			continue
		}
		age := time.Since(time.Unix(0, e.TrackedAt)).Truncate(time.Second)
		drawText(s, 3, y, value, fmt.Sprintf("window %-6d space %-4d %s ago", e.Window, e.Space, age))
		y++
		pending++
	}
	if pending == 0 {
		drawText(s, 3, y, label, "none")
		y++
	}

	y++
	if y < height-1 {
		drawText(s, 1, y, header, "Recent corrections")
		y++
		records := feed.snapshot()
		if len(records) == 0 {
			drawText(s, 3, y, label, "none yet")
		}
		for i := len(records) - 1; i >= 0 && y < height; i-- {
			rec := records[i]
			style := value
			switch rec.Kind {
			case "repaired":
				style = good
			case "deferred":
				style = warn
			case "evicted":
				style = bad
			}
			line := fmt.Sprintf("%s  %-9s window %-6d space %d",
				time.Unix(0, rec.At).Format("15:04:05"), rec.Kind, rec.Window, rec.Space)
			if rec.Detail != "" {
				line += "  " + rec.Detail
			}
			drawText(s, 3, y, style, runewidth.Truncate(line, width-4, "…"))
			y++
		}
	}

	s.Show()
}

// drawText writes text at (x, y) and returns the x after the last cell.
func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) int {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
	return x
}
