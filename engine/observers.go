// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: engine/observers.go
// Summary: Built-in correction listeners.

package engine

import "log"

// CorrectionLogger logs every correction event to the provided logger.
type CorrectionLogger struct {
	logger *log.Logger
}

// NewCorrectionLogger creates an observer that logs correction events.
func NewCorrectionLogger(l *log.Logger) *CorrectionLogger {
	if l == nil {
		l = log.Default()
	}
	return &CorrectionLogger{logger: l}
}

func (c *CorrectionLogger) OnCorrection(event CorrectionEvent) {
	if c == nil || c.logger == nil {
		return
	}
	if event.Detail != "" {
		c.logger.Printf("correction %s window=%d space=%d app=%q (%s)", event.Type, event.Window, event.Space, event.App, event.Detail)
		return
	}
	c.logger.Printf("correction %s window=%d space=%d app=%q", event.Type, event.Window, event.Space, event.App)
}

var _ Listener = (*CorrectionLogger)(nil)
