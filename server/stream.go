// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/stream.go
// Summary: Forwards correction events to a subscribed control client.

package server

import (
	"sync/atomic"

	"github.com/spacepatch/spacepatch/engine"
	"github.com/spacepatch/spacepatch/protocol"
)

// streamSink turns correction events into CorrectionRecord frames on one
// control connection. After the first write failure it goes quiet; the
// connection handler unsubscribes it when the connection dies.
type streamSink struct {
	cc     *controlConn
	failed atomic.Bool
}

func newStreamSink(cc *controlConn) *streamSink {
	return &streamSink{cc: cc}
}

func (s *streamSink) OnCorrection(event engine.CorrectionEvent) {
	if s.failed.Load() {
		return
	}
	rec := protocol.CorrectionRecord{
		Kind:   event.Type.String(),
		Window: uint32(event.Window),
		Space:  uint32(event.Space),
		At:     event.At.UnixNano(),
		App:    event.App,
		Detail: event.Detail,
	}
	payload, err := protocol.EncodeCorrectionRecord(rec)
	if err != nil {
		return
	}
	if err := s.cc.write(protocol.MsgCorrectionRecord, s.cc.seq.Add(1), payload); err != nil {
		s.failed.Store(true)
	}
}

var _ engine.Listener = (*streamSink)(nil)
