// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/query.go
// Summary: Client-side helpers for talking to a daemon's control socket.
// Usage: Used by the CLI commands and the health checker; the daemon
// itself never calls these.

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spacepatch/spacepatch/protocol"
)

const queryTimeout = 3 * time.Second

var ErrUnexpectedReply = errors.New("server: unexpected reply")

func dialControl(socketPath string) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", socketPath, queryTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial control socket: %w", err)
	}
	return conn, nil
}

// QueryStatus asks a running daemon for its status snapshot.
func QueryStatus(socketPath string) (protocol.StatusReply, error) {
	conn, err := dialControl(socketPath)
	if err != nil {
		return protocol.StatusReply{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(queryTimeout))

	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgStatusRequest, Flags: protocol.FlagChecksum, Sequence: 1}
	if err := protocol.WriteMessage(conn, hdr, nil); err != nil {
		return protocol.StatusReply{}, err
	}

	replyHdr, payload, err := protocol.ReadMessage(conn)
	if err != nil {
		return protocol.StatusReply{}, err
	}
	if replyHdr.Type != protocol.MsgStatusReply {
		return protocol.StatusReply{}, fmt.Errorf("%w: %v", ErrUnexpectedReply, replyHdr.Type)
	}
	return protocol.DecodeStatusReply(payload)
}

// Ping probes a daemon's control socket end to end.
func Ping(socketPath string) error {
	conn, err := dialControl(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(queryTimeout))

	ping, err := protocol.EncodePing(protocol.Ping{Timestamp: time.Now().UnixNano()})
	if err != nil {
		return err
	}
	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgPing, Flags: protocol.FlagChecksum, Sequence: 1}
	if err := protocol.WriteMessage(conn, hdr, ping); err != nil {
		return err
	}

	replyHdr, _, err := protocol.ReadMessage(conn)
	if err != nil {
		return err
	}
	if replyHdr.Type != protocol.MsgPong {
		return fmt.Errorf("%w: %v", ErrUnexpectedReply, replyHdr.Type)
	}
	return nil
}

// SendShutdown asks a running daemon to exit.
func SendShutdown(socketPath string) error {
	conn, err := dialControl(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(queryTimeout))

	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgShutdown, Flags: protocol.FlagChecksum, Sequence: 1}
	if err := protocol.WriteMessage(conn, hdr, nil); err != nil {
		return err
	}

	replyHdr, payload, err := protocol.ReadMessage(conn)
	if err != nil {
		return err
	}
	if replyHdr.Type != protocol.MsgResult {
		return fmt.Errorf("%w: %v", ErrUnexpectedReply, replyHdr.Type)
	}
	res, err := protocol.DecodeResult(payload)
	if err != nil {
		return err
	}
	if res.Status != protocol.StatusOK {
		return fmt.Errorf("shutdown refused: status %d: %s", res.Status, res.Detail)
	}
	return nil
}

// StreamCorrections subscribes to a daemon's correction stream and calls
// fn for every record until ctx is cancelled or the connection drops.
func StreamCorrections(ctx context.Context, socketPath string, fn func(protocol.CorrectionRecord)) error {
	conn, err := dialControl(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgStreamSubscribe, Flags: protocol.FlagChecksum, Sequence: 1}
	if err := protocol.WriteMessage(conn, hdr, nil); err != nil {
		return err
	}

	for {
		replyHdr, payload, err := protocol.ReadMessage(conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch replyHdr.Type {
		case protocol.MsgResult:
			res, err := protocol.DecodeResult(payload)
			if err != nil {
				return err
			}
			if res.Status != protocol.StatusOK {
				return fmt.Errorf("stream refused: status %d: %s", res.Status, res.Detail)
			}
		case protocol.MsgCorrectionRecord:
			rec, err := protocol.DecodeCorrectionRecord(payload)
			if err != nil {
				return err
			}
			fn(rec)
		}
	}
}
