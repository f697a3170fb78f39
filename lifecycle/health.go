// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: lifecycle/health.go
// Summary: Health probes against the daemon's control socket.

package lifecycle

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spacepatch/spacepatch/protocol"
)

// HealthChecker decides whether the daemon behind a control socket is alive.
type HealthChecker interface {
	Check(ctx context.Context, socketPath string) error
}

// SocketChecker probes by connecting only. Accepting a connection is
// enough to prove the process is up; it cannot tell a hung daemon apart
// from a healthy one.
type SocketChecker struct {
	timeout time.Duration
}

func NewSocketChecker(timeout time.Duration) *SocketChecker {
	return &SocketChecker{timeout: timeout}
}

func (c *SocketChecker) Check(ctx context.Context, socketPath string) error {
	conn, err := dialDeadline(ctx, socketPath, c.timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ProtocolChecker probes with a full ping round trip, so a daemon whose
// accept loop runs but whose handler is wedged still fails the check.
type ProtocolChecker struct {
	timeout time.Duration
}

func NewProtocolChecker(timeout time.Duration) *ProtocolChecker {
	return &ProtocolChecker{timeout: timeout}
}

func (c *ProtocolChecker) Check(ctx context.Context, socketPath string) error {
	conn, err := dialDeadline(ctx, socketPath, c.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	hdr := protocol.Header{
		Version: protocol.Version,
		Type:    protocol.MsgPing,
		Flags:   protocol.FlagChecksum,
	}
	if err := protocol.WriteMessage(conn, hdr, nil); err != nil {
		return fmt.Errorf("send ping: %w", err)
	}
	respHdr, _, err := protocol.ReadMessage(conn)
	if err != nil {
		return fmt.Errorf("read pong: %w", err)
	}
	if respHdr.Type != protocol.MsgPong {
		return fmt.Errorf("unexpected reply type 0x%02x to ping", respHdr.Type)
	}
	return nil
}

// dialDeadline connects to a unix socket with both the context's and the
// checker's deadline applied to the connection.
func dialDeadline(ctx context.Context, socketPath string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	return conn, nil
}
