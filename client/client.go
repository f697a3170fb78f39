// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/client.go
// Summary: Connection to the window manager: signal intake and repair commands.
// Usage: The daemon dials once at startup; the corrector issues its repairs
// through the same connection.
// Notes: Writes are serialised; requests carry a sequence echoed by the
// matching Result frame.

// Package client speaks the window-manager side of the protocol. It
// delivers window signals on a channel and exposes the repair operations
// as synchronous calls.
package client

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spacepatch/spacepatch/protocol"
	"github.com/spacepatch/spacepatch/wm"
)

const (
	dialTimeout    = 5 * time.Second
	requestTimeout = 5 * time.Second
)

// Capability bits announced in the handshake.
const (
	capSubscribe uint32 = 1 << iota
	capRepair
)

var (
	ErrClosed   = errors.New("client: connection closed")
	ErrTimeout  = errors.New("client: request timed out")
	ErrRejected = errors.New("client: request rejected")
)

// Client maintains the connection to the window manager. Incoming window
// signals appear on Events in delivery order; SetMovable, SetResizable,
// ClearFullscreen, PlaceOnSpace and RegisterManaged block until the
// manager answers.
type Client struct {
	conn       net.Conn
	serverName string

	writeMu sync.Mutex
	seq     atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan protocol.Result

	events    chan wm.Event
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ wm.FlagOps  = (*Client)(nil)
	_ wm.Placer   = (*Client)(nil)
	_ wm.Registry = (*Client)(nil)
)

// Dial connects to the manager's socket and performs the handshake.
func Dial(socketPath, clientName string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial window manager: %w", err)
	}
	c, err := New(conn, clientName)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// New performs the handshake on an established connection and starts the
// read loop. On error the connection is left open for the caller to
// close.
func New(conn net.Conn, clientName string) (*Client, error) {
	helloPayload, err := protocol.EncodeHello(protocol.Hello{
		ClientName:   clientName,
		Capabilities: capSubscribe | capRepair,
	})
	if err != nil {
		return nil, err
	}
	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgHello, Flags: protocol.FlagChecksum}
	if err := protocol.WriteMessage(conn, hdr, helloPayload); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}

	replyHdr, payload, err := protocol.ReadMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if replyHdr.Type != protocol.MsgWelcome {
		return nil, fmt.Errorf("unexpected message %v during handshake", replyHdr.Type)
	}
	welcome, err := protocol.DecodeWelcome(payload)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:       conn,
		serverName: welcome.ServerName,
		pending:    make(map[uint64]chan protocol.Result),
		events:     make(chan wm.Event, 64),
		done:       make(chan struct{}),
	}
	go c.readLoop()
	log.Printf("Client: connected to %q", welcome.ServerName)
	return c, nil
}

// ServerName reports the name the manager announced in its Welcome.
func (c *Client) ServerName() string { return c.serverName }

// Alive reports whether the connection is still up.
func (c *Client) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Events delivers window signals in the order the manager sent them. The
// channel closes when the connection drops.
func (c *Client) Events() <-chan wm.Event { return c.events }

// Subscribe selects which signal kinds the manager should deliver.
func (c *Client) Subscribe(kinds ...wm.EventKind) error {
	payload, err := protocol.EncodeSubscribe(protocol.Subscribe{Kinds: protocol.EventMask(kinds...)})
	if err != nil {
		return err
	}
	res, err := c.roundTrip(protocol.MsgSubscribe, payload)
	if err != nil {
		return err
	}
	return resultErr(res)
}

func (c *Client) SetMovable(id wm.WindowID) error {
	return c.setFlags(id, protocol.FlagMovable, 0)
}

func (c *Client) SetResizable(id wm.WindowID) error {
	return c.setFlags(id, protocol.FlagResizable, 0)
}

func (c *Client) ClearFullscreen(id wm.WindowID) error {
	return c.setFlags(id, 0, protocol.FlagFullscreen)
}

func (c *Client) setFlags(id wm.WindowID, set, clear protocol.WindowFlags) error {
	payload, err := protocol.EncodeSetFlags(protocol.SetFlags{Window: uint32(id), Set: set, Clear: clear})
	if err != nil {
		return err
	}
	res, err := c.roundTrip(protocol.MsgSetFlags, payload)
	if err != nil {
		return err
	}
	return resultErr(res)
}

// PlaceOnSpace asks the tiling engine for a placement. This blocks for
// as long as the manager needs to compute the layout.
func (c *Client) PlaceOnSpace(id wm.WindowID, space wm.SpaceID) (wm.ViewHandle, error) {
	payload, err := protocol.EncodePlace(protocol.Place{Window: uint32(id), Space: uint32(space)})
	if err != nil {
		return 0, err
	}
	res, err := c.roundTrip(protocol.MsgPlace, payload)
	if err != nil {
		return 0, err
	}
	if err := resultErr(res); err != nil {
		return 0, err
	}
	return wm.ViewHandle(res.View), nil
}

func (c *Client) RegisterManaged(id wm.WindowID, view wm.ViewHandle) error {
	payload, err := protocol.EncodeRegister(protocol.Register{Window: uint32(id), View: uint64(view)})
	if err != nil {
		return err
	}
	res, err := c.roundTrip(protocol.MsgRegister, payload)
	if err != nil {
		return err
	}
	return resultErr(res)
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) roundTrip(msgType protocol.MessageType, payload []byte) (protocol.Result, error) {
	seq := c.seq.Add(1)
	ch := make(chan protocol.Result, 1)
	c.pendingMu.Lock()
	c.pending[seq] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
	}()

	if err := c.write(msgType, seq, payload); err != nil {
		return protocol.Result{}, err
	}

	select {
	case res := <-ch:
		return res, nil
	case <-c.done:
		return protocol.Result{}, ErrClosed
	case <-time.After(requestTimeout):
		return protocol.Result{}, ErrTimeout
	}
}

func (c *Client) write(msgType protocol.MessageType, seq uint64, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	hdr := protocol.Header{Version: protocol.Version, Type: msgType, Flags: protocol.FlagChecksum, Sequence: seq}
	return protocol.WriteMessage(c.conn, hdr, payload)
}

// readLoop owns the receive side until the connection drops. The events
// channel closes when it returns.
func (c *Client) readLoop() {
	defer close(c.events)
	for {
		hdr, payload, err := protocol.ReadMessage(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("Client: connection lost: %v", err)
			}
			c.shutdown()
			return
		}

		switch hdr.Type {
		case protocol.MsgWindowEvent:
			ev, err := protocol.DecodeWindowEvent(payload)
			if err != nil {
				log.Printf("Client: dropping malformed window event: %v", err)
				continue
			}
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		case protocol.MsgResult:
			res, err := protocol.DecodeResult(payload)
			if err != nil {
				log.Printf("Client: dropping malformed result: %v", err)
				continue
			}
			c.pendingMu.Lock()
			ch, ok := c.pending[hdr.Sequence]
			c.pendingMu.Unlock()
			if ok {
				ch <- res
			}
		case protocol.MsgPing:
			if _, err := protocol.DecodePing(payload); err != nil {
				continue
			}
			pong, err := protocol.EncodePong(protocol.Pong{Timestamp: time.Now().UnixNano()})
			if err != nil {
				continue
			}
			if err := c.write(protocol.MsgPong, hdr.Sequence, pong); err != nil {
				log.Printf("Client: pong failed: %v", err)
			}
		default:
			log.Printf("Client: ignoring message %v", hdr.Type)
		}
	}
}

func resultErr(res protocol.Result) error {
	if res.Status == protocol.StatusOK {
		return nil
	}
	if res.Detail != "" {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, res.Status, res.Detail)
	}
	return fmt.Errorf("%w: status %d", ErrRejected, res.Status)
}
