// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/server.go
// Summary: Control socket for status queries, correction streams and shutdown.
// Usage: The daemon starts one Server next to the engine; the CLI talks to it.

// Package server exposes the running daemon on a Unix domain socket:
// status snapshots, a live stream of corrections, and remote shutdown.
package server

import (
	"context"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spacepatch/spacepatch/engine"
	"github.com/spacepatch/spacepatch/protocol"
)

// Server listens on a Unix domain socket and answers control requests.
type Server struct {
	addr     string
	ctrl     Controller
	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
}

func New(addr string, ctrl Controller) *Server {
	if ctrl == nil {
		ctrl = nopController{}
	}
	return &Server{addr: addr, ctrl: ctrl, quit: make(chan struct{})}
}

func (s *Server) Start() error {
	if err := os.RemoveAll(s.addr); err != nil {
		return err
	}
	l, err := net.Listen("unix", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.wg.Add(1)
	go s.acceptLoop()
	log.Printf("Server: control socket listening on %s", s.addr)
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			continue
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer c.Close()
			s.handleConn(&controlConn{c: c})
		}(conn)
	}
}

// Stop closes the listener and waits for in-flight connections, up to
// the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	close(s.quit)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// controlConn serialises concurrent writers on one accepted connection:
// request replies and stream frames share the socket.
type controlConn struct {
	c       net.Conn
	writeMu sync.Mutex
	seq     atomic.Uint64
}

func (cc *controlConn) write(msgType protocol.MessageType, seq uint64, payload []byte) error {
	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()
	hdr := protocol.Header{Version: protocol.Version, Type: msgType, Flags: protocol.FlagChecksum, Sequence: seq}
	return protocol.WriteMessage(cc.c, hdr, payload)
}

func (cc *controlConn) reply(seq uint64, res protocol.Result) {
	payload, err := protocol.EncodeResult(res)
	if err != nil {
		return
	}
	if err := cc.write(protocol.MsgResult, seq, payload); err != nil {
		log.Printf("Server: reply failed: %v", err)
	}
}

func (s *Server) handleConn(cc *controlConn) {
	var sink *streamSink
	defer func() {
		if sink != nil {
			s.ctrl.Unsubscribe(sink)
		}
	}()

	for {
		hdr, _, err := protocol.ReadMessage(cc.c)
		if err != nil {
			return
		}

		switch hdr.Type {
		case protocol.MsgPing:
			pong, err := protocol.EncodePong(protocol.Pong{Timestamp: time.Now().UnixNano()})
			if err != nil {
				continue
			}
			if err := cc.write(protocol.MsgPong, hdr.Sequence, pong); err != nil {
				return
			}

		case protocol.MsgStatusRequest:
			reply := statusReply(s.ctrl.Status(), s.ctrl.Connected())
			payload, err := protocol.EncodeStatusReply(reply)
			if err != nil {
				log.Printf("Server: encode status failed: %v", err)
				continue
			}
			if err := cc.write(protocol.MsgStatusReply, hdr.Sequence, payload); err != nil {
				return
			}

		case protocol.MsgStreamSubscribe:
			if sink == nil {
				sink = newStreamSink(cc)
				s.ctrl.Subscribe(sink)
			}
			cc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusOK})

		case protocol.MsgShutdown:
			cc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusOK})
			log.Printf("Server: shutdown requested over control socket")
			s.ctrl.RequestShutdown()

		default:
			cc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusDenied, Detail: "unsupported request"})
		}
	}
}

// statusReply converts an engine snapshot to the wire representation.
func statusReply(st engine.Status, connected bool) protocol.StatusReply {
	reply := protocol.StatusReply{
		RunID:       st.RunID,
		TargetApp:   st.TargetApp,
		StartedAt:   st.StartedAt.UnixNano(),
		WMConnected: connected,
		Events:      st.Events,
		Tracked:     st.Tracked,
		Repaired:    st.Repaired,
		Deferred:    st.Deferred,
		Evicted:     st.Evicted,
	}
	for _, e := range st.Pending {
		reply.Pending = append(reply.Pending, protocol.TrackedEntry{
			Window:    uint32(e.Window),
			Space:     uint32(e.Space),
			TrackedAt: e.At.UnixNano(),
		})
	}
	for _, e := range st.Managed {
		reply.Managed = append(reply.Managed, protocol.ManagedEntry{
			Window: uint32(e.Window),
			View:   uint64(e.View),
		})
	}
	return reply
}
