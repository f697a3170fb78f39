// Copyright © 2025 Spacepatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: sim/sim.go
// Summary: In-process window manager simulator speaking the real protocol.
// Usage: Backs `spacepatch simulate` and the end-to-end tests; scripted
// scenarios live in scenario.go.

// Package sim provides a fake tiling window manager that listens on a
// Unix socket, accepts the repair commands, and emits scripted window
// signals. Mutations requested by a client are applied to the simulated
// window state, so a test can observe a correction the same way it
// would against the real manager.
package sim

import (
	"context"
	"log"
	"net"
	"os"
	"sync"

	"github.com/spacepatch/spacepatch/protocol"
	"github.com/spacepatch/spacepatch/wm"
)

// WindowState is a snapshot of one simulated window.
type WindowState struct {
	App             string
	Space           wm.SpaceID
	SpaceFullscreen bool
	Fullscreen      bool
	Movable         bool
	Resizable       bool
	Managed         bool
	View            wm.ViewHandle
}

// WM is the simulated window manager. Windows are added and mutated by
// the test script; connected clients receive the emitted signals and
// their commands mutate the same state.
type WM struct {
	name     string
	addr     string
	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup

	mu         sync.Mutex
	windows    map[wm.WindowID]*WindowState
	fullSpaces map[wm.SpaceID]bool
	conns      map[*wmConn]struct{}
	nextView   uint64
	failPlace  int
	seq        uint64
}

// wmConn is one accepted client connection. The write mutex keeps event
// frames and request replies from interleaving.
type wmConn struct {
	c       net.Conn
	writeMu sync.Mutex
	mask    uint32
}

func (wc *wmConn) write(msgType protocol.MessageType, seq uint64, payload []byte) error {
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()
	hdr := protocol.Header{Version: protocol.Version, Type: msgType, Flags: protocol.FlagChecksum, Sequence: seq}
	return protocol.WriteMessage(wc.c, hdr, payload)
}

func (wc *wmConn) reply(seq uint64, res protocol.Result) error {
	payload, err := protocol.EncodeResult(res)
	if err != nil {
		return err
	}
	return wc.write(protocol.MsgResult, seq, payload)
}

func New(socketPath string) *WM {
	return &WM{
		name:       "simwm",
		addr:       socketPath,
		quit:       make(chan struct{}),
		windows:    make(map[wm.WindowID]*WindowState),
		fullSpaces: make(map[wm.SpaceID]bool),
		conns:      make(map[*wmConn]struct{}),
	}
}

// Addr returns the Unix socket path the simulator listens on.
func (w *WM) Addr() string { return w.addr }

func (w *WM) Start() error {
	if err := os.RemoveAll(w.addr); err != nil {
		return err
	}
	l, err := net.Listen("unix", w.addr)
	if err != nil {
		return err
	}
	w.listener = l
	w.wg.Add(1)
	go w.acceptLoop()
	return nil
}

func (w *WM) acceptLoop() {
	defer w.wg.Done()
	for {
		conn, err := w.listener.Accept()
		if err != nil {
			select {
			case <-w.quit:
				return
			default:
			}
			continue
		}

		w.wg.Add(1)
		go func(c net.Conn) {
			defer w.wg.Done()
			defer c.Close()
			w.handleConn(&wmConn{c: c})
		}(conn)
	}
}

// Stop closes the listener and all client connections, then waits for
// the handlers, up to the context deadline.
func (w *WM) Stop(ctx context.Context) error {
	close(w.quit)
	if w.listener != nil {
		_ = w.listener.Close()
	}
	w.mu.Lock()
	for wc := range w.conns {
		wc.c.Close()
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// AddWindow registers a window in its normal tiled state: managed,
// movable, resizable, not fullscreen.
func (w *WM) AddWindow(id wm.WindowID, app string, space wm.SpaceID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.windows[id] = &WindowState{
		App:             app,
		Space:           space,
		SpaceFullscreen: w.fullSpaces[space],
		Movable:         true,
		Resizable:       true,
		Managed:         true,
	}
}

// MarkSpaceFullscreen declares a space as fullscreen-dedicated. Windows
// placed or moved there report SpaceFullscreen in their signals.
func (w *WM) MarkSpaceFullscreen(space wm.SpaceID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fullSpaces[space] = true
}

// FailNextPlacement makes the next Place request fail, simulating a
// tiling engine with no free placement.
func (w *WM) FailNextPlacement() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failPlace++
}

// Window returns a copy of the window's current state.
func (w *WM) Window(id wm.WindowID) (WindowState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	state, ok := w.windows[id]
	if !ok {
		return WindowState{}, false
	}
	return *state, true
}

// Update mutates a window's state in place. It emits nothing; pair it
// with an Emit call to deliver the resulting signal.
func (w *WM) Update(id wm.WindowID, mutate func(*WindowState)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if state, ok := w.windows[id]; ok {
		mutate(state)
		state.SpaceFullscreen = w.fullSpaces[state.Space]
	}
}

func (w *WM) EmitCreated(id wm.WindowID)   { w.emit(wm.EventWindowCreated, id) }
func (w *WM) EmitDestroyed(id wm.WindowID) { w.emit(wm.EventWindowDestroyed, id) }
func (w *WM) EmitResized(id wm.WindowID)   { w.emit(wm.EventWindowResized, id) }
func (w *WM) EmitMoved(id wm.WindowID)     { w.emit(wm.EventWindowMoved, id) }
func (w *WM) EmitFocused(id wm.WindowID)   { w.emit(wm.EventWindowFocused, id) }

// emit builds a signal from the window's current state and delivers it
// to every subscribed client.
func (w *WM) emit(kind wm.EventKind, id wm.WindowID) {
	w.mu.Lock()
	state, ok := w.windows[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	ev := wm.Event{
		Kind:            kind,
		Window:          id,
		Space:           state.Space,
		SpaceFullscreen: state.SpaceFullscreen,
		Fullscreen:      state.Fullscreen,
		Movable:         state.Movable,
		Resizable:       state.Resizable,
		Managed:         state.Managed,
		App:             state.App,
	}
	w.seq++
	seq := w.seq
	conns := make([]*wmConn, 0, len(w.conns))
	for wc := range w.conns {
		if wc.mask&(1<<uint32(kind)) != 0 {
			conns = append(conns, wc)
		}
	}
	w.mu.Unlock()

	payload, err := protocol.EncodeWindowEvent(ev)
	if err != nil {
		log.Printf("sim: encode event: %v", err)
		return
	}
	for _, wc := range conns {
		if err := wc.write(protocol.MsgWindowEvent, seq, payload); err != nil {
			w.dropConn(wc)
		}
	}
}

func (w *WM) dropConn(wc *wmConn) {
	w.mu.Lock()
	delete(w.conns, wc)
	w.mu.Unlock()
}

func (w *WM) handleConn(wc *wmConn) {
	defer w.dropConn(wc)

	hdr, payload, err := protocol.ReadMessage(wc.c)
	if err != nil || hdr.Type != protocol.MsgHello {
		return
	}
	if _, err := protocol.DecodeHello(payload); err != nil {
		return
	}
	welcome, err := protocol.EncodeWelcome(protocol.Welcome{ServerName: w.name})
	if err != nil {
		return
	}
	if err := wc.write(protocol.MsgWelcome, hdr.Sequence, welcome); err != nil {
		return
	}

	for {
		hdr, payload, err := protocol.ReadMessage(wc.c)
		if err != nil {
			return
		}
		if err := w.handleRequest(wc, hdr, payload); err != nil {
			return
		}
	}
}

func (w *WM) handleRequest(wc *wmConn, hdr protocol.Header, payload []byte) error {
	switch hdr.Type {
	case protocol.MsgSubscribe:
		sub, err := protocol.DecodeSubscribe(payload)
		if err != nil {
			return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusDenied, Detail: err.Error()})
		}
		w.mu.Lock()
		wc.mask = sub.Kinds
		w.conns[wc] = struct{}{}
		w.mu.Unlock()
		return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusOK})

	case protocol.MsgSetFlags:
		req, err := protocol.DecodeSetFlags(payload)
		if err != nil {
			return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusDenied, Detail: err.Error()})
		}
		w.mu.Lock()
		state, ok := w.windows[wm.WindowID(req.Window)]
		if ok {
			applyFlags(state, req.Set, true)
			applyFlags(state, req.Clear, false)
		}
		w.mu.Unlock()
		if !ok {
			return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusUnknownWindow, Detail: "no such window"})
		}
		return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusOK})

	case protocol.MsgPlace:
		req, err := protocol.DecodePlace(payload)
		if err != nil {
			return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusDenied, Detail: err.Error()})
		}
		w.mu.Lock()
		state, ok := w.windows[wm.WindowID(req.Window)]
		if !ok {
			w.mu.Unlock()
			return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusUnknownWindow, Detail: "no such window"})
		}
		if w.failPlace > 0 {
			w.failPlace--
			w.mu.Unlock()
			return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusNoPlacement, Detail: "no free placement"})
		}
		w.nextView++
		view := w.nextView
		state.View = wm.ViewHandle(view)
		state.Space = wm.SpaceID(req.Space)
		state.SpaceFullscreen = w.fullSpaces[state.Space]
		w.mu.Unlock()
		return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusOK, View: view})

	case protocol.MsgRegister:
		req, err := protocol.DecodeRegister(payload)
		if err != nil {
			return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusDenied, Detail: err.Error()})
		}
		w.mu.Lock()
		state, ok := w.windows[wm.WindowID(req.Window)]
		if ok {
			state.Managed = true
			state.View = wm.ViewHandle(req.View)
		}
		w.mu.Unlock()
		if !ok {
			return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusUnknownWindow, Detail: "no such window"})
		}
		return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusOK})

	case protocol.MsgPing:
		pong, err := protocol.EncodePong(protocol.Pong{})
		if err != nil {
			return err
		}
		return wc.write(protocol.MsgPong, hdr.Sequence, pong)

	default:
		return wc.reply(hdr.Sequence, protocol.Result{Status: protocol.StatusDenied, Detail: "unsupported request"})
	}
}

func applyFlags(state *WindowState, flags protocol.WindowFlags, value bool) {
	if flags&protocol.FlagFullscreen != 0 {
		state.Fullscreen = value
	}
	if flags&protocol.FlagMovable != 0 {
		state.Movable = value
	}
	if flags&protocol.FlagResizable != 0 {
		state.Resizable = value
	}
	if flags&protocol.FlagManaged != 0 {
		state.Managed = value
	}
}
