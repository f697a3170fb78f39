package server

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spacepatch/spacepatch/engine"
	"github.com/spacepatch/spacepatch/protocol"
)

type fakeController struct {
	mu        sync.Mutex
	listeners []engine.Listener
	shutdowns int
	status    engine.Status
	connected bool
}

func (f *fakeController) Status() engine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeController) Subscribe(l engine.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *fakeController) Unsubscribe(l engine.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.listeners {
		if existing == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			break
		}
	}
}

func (f *fakeController) RequestShutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
}

func (f *fakeController) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeController) broadcast(ev engine.CorrectionEvent) {
	f.mu.Lock()
	listeners := append([]engine.Listener(nil), f.listeners...)
	f.mu.Unlock()
	for _, l := range listeners {
		l.OnCorrection(ev)
	}
}

func startTestServer(t *testing.T, ctrl *fakeController) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "control.sock")
	srv := New(socket, ctrl)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return socket
}

func TestPing(t *testing.T) {
	socket := startTestServer(t, &fakeController{})
	if err := Ping(socket); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestQueryStatus(t *testing.T) {
	ctrl := &fakeController{
		connected: true,
		status: engine.Status{
			RunID:     "run-42",
			TargetApp: "org.mozilla.firefox",
			StartedAt: time.Now(),
			Events:    10,
			Tracked:   2,
			Repaired:  1,
			Managed:   []engine.ManagedEntry{{Window: 23, View: 7}},
		},
	}
	socket := startTestServer(t, ctrl)

	reply, err := QueryStatus(socket)
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if reply.RunID != "run-42" || reply.TargetApp != "org.mozilla.firefox" {
		t.Fatalf("identity fields: %+v", reply)
	}
	if !reply.WMConnected {
		t.Fatal("WMConnected not carried over")
	}
	if reply.Repaired != 1 || reply.Tracked != 2 {
		t.Fatalf("counters: %+v", reply)
	}
	if len(reply.Managed) != 1 || reply.Managed[0].Window != 23 || reply.Managed[0].View != 7 {
		t.Fatalf("managed list: %+v", reply.Managed)
	}
}

func TestStreamCorrections(t *testing.T) {
	ctrl := &fakeController{}
	socket := startTestServer(t, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records := make(chan protocol.CorrectionRecord, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- StreamCorrections(ctx, socket, func(rec protocol.CorrectionRecord) {
			records <- rec
		})
	}()

	// Wait for the subscription to land.
	deadline := time.Now().Add(2 * time.Second)
	for ctrl.listenerCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctrl.broadcast(engine.CorrectionEvent{
		Type:   engine.CorrectionRepaired,
		Window: 23,
		Space:  2,
		App:    "org.mozilla.firefox",
		At:     time.Now(),
	})

	select {
	case rec := <-records:
		if rec.Kind != "repaired" || rec.Window != 23 || rec.Space != 2 {
			t.Fatalf("record = %+v", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no correction record received")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("stream ended with %v; want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after cancel")
	}
}

func TestSendShutdown(t *testing.T) {
	ctrl := &fakeController{}
	socket := startTestServer(t, ctrl)

	if err := SendShutdown(socket); err != nil {
		t.Fatalf("SendShutdown: %v", err)
	}

	ctrl.mu.Lock()
	shutdowns := ctrl.shutdowns
	ctrl.mu.Unlock()
	if shutdowns != 1 {
		t.Fatalf("shutdowns = %d; want 1", shutdowns)
	}
}
