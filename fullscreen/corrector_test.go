package fullscreen

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spacepatch/spacepatch/wm"
)

// fakeManager implements the manager-facing interfaces and records every
// call in order.
type fakeManager struct {
	calls       []string
	placeFails  int // fail this many placements before succeeding
	registerErr error
	nextView    wm.ViewHandle
	registered  map[wm.WindowID]wm.ViewHandle
}

func newFakeManager() *fakeManager {
	return &fakeManager{nextView: 1, registered: make(map[wm.WindowID]wm.ViewHandle)}
}

func (f *fakeManager) SetMovable(id wm.WindowID) error {
	f.calls = append(f.calls, fmt.Sprintf("movable %d", id))
	return nil
}

func (f *fakeManager) SetResizable(id wm.WindowID) error {
	f.calls = append(f.calls, fmt.Sprintf("resizable %d", id))
	return nil
}

func (f *fakeManager) ClearFullscreen(id wm.WindowID) error {
	f.calls = append(f.calls, fmt.Sprintf("clear-fullscreen %d", id))
	return nil
}

func (f *fakeManager) PlaceOnSpace(id wm.WindowID, space wm.SpaceID) (wm.ViewHandle, error) {
	f.calls = append(f.calls, fmt.Sprintf("place %d on %d", id, space))
	if f.placeFails > 0 {
		f.placeFails--
		return 0, errors.New("no layout for space")
	}
	view := f.nextView
	f.nextView++
	return view, nil
}

func (f *fakeManager) RegisterManaged(id wm.WindowID, view wm.ViewHandle) error {
	f.calls = append(f.calls, fmt.Sprintf("register %d view %d", id, view))
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered[id] = view
	return nil
}

func newCorrectorUnderTest() (*Corrector, *Tracker, *fakeManager) {
	tr := NewTracker()
	mgr := newFakeManager()
	return NewCorrector(tr, mgr, mgr, mgr), tr, mgr
}

func TestCorrectorRepairsBrokenExit(t *testing.T) {
	c, tr, mgr := newCorrectorUnderTest()
	tr.Record(23, 7)

	outcome, err := c.OnWindowMoved(23, 2, true, false, false)
	if err != nil {
		t.Fatalf("OnWindowMoved: %v", err)
	}
	if outcome != OutcomeRepaired {
		t.Fatalf("outcome = %v; want repaired", outcome)
	}

	want := []string{
		"movable 23",
		"resizable 23",
		"clear-fullscreen 23",
		"place 23 on 2",
		"register 23 view 1",
	}
	if len(mgr.calls) != len(want) {
		t.Fatalf("calls = %v; want %v", mgr.calls, want)
	}
	for i := range want {
		if mgr.calls[i] != want[i] {
			t.Fatalf("call %d = %q; want %q", i, mgr.calls[i], want[i])
		}
	}
	if mgr.registered[23] != 1 {
		t.Fatalf("registered view = %d; want 1", mgr.registered[23])
	}
	if _, ok := tr.Pending(23); ok {
		t.Fatal("entry still pending after successful repair")
	}
}

func TestCorrectorSecondMovedIsNoOp(t *testing.T) {
	c, tr, mgr := newCorrectorUnderTest()
	tr.Record(23, 7)

	if outcome, _ := c.OnWindowMoved(23, 2, true, false, false); outcome != OutcomeRepaired {
		t.Fatalf("first moved: outcome = %v; want repaired", outcome)
	}
	before := len(mgr.calls)

	outcome, err := c.OnWindowMoved(23, 2, true, false, false)
	if err != nil {
		t.Fatalf("second moved: %v", err)
	}
	if outcome != OutcomeNone {
		t.Fatalf("second moved: outcome = %v; want none", outcome)
	}
	if len(mgr.calls) != before {
		t.Fatalf("second moved touched the manager: %v", mgr.calls[before:])
	}
}

func TestCorrectorIgnoresUntrackedWindow(t *testing.T) {
	c, _, mgr := newCorrectorUnderTest()

	outcome, err := c.OnWindowMoved(42, 2, true, false, false)
	if err != nil || outcome != OutcomeNone {
		t.Fatalf("outcome = %v, err %v; want none, nil", outcome, err)
	}
	if len(mgr.calls) != 0 {
		t.Fatalf("untracked window reached the manager: %v", mgr.calls)
	}
}

func TestCorrectorPredicateRejectsPartialMatches(t *testing.T) {
	cases := []struct {
		name               string
		onUserSpace        bool
		fullscreenReported bool
		managed            bool
	}{
		{"still on fullscreen space", false, false, false},
		{"still reporting fullscreen", true, true, false},
		{"already managed", true, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, tr, mgr := newCorrectorUnderTest()
			tr.Record(23, 7)

			outcome, err := c.OnWindowMoved(23, 2, tc.onUserSpace, tc.fullscreenReported, tc.managed)
			if err != nil || outcome != OutcomeNone {
				t.Fatalf("outcome = %v, err %v; want none, nil", outcome, err)
			}
			if len(mgr.calls) != 0 {
				t.Fatalf("manager touched: %v", mgr.calls)
			}
			if _, ok := tr.Pending(23); !ok {
				t.Fatal("entry lost on a non-matching signal")
			}
		})
	}
}

func TestCorrectorPlacementFailureKeepsEntryForRetry(t *testing.T) {
	c, tr, mgr := newCorrectorUnderTest()
	tr.Record(23, 7)
	mgr.placeFails = 1

	outcome, err := c.OnWindowMoved(23, 2, true, false, false)
	if outcome != OutcomeDeferred {
		t.Fatalf("outcome = %v; want deferred", outcome)
	}
	if err == nil {
		t.Fatal("expected a placement error")
	}
	if _, ok := tr.Pending(23); !ok {
		t.Fatal("entry resolved despite failed placement")
	}
	// Flags were already restored and stay that way.
	want := []string{"movable 23", "resizable 23", "clear-fullscreen 23", "place 23 on 2"}
	if len(mgr.calls) != len(want) {
		t.Fatalf("calls = %v; want %v", mgr.calls, want)
	}

	// The next moved signal retries and completes.
	outcome, err = c.OnWindowMoved(23, 2, true, false, false)
	if err != nil || outcome != OutcomeRepaired {
		t.Fatalf("retry: outcome = %v, err %v; want repaired, nil", outcome, err)
	}
	if _, ok := tr.Pending(23); ok {
		t.Fatal("entry still pending after retry succeeded")
	}
	if mgr.registered[23] == 0 {
		t.Fatal("window never registered")
	}
}

func TestCorrectorRegisterFailureKeepsEntryForRetry(t *testing.T) {
	c, tr, mgr := newCorrectorUnderTest()
	tr.Record(23, 7)
	mgr.registerErr = errors.New("manager busy")

	outcome, err := c.OnWindowMoved(23, 2, true, false, false)
	if outcome != OutcomeDeferred || err == nil {
		t.Fatalf("outcome = %v, err %v; want deferred with error", outcome, err)
	}
	if _, ok := tr.Pending(23); !ok {
		t.Fatal("entry resolved despite failed registration")
	}

	mgr.registerErr = nil
	if outcome, _ := c.OnWindowMoved(23, 2, true, false, false); outcome != OutcomeRepaired {
		t.Fatalf("retry: outcome = %v; want repaired", outcome)
	}
}
