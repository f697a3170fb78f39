package fullscreen

import (
	"testing"

	"github.com/spacepatch/spacepatch/wm"
)

func TestTrackerRecordAndPending(t *testing.T) {
	tr := NewTracker()

	if _, ok := tr.Pending(23); ok {
		t.Fatal("untracked window reported pending")
	}

	if _, evicted := tr.Record(23, 7); evicted {
		t.Fatal("first insert should not evict")
	}
	space, ok := tr.Pending(23)
	if !ok || space != 7 {
		t.Fatalf("Pending(23) = %d, %v; want 7, true", space, ok)
	}
}

func TestTrackerUpdateInPlace(t *testing.T) {
	tr := NewTracker()
	tr.Record(23, 7)
	tr.Record(23, 9)

	if got := tr.Len(); got != 1 {
		t.Fatalf("Len = %d after re-recording same window; want 1", got)
	}
	space, ok := tr.Pending(23)
	if !ok || space != 9 {
		t.Fatalf("Pending(23) = %d, %v; want 9, true", space, ok)
	}
}

func TestTrackerHoldsFullCapacityWithoutLoss(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= Capacity; i++ {
		if _, evicted := tr.Record(wm.WindowID(i), wm.SpaceID(100+i)); evicted {
			t.Fatalf("insert %d evicted below capacity", i)
		}
	}
	for i := 1; i <= Capacity; i++ {
		space, ok := tr.Pending(wm.WindowID(i))
		if !ok || space != wm.SpaceID(100+i) {
			t.Fatalf("window %d: Pending = %d, %v; want %d, true", i, space, ok, 100+i)
		}
	}
}

func TestTrackerEvictsOldestBeyondCapacity(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= Capacity; i++ {
		tr.Record(wm.WindowID(i), wm.SpaceID(100+i))
	}

	evicted, ok := tr.Record(wm.WindowID(Capacity+1), 200)
	if !ok || evicted != 1 {
		t.Fatalf("evicted = %d, %v; want 1, true", evicted, ok)
	}
	if _, ok := tr.Pending(1); ok {
		t.Fatal("window 1 still pending after eviction")
	}
	for i := 2; i <= Capacity+1; i++ {
		if _, ok := tr.Pending(wm.WindowID(i)); !ok {
			t.Fatalf("window %d lost; only the oldest should have been evicted", i)
		}
	}
}

func TestTrackerUpdateDoesNotReorderEviction(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= Capacity; i++ {
		tr.Record(wm.WindowID(i), wm.SpaceID(100+i))
	}
	// Refreshing the oldest window must not move it to the back.
	tr.Record(1, 150)

	evicted, ok := tr.Record(wm.WindowID(Capacity+1), 200)
	if !ok || evicted != 1 {
		t.Fatalf("evicted = %d, %v; want 1, true (insertion order, not access order)", evicted, ok)
	}
}

func TestTrackerReusingResolvedSlotIsNotEviction(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= Capacity; i++ {
		tr.Record(wm.WindowID(i), wm.SpaceID(100+i))
	}
	tr.Resolve(1)

	if evicted, ok := tr.Record(wm.WindowID(Capacity+1), 200); ok {
		t.Fatalf("reusing the resolved slot reported eviction of window %d", evicted)
	}
}

func TestTrackerResolve(t *testing.T) {
	tr := NewTracker()
	tr.Record(23, 7)

	if !tr.Resolve(23) {
		t.Fatal("Resolve(23) = false for a pending window")
	}
	if _, ok := tr.Pending(23); ok {
		t.Fatal("window still pending after Resolve")
	}
	if got := tr.Len(); got != 1 {
		t.Fatalf("Len = %d after Resolve; want 1, slot stays occupied", got)
	}
	if tr.Resolve(23) {
		t.Fatal("second Resolve reported an unresolved entry")
	}
	if tr.Resolve(99) {
		t.Fatal("Resolve of an untracked window reported success")
	}
}

func TestTrackerReentrantCycle(t *testing.T) {
	tr := NewTracker()
	tr.Record(23, 7)
	tr.Resolve(23)

	// A later fullscreen cycle re-arms the same slot.
	tr.Record(23, 8)
	space, ok := tr.Pending(23)
	if !ok || space != 8 {
		t.Fatalf("Pending(23) = %d, %v after re-arm; want 8, true", space, ok)
	}
	if got := tr.Len(); got != 1 {
		t.Fatalf("Len = %d; want 1", got)
	}
}

func TestTrackerSnapshotOrder(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= Capacity+2; i++ {
		tr.Record(wm.WindowID(i), wm.SpaceID(100+i))
	}

	snap := tr.Snapshot()
	if len(snap) != Capacity {
		t.Fatalf("snapshot holds %d entries; want %d", len(snap), Capacity)
	}
	for n, e := range snap {
		want := wm.WindowID(3 + n) // windows 1 and 2 were evicted
		if e.Window != want {
			t.Fatalf("snapshot[%d] = window %d; want %d (oldest first)", n, e.Window, want)
		}
	}
}
