package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spacepatch/spacepatch/engine"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestAppendAndRecent(t *testing.T) {
	store, _ := openTestStore(t)

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		store.Append(Record{
			RunID:  "run-1",
			Kind:   "tracked",
			Window: 23,
			Space:  2,
			App:    "org.mozilla.firefox",
			At:     base.Add(time.Duration(i) * time.Second),
		})
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Recent returned %d records; want 3", len(records))
	}
	// Newest first.
	if !records[0].At.After(records[2].At) {
		t.Fatalf("records not ordered newest first: %v, %v", records[0].At, records[2].At)
	}
	if records[0].RunID != "run-1" || records[0].App != "org.mozilla.firefox" {
		t.Fatalf("record fields lost: %+v", records[0])
	}
}

func TestForWindowFilters(t *testing.T) {
	store, _ := openTestStore(t)

	store.Append(Record{RunID: "run-1", Kind: "tracked", Window: 23, Space: 2})
	store.Append(Record{RunID: "run-1", Kind: "repaired", Window: 23, Space: 2})
	store.Append(Record{RunID: "run-1", Kind: "tracked", Window: 40, Space: 3})
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	records, err := store.ForWindow(23, 10)
	if err != nil {
		t.Fatalf("ForWindow: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ForWindow returned %d records; want 2", len(records))
	}
	for _, rec := range records {
		if rec.Window != 23 {
			t.Fatalf("record for window %d leaked into filter", rec.Window)
		}
	}
}

func TestCountByKind(t *testing.T) {
	store, _ := openTestStore(t)

	kinds := []string{"tracked", "tracked", "repaired", "deferred"}
	for _, kind := range kinds {
		store.Append(Record{RunID: "run-1", Kind: kind, Window: 1})
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	counts, err := store.CountByKind()
	if err != nil {
		t.Fatalf("CountByKind: %v", err)
	}
	if counts["tracked"] != 2 || counts["repaired"] != 1 || counts["deferred"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Append(Record{RunID: "run-1", Kind: "repaired", Window: 23, Space: 2})
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 || records[0].Kind != "repaired" {
		t.Fatalf("records after reopen = %+v; want the one repaired record", records)
	}
}

func TestCorrectionWriterPersistsEvents(t *testing.T) {
	store, _ := openTestStore(t)
	writer := NewCorrectionWriter(store, "run-9")

	writer.OnCorrection(engine.CorrectionEvent{
		Type:   engine.CorrectionRepaired,
		Window: 23,
		Space:  2,
		App:    "org.mozilla.firefox",
		Detail: "view 7",
		At:     time.Now(),
	})
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	records, err := store.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records; want 1", len(records))
	}
	rec := records[0]
	if rec.RunID != "run-9" || rec.Kind != "repaired" || rec.Window != 23 || rec.Detail != "view 7" {
		t.Fatalf("record = %+v", rec)
	}
}
