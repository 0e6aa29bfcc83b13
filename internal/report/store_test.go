package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestArchiveAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rep := sampleReport()
	id, err := store.Archive(ctx, rep, FormatMarkdown, "/tmp/run.md")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if id == "" {
		t.Fatal("Archive returned empty id")
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.ID != id {
		t.Errorf("ID = %q, want %q", e.ID, id)
	}
	if e.Model != rep.Model || e.TaskCount != rep.TaskCount {
		t.Errorf("entry = %+v", e)
	}
	if e.Format != "markdown" {
		t.Errorf("format = %q, want markdown", e.Format)
	}
	if !e.Timestamp.Equal(rep.Timestamp) {
		t.Errorf("timestamp = %v, want %v", e.Timestamp, rep.Timestamp)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rep := sampleReport()
		rep.Timestamp = rep.Timestamp.Add(time.Duration(i) * time.Hour)
		rep.TaskCount = i
		if _, err := store.Archive(ctx, rep, FormatJSON, ""); err != nil {
			t.Fatalf("Archive %d: %v", i, err)
		}
	}

	entries, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].TaskCount != 4 {
		t.Errorf("newest entry first: got task count %d, want 4", entries[0].TaskCount)
	}
}

func TestRecentEmpty(t *testing.T) {
	store := newTestStore(t)

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}
