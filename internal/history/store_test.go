package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, v := range []string{"1.1.0", "1.2.0", "1.3.0"} {
		if _, err := s.Record(ctx, UpdateRecord{
			FromVersion: "1.0.0",
			ToVersion:   v,
			ArchiveURL:  "https://example.com/" + v + ".zip",
			AppliedAt:   base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("Record(%s): %v", v, err)
		}
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].ToVersion != "1.3.0" || all[2].ToVersion != "1.1.0" {
		t.Errorf("order = %s..%s, want newest first", all[0].ToVersion, all[2].ToVersion)
	}
	if !all[0].AppliedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("AppliedAt = %v", all[0].AppliedAt)
	}

	limited, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len = %d, want 2", len(limited))
	}
}

func TestRecordDefaultsAppliedAt(t *testing.T) {
	s := openTestStore(t)
	fixed := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	rec, err := s.Record(context.Background(), UpdateRecord{FromVersion: "a", ToVersion: "b"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.ID == 0 {
		t.Error("ID not assigned")
	}
	if !rec.AppliedAt.Equal(fixed) {
		t.Errorf("AppliedAt = %v, want %v", rec.AppliedAt, fixed)
	}
}

func TestLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Latest(ctx); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("Latest on empty store = %v, want ErrNoHistory", err)
	}

	if err := s.RecordApplied(ctx, "1.0.0", "2.0.0", "https://example.com/2.zip"); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}
	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.FromVersion != "1.0.0" || got.ToVersion != "2.0.0" || got.ArchiveURL != "https://example.com/2.zip" {
		t.Errorf("Latest = %+v", got)
	}
}

func TestOpenFileReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.RecordApplied(ctx, "1", "2", ""); err != nil {
		t.Fatalf("RecordApplied: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	records, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("len = %d, want 1 after reopen", len(records))
	}
}
