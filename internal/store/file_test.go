package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreSaveGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	rec := Record{
		Name:          "web",
		PID:           4242,
		State:         "unhealthy",
		RestartsToday: 2,
		LastRestartAt: time.Now().Add(-time.Hour).Truncate(time.Second),
		DayKey:        "2026-08-24",
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, "web")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != rec.Name || got.RestartsToday != rec.RestartsToday || got.DayKey != rec.DayKey {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("UpdatedAt not stamped on save")
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := s.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, Record{Name: "web", State: "healthy", RestartsToday: 1, DayKey: "2026-08-24"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, Record{Name: "web", State: "restarting", RestartsToday: 2, DayKey: "2026-08-24"}); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, err := s.Get(ctx, "web")
	if err != nil || got.State != "restarting" || got.RestartsToday != 2 {
		t.Fatalf("overwrite not visible: %+v err=%v", got, err)
	}
}

func TestFileStoreListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	for _, name := range []string{"beta", "alpha"} {
		if err := s.Save(ctx, Record{Name: name, State: "healthy", DayKey: "2026-08-24"}); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
	// Stray files in the state dir must not break listing.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write stray file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte("{"), 0o600); err != nil {
		t.Fatalf("write hidden file: %v", err)
	}
	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].Name != "alpha" || recs[1].Name != "beta" {
		t.Fatalf("unexpected listing: %+v", recs)
	}
}

func TestFileStoreDeleteIdempotent(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, Record{Name: "web", State: "healthy", DayKey: "2026-08-24"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, "web"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "web"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
	if _, err := s.Get(ctx, "web"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record survived delete: %v", err)
	}
}
