package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewStore_CreatesDatabase(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "facegate-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "faces.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"faces", "events", "settings"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	var name string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_events_created_at",
	).Scan(&name)
	if err != nil {
		t.Errorf("events index should exist after migrations: %v", err)
	}
}

func TestNewStore_Reopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "faces.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	id, err := s.Faces().Insert([]float32{1, 0})
	if err != nil {
		t.Fatalf("failed to insert face: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	records, err := s.Faces().All()
	if err != nil {
		t.Fatalf("failed to load faces: %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Errorf("faces after reopen = %+v, want id %d", records, id)
	}
}

func TestStore_Close(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "facegate-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	s, err := New(filepath.Join(tmpDir, "faces.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if !s.Ready() {
		t.Error("store should be ready after New")
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}
	if s.Ready() {
		t.Error("store should not be ready after close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should not return error: %v", err)
	}

	if _, err = s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestSettingRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get(SettingModelFingerprint); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Set(SettingModelFingerprint, "arcface-512"); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if err := repo.Set(SettingModelFingerprint, "arcface-128"); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}

	got, err := repo.Get(SettingModelFingerprint)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got != "arcface-128" {
		t.Errorf("expected %q, got %q", "arcface-128", got)
	}
}
