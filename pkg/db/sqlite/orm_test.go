package sqlite

import (
	"path/filepath"
	"testing"
)

func TestNewGormConnection_WAL(t *testing.T) {
	db, err := NewGormConnection(filepath.Join(t.TempDir(), "wal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var mode string
	db.Raw("PRAGMA journal_mode").Scan(&mode)
	if mode != "wal" {
		t.Errorf("expected journal_mode=wal, got %q", mode)
	}
}
