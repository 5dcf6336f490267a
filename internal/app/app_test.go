package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"student_registry/internal/config"
	"student_registry/internal/model"

	"go.uber.org/zap/zaptest"
)

func TestOpenStore_SQLitePersists(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	cfg := config.Config{}
	cfg.StoreConfig.Backend = "SQLite"
	cfg.StoreConfig.Namespace = "test"
	cfg.StoreConfig.SQLitePath = filepath.Join(t.TempDir(), "registry.db")

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	reg := NewRegistry(cfg, store.KV, time.UTC, logger)
	if _, err := reg.Add(ctx, model.Entry{Name: "Ali", Phone: "0101234567"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = OpenStore(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	students, err := NewRegistry(cfg, store.KV, time.UTC, logger).Students(ctx)
	if err != nil || len(students) != 1 || students[0].Code != "MTD25-01" {
		t.Errorf("after reopen: %+v %v", students, err)
	}
}

func TestOpenStore_Unknown(t *testing.T) {
	cfg := config.Config{}
	cfg.StoreConfig.Backend = "mongo"
	if _, err := OpenStore(context.Background(), cfg, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoadLocation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	if got := LoadLocation("Not/AZone", logger); got != time.UTC {
		t.Errorf("bad zone must fall back to UTC, got %v", got)
	}
	if got := LoadLocation("", logger); got != time.UTC {
		t.Errorf("empty zone: %v", got)
	}
}
