package gormkv

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestRepo(t *testing.T) *KVRepository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "kv.db")
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	repo := NewKVRepository(gdb)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestGet_Missing(t *testing.T) {
	repo := openTestRepo(t)
	_, found, err := repo.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("expected missing key")
	}
}

func TestSetMany_Upsert(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.SetMany(ctx, map[string][]byte{"a": []byte(`1`), "b": []byte(`"x"`)}); err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	if err := repo.SetMany(ctx, map[string][]byte{"a": []byte(`2`)}); err != nil {
		t.Fatalf("SetMany overwrite: %v", err)
	}

	tests := []struct {
		key, want string
	}{
		{"a", `2`},
		{"b", `"x"`},
	}
	for _, tt := range tests {
		got, found, err := repo.Get(ctx, tt.key)
		if err != nil || !found {
			t.Fatalf("Get(%q): found=%v err=%v", tt.key, found, err)
		}
		if string(got) != tt.want {
			t.Errorf("Get(%q) = %s, want %s", tt.key, got, tt.want)
		}
	}
}

func TestDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	_ = repo.SetMany(ctx, map[string][]byte{"a": []byte(`1`)})

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, found, _ := repo.Get(ctx, "a"); found {
		t.Error("key still present")
	}
}
