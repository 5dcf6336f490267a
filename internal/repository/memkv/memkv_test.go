package memkv

import (
	"context"
	"testing"
)

func TestKVRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository()

	if _, found, _ := repo.Get(ctx, "k"); found {
		t.Fatal("empty repo returned a value")
	}

	buf := []byte(`[1,2]`)
	if err := repo.SetMany(ctx, map[string][]byte{"k": buf}); err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	buf[0] = 'x' // caller's buffer must not leak into the store

	got, found, err := repo.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(got) != `[1,2]` {
		t.Errorf("got %s", got)
	}

	_ = repo.Delete(ctx, "k")
	if _, found, _ := repo.Get(ctx, "k"); found {
		t.Error("key still present after Delete")
	}
}
