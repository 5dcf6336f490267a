package memkv

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// KVRepository хранилище в памяти процесса. Данные теряются при перезапуске.
type KVRepository struct {
	cache *gocache.Cache
	mu    sync.Mutex // SetMany должен быть атомарным относительно Get
}

func NewKVRepository() *KVRepository {
	return &KVRepository{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (r *KVRepository) Get(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, found := r.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	val, ok := x.([]byte)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (r *KVRepository) SetMany(_ context.Context, values map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range values {
		stored := make([]byte, len(v))
		copy(stored, v)
		r.cache.Set(k, stored, gocache.NoExpiration)
	}
	return nil
}

func (r *KVRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(key)
	return nil
}
