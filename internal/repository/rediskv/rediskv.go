package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVRepository хранилище ключ-значение в Redis
type KVRepository struct {
	Client *redis.Client
}

// NewKVRepository подключается к redis с короткими таймаутами
func NewKVRepository(addr, password string, db int) *KVRepository {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &KVRepository{Client: client}
}

// Ping проверяет соединение
func (r *KVRepository) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

// SetMany пишет ключи в MULTI/EXEC
func (r *KVRepository) SetMany(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %d keys: %w", len(values), err)
	}
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, key).Err()
}

func (r *KVRepository) Close() error {
	return r.Client.Close()
}
