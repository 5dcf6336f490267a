package domain

import "context"

// KVStore хранилище ключ-значение. Значения: сериализованный JSON.
type KVStore interface {
	// Получение значения. found=false, если ключа нет
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Атомарная запись нескольких ключей
	SetMany(ctx context.Context, values map[string][]byte) error

	// Удаление ключа. Отсутствие ключа ошибкой не считается
	Delete(ctx context.Context, key string) error
}
