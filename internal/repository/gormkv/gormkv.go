package gormkv

import (
	"context"
	"errors"
	"fmt"

	"student_registry/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVRepository хранилище ключ-значение поверх gorm (sqlite или postgres)
type KVRepository struct {
	DB *gorm.DB
}

func NewKVRepository(db *gorm.DB) *KVRepository {
	return &KVRepository{DB: db}
}

// Migrate создает таблицу registry_kv
func (r *KVRepository) Migrate() error {
	return r.DB.AutoMigrate(&model.KeyValue{})
}

// Получение значения по ключу
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var kv model.KeyValue
	err := r.DB.WithContext(ctx).Where("name = ?", key).First(&kv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return []byte(kv.Value), true, nil
}

// Запись нескольких ключей одной транзакцией
func (r *KVRepository) SetMany(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]model.KeyValue, 0, len(values))
	for k, v := range values {
		rows = append(rows, model.KeyValue{Name: k, Value: string(v)})
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("upsert %d keys: %w", len(rows), err)
		}
		return nil
	})
}

// Удаление ключа
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	return r.DB.WithContext(ctx).Where("name = ?", key).Delete(&model.KeyValue{}).Error
}
