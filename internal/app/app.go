package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"student_registry/internal/config"
	"student_registry/internal/domain"
	"student_registry/internal/repository/gormkv"
	"student_registry/internal/repository/memkv"
	"student_registry/internal/repository/rediskv"
	"student_registry/internal/service/registry"
	"student_registry/internal/service/xlsx"
	"student_registry/pkg/db/postgres"
	"student_registry/pkg/db/sqlite"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Хранилища
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Store открытое хранилище и функция его закрытия
type Store struct {
	KV    domain.KVStore
	Close func() error
}

// OpenStore открывает хранилище, выбранное в STORE_BACKEND
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.StoreConfig.Backend))
	logger = logger.With(zap.String("backend", backend))

	switch backend {
	case BackendSQLite, "":
		db, err := sqlite.NewGormConnection(cfg.StoreConfig.SQLitePath)
		if err != nil {
			return nil, err
		}
		return openGorm(db, logger)
	case BackendPostgres:
		db, err := postgres.NewGormConnection(cfg.DBConfig)
		if err != nil {
			return nil, err
		}
		return openGorm(db, logger)
	case BackendRedis:
		repo := rediskv.NewKVRepository(cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB)
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisConfig.Addr, err)
		}
		logger.Info("store opened")
		return &Store{KV: repo, Close: repo.Close}, nil
	case BackendMemory:
		logger.Warn("in-memory store, data is lost on restart")
		return &Store{KV: memkv.NewKVRepository(), Close: func() error { return nil }}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

func openGorm(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	repo := gormkv.NewKVRepository(db)
	if err := repo.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate kv table: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	logger.Info("store opened")
	return &Store{KV: repo, Close: sqlDB.Close}, nil
}

// LoadLocation часовой пояс для отображения времени; при ошибке UTC
func LoadLocation(name string, logger *zap.Logger) *time.Location {
	if strings.TrimSpace(name) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}

// NewRegistry реестр поверх открытого хранилища
func NewRegistry(cfg config.Config, kv domain.KVStore, loc *time.Location, logger *zap.Logger) *registry.Registry {
	return registry.New(registry.Config{
		Namespace:     cfg.StoreConfig.Namespace,
		DefaultPrefix: cfg.RegistryConfig.DefaultPrefix,
		CountryCode:   cfg.RegistryConfig.CountryCode,
	}, kv, xlsx.NewCodec(loc), logger)
}
