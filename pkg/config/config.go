package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// ConfigFile путь к .env файлу и указатель на структуру с тегами envconfig.
type ConfigFile struct {
	// Путь к файлу. Пустой путь: только переменные окружения.
	Path string
	// Указатель на структуру.
	Config interface{}
}

// LoadConfigFiles загружает несколько .env файлов и разбирает их в структуры.
// Отсутствующий файл: ошибка.
func LoadConfigFiles(configFiles ...*ConfigFile) error {
	for _, configFile := range configFiles {
		if configFile.Path != "" {
			if err := godotenv.Load(configFile.Path); err != nil {
				return err
			}
		}

		if err := envconfig.Process("", configFile.Config); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfigs разбирает переменные окружения в структуры.
//   - config - указатели на структуры с тегами envconfig.
func LoadConfigs(config ...interface{}) error {
	for _, cfg := range config {
		if err := envconfig.Process("", cfg); err != nil {
			return err
		}
	}
	return nil
}

// LoadWithOptionalEnv пытается прочитать .env по пути path, но его отсутствие не ошибка:
// в этом случае используются только переменные окружения.
func LoadWithOptionalEnv(path string, logger *zap.Logger, config ...interface{}) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			logger.Info("no .env file found, using environment variables", zap.String("path", path))
		}
	}
	return LoadConfigs(config...)
}
