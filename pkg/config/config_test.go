package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

type testConfig struct {
	Var1 string `envconfig:"VAR1"`
	Var2 string `envconfig:"VAR2" default:"fallback"`
	Num  int    `envconfig:"NUM" default:"7"`
}

func TestLoadConfigFiles(t *testing.T) {
	// Временный .env
	tmpFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(tmpFile, []byte("VAR1=hello\nVAR2=world\n"), 0644); err != nil {
		t.Fatalf("не удалось создать временный .env: %v", err)
	}
	os.Unsetenv("VAR1")
	os.Unsetenv("VAR2")
	t.Cleanup(func() {
		os.Unsetenv("VAR1")
		os.Unsetenv("VAR2")
	})

	var cfg testConfig
	if err := LoadConfigFiles(&ConfigFile{Path: tmpFile, Config: &cfg}); err != nil {
		t.Fatalf("LoadConfigFiles вернул ошибку: %v", err)
	}
	if cfg.Var1 != "hello" || cfg.Var2 != "world" {
		t.Errorf("ожидали hello/world, получили %s/%s", cfg.Var1, cfg.Var2)
	}
	if cfg.Num != 7 {
		t.Errorf("ожидали Num=7 по умолчанию, получили %d", cfg.Num)
	}
}

func TestLoadConfigs(t *testing.T) {
	t.Setenv("VAR1", "foo")
	t.Setenv("VAR2", "bar")
	t.Setenv("NUM", "42")

	var cfg testConfig
	if err := LoadConfigs(&cfg); err != nil {
		t.Fatalf("LoadConfigs вернул ошибку: %v", err)
	}
	if cfg.Var1 != "foo" || cfg.Var2 != "bar" || cfg.Num != 42 {
		t.Errorf("неожиданная конфигурация: %+v", cfg)
	}
}

func TestLoadConfigFiles_FileNotFound(t *testing.T) {
	var cfg testConfig
	err := LoadConfigFiles(&ConfigFile{Path: "nonexistent.env", Config: &cfg})
	if err == nil {
		t.Error("ожидали ошибку при отсутствии файла, но её не было")
	}
}

func TestLoadWithOptionalEnv_MissingFile(t *testing.T) {
	t.Setenv("VAR1", "env")
	var cfg testConfig
	err := LoadWithOptionalEnv(filepath.Join(t.TempDir(), "missing.env"), zaptest.NewLogger(t), &cfg)
	if err != nil {
		t.Fatalf("отсутствующий .env не должен быть ошибкой: %v", err)
	}
	if cfg.Var1 != "env" {
		t.Errorf("ожидали Var1=env, получили %s", cfg.Var1)
	}
}
