package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartmarks/smartmarks/internal/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}

	if cfg.Storage.Backend != "json" {
		t.Errorf("expected default storage backend 'json', got %q", cfg.Storage.Backend)
	}
	if cfg.AI.Provider != "anthropic" {
		t.Errorf("expected default ai provider 'anthropic', got %q", cfg.AI.Provider)
	}

	// Load creates the file with defaults
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
}

func TestLoad_AppliesDefaultsForMissingFields(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	partial := "storage:\n  backend: sqlite\nai:\n  provider: gemini\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected 'sqlite', got %q", cfg.Storage.Backend)
	}
	if cfg.AI.Provider != "gemini" {
		t.Errorf("expected 'gemini', got %q", cfg.AI.Provider)
	}
	if cfg.AI.Timeout() != 30*time.Second {
		t.Errorf("expected default timeout, got %v", cfg.AI.Timeout())
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level, got %q", cfg.Log.Level)
	}
	if cfg.Auth.InsecureSkipVerify {
		t.Error("expected signature verification on by default")
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir", "config.yaml")

	cfg := config.Default()
	if err := config.Save(path, &cfg); err != nil {
		t.Fatalf("failed to save with nested dir: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
}
