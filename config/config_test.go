package config

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Type != DatabaseTypeSQLite {
		t.Errorf("database type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.RegistrationWorkers != defaultRegistrationWorkers {
		t.Errorf("workers = %d, want %d", cfg.RegistrationWorkers, defaultRegistrationWorkers)
	}
	if filepath.Base(cfg.ColdPreviewsPath) != DefaultColdPreviewsSubDir {
		t.Errorf("cold previews path = %q", cfg.ColdPreviewsPath)
	}
	if !filepath.IsAbs(cfg.MediaStoragePath) {
		t.Errorf("media storage path %q is not absolute", cfg.MediaStoragePath)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PHOTOCAT_REGISTRATION_WORKERS", "9")
	t.Setenv("PHOTOCAT_COLDPREVIEWS_SUBDIR", "cold")
	t.Setenv("PHOTOCAT_SERVER_PORT", "-3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RegistrationWorkers != 9 {
		t.Errorf("workers = %d, want 9", cfg.RegistrationWorkers)
	}
	if filepath.Base(cfg.ColdPreviewsPath) != "cold" {
		t.Errorf("cold previews path = %q", cfg.ColdPreviewsPath)
	}
	if cfg.Server.Port != defaultServerPort {
		t.Errorf("invalid port should fall back to default, got %d", cfg.Server.Port)
	}
}

func TestLoadConfigRejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("PHOTOCAT_DATABASE_TYPE", "postgres")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}
