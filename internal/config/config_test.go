package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Models.TTL != 30*time.Minute || cfg.DB.SlowThreshold != 200*time.Millisecond {
		t.Fatalf("durations not decoded: ttl=%s slow=%s", cfg.Models.TTL, cfg.DB.SlowThreshold)
	}
	if cfg.Walk.MapKeys {
		t.Fatalf("map keys must be off by default")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dozer.yaml")
	body := "db:\n  dsn: shop.db\n  batch_size: 4\nmodels:\n  ttl: 5m\nwalk:\n  map_keys: true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DOZER_HTTP_ADDR", ":9090")

	cfg, loader, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loader == nil {
		t.Fatalf("expected loader")
	}
	if cfg.DB.DSN != "shop.db" || cfg.DB.BatchSize != 4 {
		t.Fatalf("file values not applied: %+v", cfg.DB)
	}
	if cfg.Models.TTL != 5*time.Minute || !cfg.Walk.MapKeys {
		t.Fatalf("file values not applied: %+v %+v", cfg.Models, cfg.Walk)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("env override not applied: %q", cfg.HTTP.Addr)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DOZER_DB_DRIVER", "oracle")
	if _, _, err := Load(""); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
