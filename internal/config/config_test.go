package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.CacheMaxAge != 24*time.Hour {
		t.Fatalf("expected 24h cache max age, got %s", cfg.CacheMaxAge)
	}
	if cfg.Debounce != 250*time.Millisecond {
		t.Fatalf("expected 250ms debounce, got %s", cfg.Debounce)
	}
	if cfg.RowCap != 2000 {
		t.Fatalf("expected row cap 2000, got %d", cfg.RowCap)
	}
	if !cfg.DemoFallback {
		t.Fatalf("expected demo fallback enabled by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOAD_TIMEOUT", "10s")
	t.Setenv("ROW_CAP", "500")
	t.Setenv("ATTACHMENT_TOKEN", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LoadTimeout != 10*time.Second {
		t.Fatalf("expected 10s, got %s", cfg.LoadTimeout)
	}
	if cfg.RowCap != 500 {
		t.Fatalf("expected 500, got %d", cfg.RowCap)
	}
	if cfg.AttachmentToken != "secret" {
		t.Fatalf("expected token from env, got %q", cfg.AttachmentToken)
	}
}
