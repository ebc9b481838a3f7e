package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Jobs.Retention != time.Hour {
		t.Fatalf("expected 1h retention, got %s", cfg.Jobs.Retention)
	}
	if cfg.Jobs.SweepSchedule != "@every 30m" {
		t.Fatalf("unexpected sweep schedule %q", cfg.Jobs.SweepSchedule)
	}
	if cfg.Upload.MaxBytes != 30*1024*1024 {
		t.Fatalf("unexpected max bytes %d", cfg.Upload.MaxBytes)
	}
	if cfg.Upload.RateLimit != 20 || cfg.Upload.RateWindow != 30*time.Minute {
		t.Fatalf("unexpected rate limit %d/%s", cfg.Upload.RateLimit, cfg.Upload.RateWindow)
	}
	if cfg.Segmenter.Model != "u2net_human" {
		t.Fatalf("unexpected segmenter model %q", cfg.Segmenter.Model)
	}
	if len(cfg.Upload.AllowedExtensions) != 7 {
		t.Fatalf("expected 7 allowed extensions, got %v", cfg.Upload.AllowedExtensions)
	}
	if got := cfg.Redis.Addr(); got != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JOB_RETENTION", "90m")
	t.Setenv("SEGMENTER_MODEL", "isnet-general-use")
	t.Setenv("API_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Jobs.Retention != 90*time.Minute {
		t.Fatalf("expected 90m retention, got %s", cfg.Jobs.Retention)
	}
	if cfg.Segmenter.Model != "isnet-general-use" {
		t.Fatalf("unexpected model %q", cfg.Segmenter.Model)
	}
	if cfg.API.Port != 9000 {
		t.Fatalf("unexpected port %d", cfg.API.Port)
	}
}

func TestLoadRequiresMinIOCredentials(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without minio credentials")
	}
}
