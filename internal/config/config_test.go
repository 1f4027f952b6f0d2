package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("WEBDAV_URL", "https://dav.example.com/scans")
	t.Setenv("WEBDAV_USER", "alice")
	t.Setenv("WEBDAV_PASS", "hunter2")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.FTPPort != 2121 || cfg.HTTPPort != 3030 {
		t.Errorf("ports = %d/%d, want 2121/3030", cfg.FTPPort, cfg.HTTPPort)
	}
	if cfg.MaxSize != 256<<20 {
		t.Errorf("MaxSize = %d, want 256MiB", cfg.MaxSize)
	}
	if cfg.RetryMax != 5 {
		t.Errorf("RetryMax = %d, want 5", cfg.RetryMax)
	}
	if cfg.RetryBase != 500*time.Millisecond {
		t.Errorf("RetryBase = %v, want 500ms", cfg.RetryBase)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestFromEnvMissingRequired(t *testing.T) {
	t.Setenv("WEBDAV_URL", "https://dav.example.com")
	t.Setenv("WEBDAV_USER", "")
	t.Setenv("WEBDAV_PASS", "")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("FromEnv() should fail without credentials")
	}
	if !strings.Contains(err.Error(), "WEBDAV_USER") || !strings.Contains(err.Error(), "WEBDAV_PASS") {
		t.Errorf("error = %v, should name every missing variable", err)
	}
}

func TestFromEnvBothListenersDisabled(t *testing.T) {
	setRequired(t)
	t.Setenv("SCANRELAY_FTP_PORT", "0")
	t.Setenv("SCANRELAY_HTTP_PORT", "0")

	if _, err := FromEnv(); err == nil {
		t.Error("FromEnv() should reject a configuration with no listeners")
	}
}

func TestFromEnvIncompletePeripherals(t *testing.T) {
	setRequired(t)
	t.Setenv("PAPERLESS_URL", "https://paperless.local")

	if _, err := FromEnv(); err == nil {
		t.Error("FromEnv() should reject PAPERLESS_URL without a token")
	}

	t.Setenv("PAPERLESS_URL", "")
	t.Setenv("TELEGRAM_TOKEN", "tok")
	if _, err := FromEnv(); err == nil {
		t.Error("FromEnv() should reject TELEGRAM_TOKEN without a chat id")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("WEBDAV_SUBDIR", "inbox")
	t.Setenv("SCANRELAY_FTP_PORT", "2100")
	t.Setenv("SCANRELAY_MAX_SIZE_MB", "8")
	t.Setenv("SCANRELAY_RETRY_MAX", "3")
	t.Setenv("SCANRELAY_CONVERT_JPEG_PDF", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Subdir != "inbox" {
		t.Errorf("Subdir = %q, want inbox", cfg.Subdir)
	}
	if cfg.FTPPort != 2100 {
		t.Errorf("FTPPort = %d, want 2100", cfg.FTPPort)
	}
	if cfg.MaxSize != 8<<20 {
		t.Errorf("MaxSize = %d, want 8MiB", cfg.MaxSize)
	}
	if cfg.RetryMax != 3 {
		t.Errorf("RetryMax = %d, want 3", cfg.RetryMax)
	}
	if !cfg.ConvertJPEG {
		t.Error("ConvertJPEG should be enabled")
	}
}
