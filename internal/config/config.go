// Package config loads the process configuration from environment variables.
// The resulting Config is immutable and shared read-only by every concurrent
// relay operation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, fixed after startup.
type Config struct {
	// WebDAV target (required)
	WebDAVURL  string
	WebDAVUser string
	WebDAVPass string
	Subdir     string

	// Intake listeners
	FTPPort  int // 0 disables FTP intake
	HTTPPort int // 0 disables HTTP intake
	FTPUser  string
	FTPPass  string

	// Limits and retry schedule
	MaxSize       int64 // bytes
	RetryMax      int
	RetryBase     time.Duration
	WebDAVTimeout time.Duration

	// Optional peripherals
	ConvertJPEG    bool
	MDNSName       string // empty disables mDNS advertisement
	PaperlessURL   string
	PaperlessToken string
	TelegramToken  string
	TelegramChat   string

	LogLevel string
}

// FromEnv assembles a Config from the process environment. A missing
// required setting is a startup-fatal configuration error; it is never
// retried or handled at runtime.
func FromEnv() (Config, error) {
	// best-effort: a missing .env file is the normal case
	godotenv.Load()

	cfg := Config{
		WebDAVURL:      os.Getenv("WEBDAV_URL"),
		WebDAVUser:     os.Getenv("WEBDAV_USER"),
		WebDAVPass:     os.Getenv("WEBDAV_PASS"),
		Subdir:         os.Getenv("WEBDAV_SUBDIR"),
		FTPPort:        envInt("SCANRELAY_FTP_PORT", 2121),
		HTTPPort:       envInt("SCANRELAY_HTTP_PORT", 3030),
		FTPUser:        os.Getenv("SCANRELAY_FTP_USER"),
		FTPPass:        os.Getenv("SCANRELAY_FTP_PASS"),
		MaxSize:        int64(envInt("SCANRELAY_MAX_SIZE_MB", 256)) * 1024 * 1024,
		RetryMax:       envInt("SCANRELAY_RETRY_MAX", 5),
		RetryBase:      time.Duration(envInt("SCANRELAY_RETRY_BASE_MS", 500)) * time.Millisecond,
		WebDAVTimeout:  time.Duration(envInt("SCANRELAY_WEBDAV_TIMEOUT_S", 30)) * time.Second,
		ConvertJPEG:    envBool("SCANRELAY_CONVERT_JPEG_PDF"),
		MDNSName:       os.Getenv("SCANRELAY_MDNS_NAME"),
		PaperlessURL:   os.Getenv("PAPERLESS_URL"),
		PaperlessToken: os.Getenv("PAPERLESS_TOKEN"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChat:   os.Getenv("TELEGRAM_CHAT"),
		LogLevel:       envStr("SCANRELAY_LOG_LEVEL", "info"),
	}

	var missing []string
	if cfg.WebDAVURL == "" {
		missing = append(missing, "WEBDAV_URL")
	}
	if cfg.WebDAVUser == "" {
		missing = append(missing, "WEBDAV_USER")
	}
	if cfg.WebDAVPass == "" {
		missing = append(missing, "WEBDAV_PASS")
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing required configuration: %v", missing)
	}

	if cfg.FTPPort <= 0 && cfg.HTTPPort <= 0 {
		return cfg, errors.New("both intake listeners disabled, nothing to do")
	}
	if cfg.PaperlessURL != "" && cfg.PaperlessToken == "" {
		return cfg, errors.New("PAPERLESS_URL set without PAPERLESS_TOKEN")
	}
	if cfg.TelegramToken != "" && cfg.TelegramChat == "" {
		return cfg, errors.New("TELEGRAM_TOKEN set without TELEGRAM_CHAT")
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
