package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/mzyy94/scanrelay/internal/config"
	"github.com/mzyy94/scanrelay/internal/convert"
	"github.com/mzyy94/scanrelay/internal/intake"
	"github.com/mzyy94/scanrelay/internal/notify"
	"github.com/mzyy94/scanrelay/internal/paperless"
	"github.com/mzyy94/scanrelay/internal/relay"
	"github.com/mzyy94/scanrelay/internal/scan"
	"github.com/mzyy94/scanrelay/internal/webdav"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
	slog.Info("starting scanrelay", "webdav", cfg.WebDAVURL, "subdir", cfg.Subdir,
		"ftp_port", cfg.FTPPort, "http_port", cfg.HTTPPort)

	dav, err := webdav.New(cfg.WebDAVURL, cfg.WebDAVUser, cfg.WebDAVPass, cfg.WebDAVTimeout)
	if err != nil {
		slog.Error("invalid WebDAV target", "err", err)
		os.Exit(1)
	}

	engine := relay.NewEngine(dav, cfg.Subdir, relay.Options{
		MaxAttempts:     cfg.RetryMax,
		InitialInterval: cfg.RetryBase,
		MaxInterval:     30 * time.Second,
	})

	dispatcher := &relay.Dispatcher{Engine: engine}
	if cfg.PaperlessURL != "" {
		pl, err := paperless.New(cfg.PaperlessURL, cfg.PaperlessToken)
		if err != nil {
			slog.Error("invalid Paperless target", "err", err)
			os.Exit(1)
		}
		dispatcher.Backends = append(dispatcher.Backends, pl)
		slog.Info("paperless backend enabled", "url", cfg.PaperlessURL)
	}
	if cfg.TelegramToken != "" {
		dispatcher.Notifier = notify.NewTelegram(cfg.TelegramChat, cfg.TelegramToken)
		slog.Info("telegram notifications enabled", "chat", cfg.TelegramChat)
	}
	if cfg.ConvertJPEG {
		dispatcher.Convert = convert.JPEGDocument
		slog.Info("JPEG to PDF conversion enabled")
	}

	namer := scan.NewNamer()
	sink := dispatcher.Handle

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// FTP intake
	var ftpListener *intake.FTPListener
	if cfg.FTPPort > 0 {
		ftpListener = intake.NewFTPListener(intake.FTPConfig{
			Addr:    fmt.Sprintf(":%d", cfg.FTPPort),
			User:    cfg.FTPUser,
			Pass:    cfg.FTPPass,
			MaxSize: cfg.MaxSize,
		}, namer, sink)
		if err := ftpListener.Listen(); err != nil {
			slog.Error("FTP listener bind failed", "err", err)
			os.Exit(1)
		}
		go func() {
			if err := ftpListener.Serve(ctx); err != nil {
				slog.Error("FTP listener error", "err", err)
				cancel()
			}
		}()
	}

	// HTTP intake
	var httpServer *http.Server
	if cfg.HTTPPort > 0 {
		handler := intake.NewHTTPHandler(intake.HTTPConfig{MaxSize: cfg.MaxSize}, namer, sink,
			func() (bool, string) {
				if engine.Degraded() {
					return true, "webdav credentials rejected"
				}
				return false, ""
			})
		httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           logMiddleware(handler),
			ReadHeaderTimeout: 10 * time.Second,
		}
		ln, err := net.Listen("tcp", httpServer.Addr)
		if err != nil {
			slog.Error("HTTP listener bind failed", "err", err)
			os.Exit(1)
		}
		go func() {
			slog.Info("http intake listening", "addr", httpServer.Addr)
			if err := httpServer.Serve(ln); err != http.ErrServerClosed {
				slog.Error("HTTP intake error", "err", err)
				cancel()
			}
		}()
	}

	// mDNS advertisement of the intake endpoint
	if cfg.MDNSName != "" && cfg.HTTPPort > 0 {
		mdnsServer, err := zeroconf.Register(
			cfg.MDNSName,
			"_scanrelay._tcp",
			"local.",
			cfg.HTTPPort,
			[]string{"txtvers=1", "ty=" + cfg.MDNSName, "path=/Image.pdf"},
			nil,
		)
		if err != nil {
			slog.Warn("mDNS registration failed", "err", err)
		} else {
			defer mdnsServer.Shutdown()
			slog.Info("mDNS registered", "name", cfg.MDNSName, "service", "_scanrelay._tcp")
		}
	}

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown error", "err", err)
		}
	}

	// Let in-flight relays reach a terminal outcome
	dispatcher.Wait()
	slog.Info("shutdown complete")
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// responseRecorder captures the status code for logging.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
