package intake

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mzyy94/scanrelay/internal/scan"
)

// HTTPConfig configures the HTTP intake surface.
type HTTPConfig struct {
	MaxSize int64 // per-document payload limit in bytes
}

// Health reports the relay's current condition for the health endpoint.
type Health func() (degraded bool, reason string)

type httpIntake struct {
	cfg    HTTPConfig
	namer  *scan.Namer
	sink   Sink
	health Health
}

// NewHTTPHandler builds the HTTP intake routes: the fixed push path scanner
// firmwares use (PUT /Image.pdf), a named variant (PUT /scan/{filename}),
// a health probe, and the HEAD probes devices issue before pushing.
func NewHTTPHandler(cfg HTTPConfig, namer *scan.Namer, sink Sink, health Health) http.Handler {
	h := &httpIntake{cfg: cfg, namer: namer, sink: sink, health: health}

	r := chi.NewRouter()
	r.Put("/Image.pdf", h.put)
	r.Put("/scan/{filename}", h.put)
	r.Get("/health", h.handleHealth)
	r.Head("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Head("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return r
}

func (h *httpIntake) put(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" {
		name = "Image.pdf"
	}

	declared := r.ContentLength // -1 when the client did not declare one
	data, err := Spool(r.Body, declared, h.cfg.MaxSize)
	switch {
	case err == nil:
	case errors.Is(err, ErrTooLarge):
		slog.Warn("http transfer rejected", "name", name, "err", err)
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	default:
		// includes declared-length mismatch and truncated bodies
		slog.Warn("http transfer discarded", "name", name, "err", err)
		http.Error(w, "bad transfer", http.StatusBadRequest)
		return
	}

	doc := h.namer.NewDocument(name, "", data)
	slog.Info("scan received", "id", doc.ID, "client_name", name, "name", doc.Name,
		"bytes", len(data), "remote", r.RemoteAddr)
	h.sink(doc)
	w.WriteHeader(http.StatusOK)
}

func (h *httpIntake) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := "ok", http.StatusOK
	var reason string
	if h.health != nil {
		if degraded, why := h.health(); degraded {
			status, code, reason = "degraded", http.StatusServiceUnavailable, why
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status, "reason": reason})
}
