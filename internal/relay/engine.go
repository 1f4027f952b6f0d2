// Package relay delivers decoded scans to the WebDAV target: it computes the
// destination path, ensures the directory tree exists, uploads the payload,
// and classifies failures into retryable and fatal outcomes with bounded
// exponential backoff between attempts.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mzyy94/scanrelay/internal/scan"
	"github.com/mzyy94/scanrelay/internal/webdav"
)

// Options tunes the retry schedule of an Engine.
type Options struct {
	MaxAttempts     int           // total attempts per scan, minimum 1
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // backoff delay ceiling
}

// DefaultOptions matches the documented defaults (5 attempts, 500ms base).
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

// Engine relays documents to a fixed WebDAV target. It is safe for
// concurrent use; the only mutable state is the sticky auth-failure flag.
type Engine struct {
	dav    *webdav.Client
	subdir string // configured subdirectory below the base URL, may be empty
	opts   Options

	authBroken atomic.Bool
	sleep      func(time.Duration) // overridable for tests
}

// NewEngine creates an Engine uploading below the optional subdir.
func NewEngine(dav *webdav.Client, subdir string, opts Options) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval < opts.InitialInterval {
		opts.MaxInterval = opts.InitialInterval
	}
	return &Engine{
		dav:    dav,
		subdir: scan.CleanSubdir(subdir),
		opts:   opts,
		sleep:  time.Sleep,
	}
}

// Degraded reports whether the last credential-classified response was a
// rejection. Used by the health endpoint so an operator notices a broken
// credential configuration without a restart.
func (e *Engine) Degraded() bool { return e.authBroken.Load() }

// Relay delivers one document and returns its terminal outcome. Retryable
// failures are retried with exponential backoff up to the attempt ceiling;
// exhausting the ceiling converts the outcome to fatal. Each attempt issues
// real HTTP traffic; none is skipped.
func (e *Engine) Relay(ctx context.Context, doc *scan.Document) Outcome {
	dirs := e.dirSegments(doc)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.InitialInterval
	bo.MaxInterval = e.opts.MaxInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	var out Outcome
	for attempt := 1; ; attempt++ {
		out = e.attempt(ctx, dirs, doc)
		out.Attempts = attempt

		switch out.Status {
		case StatusSuccess:
			if e.authBroken.CompareAndSwap(true, false) {
				slog.Info("webdav credentials working again", "doc", doc.Name)
			}
			slog.Info("relay complete", "id", doc.ID, "name", doc.Name, "bytes", doc.Size(), "attempts", attempt)
			return out
		case StatusFatal:
			e.noteFatal(doc, out)
			return out
		}

		if attempt >= e.opts.MaxAttempts {
			out.Status = StatusFatal
			out.Reason = fmt.Sprintf("retries exhausted: %s", out.Reason)
			e.noteFatal(doc, out)
			return out
		}

		wait := bo.NextBackOff()
		slog.Warn("relay attempt failed, retrying", "id", doc.ID, "name", doc.Name,
			"attempt", attempt, "reason", out.Reason, "backoff", wait)
		e.sleep(wait)
		if ctx.Err() != nil {
			out.Status = StatusFatal
			out.Reason = fmt.Sprintf("canceled: %s", out.Reason)
			return out
		}
	}
}

func (e *Engine) noteFatal(doc *scan.Document, out Outcome) {
	if out.Auth {
		if e.authBroken.CompareAndSwap(false, true) {
			slog.Error("webdav credentials rejected, relays will fail until configuration is fixed",
				"id", doc.ID, "name", doc.Name, "reason", out.Reason)
		} else {
			slog.Warn("relay rejected by broken credentials", "id", doc.ID, "name", doc.Name)
		}
		return
	}
	slog.Error("relay failed", "id", doc.ID, "name", doc.Name, "attempts", out.Attempts, "reason", out.Reason)
}

// dirSegments returns the directory path segments below the base URL for a
// document: the configured subdirectory followed by the device hint.
func (e *Engine) dirSegments(doc *scan.Document) []string {
	var dirs []string
	if e.subdir != "" {
		dirs = append(dirs, e.subdir)
	}
	if hint := scan.CleanSubdir(doc.Subdir); hint != "" {
		dirs = append(dirs, hint)
	}
	return dirs
}

// attempt performs one full delivery attempt: ensure directories, then PUT.
func (e *Engine) attempt(ctx context.Context, dirs []string, doc *scan.Document) Outcome {
	for i := range dirs {
		if out, ok := e.ensureDir(ctx, dirs[:i+1]); !ok {
			return out
		}
	}

	status, err := e.dav.Put(ctx, append(append([]string{}, dirs...), doc.Name), doc.Data)
	if err != nil {
		return netOutcome("put", err)
	}
	return classifyPut(status)
}

// ensureDir makes sure one directory level exists. "Already exists" answers
// to MKCOL are success: a concurrent scan may have created the collection
// between our PROPFIND and MKCOL.
func (e *Engine) ensureDir(ctx context.Context, segs []string) (Outcome, bool) {
	exists, status, err := e.dav.Exists(ctx, segs)
	if err != nil {
		return netOutcome("propfind", err), false
	}
	if exists {
		return Outcome{}, true
	}
	if status != http.StatusNotFound {
		return classifyStatus("propfind", status), false
	}

	status, err = e.dav.Mkcol(ctx, segs)
	if err != nil {
		return netOutcome("mkcol", err), false
	}
	switch {
	case status >= 200 && status < 300:
		return Outcome{}, true
	case status == http.StatusMethodNotAllowed, status == http.StatusMovedPermanently:
		// collection already present, race lost but goal reached
		return Outcome{}, true
	default:
		return classifyStatus("mkcol", status), false
	}
}

func classifyPut(status int) Outcome {
	if status >= 200 && status < 300 {
		return Outcome{Status: StatusSuccess}
	}
	return classifyStatus("put", status)
}

// classifyStatus maps a non-success HTTP status to an outcome: auth statuses
// are fatal for the whole configuration, 5xx is retryable, any other 4xx is
// fatal for this scan only.
func classifyStatus(op string, status int) Outcome {
	reason := fmt.Sprintf("%s: %d %s", op, status, http.StatusText(status))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Outcome{Status: StatusFatal, Reason: reason, Auth: true}
	case status >= 500:
		return Outcome{Status: StatusRetryable, Reason: reason}
	default:
		return Outcome{Status: StatusFatal, Reason: reason}
	}
}

// netOutcome maps a transport-level failure to a retryable outcome.
func netOutcome(op string, err error) Outcome {
	var ne *webdav.NetError
	if !errors.As(err, &ne) {
		// non-network client error, e.g. a canceled context
		return Outcome{Status: StatusRetryable, Reason: fmt.Sprintf("%s: %v", op, err)}
	}
	return Outcome{Status: StatusRetryable, Reason: ne.Error()}
}
