package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mzyy94/scanrelay/internal/scan"
)

// Backend is a secondary document store fed alongside the WebDAV relay.
// Backends are best-effort: a failure is reported but never retried.
type Backend interface {
	Name() string
	Store(ctx context.Context, doc *scan.Document) error
}

// Notifier reports terminal relay failures to an operator channel.
type Notifier interface {
	Failure(ctx context.Context, file string, cause error) error
}

// Converter optionally rewrites a document before relay (e.g. wrapping a
// JPEG scan into a PDF). Returning an error keeps the original document.
type Converter func(doc *scan.Document) (*scan.Document, error)

// Dispatcher fans a decoded document out to the WebDAV engine and any
// configured secondary backends, each in its own goroutine, so the intake
// listener is never blocked by a slow destination.
type Dispatcher struct {
	Engine   *Engine
	Backends []Backend
	Notifier Notifier
	Convert  Converter
	PerScan  time.Duration // budget per document per destination

	wg sync.WaitGroup
}

// Handle accepts ownership of doc and relays it in the background.
func (d *Dispatcher) Handle(doc *scan.Document) {
	if d.Convert != nil {
		converted, err := d.Convert(doc)
		if err != nil {
			slog.Warn("conversion failed, relaying original payload", "id", doc.ID, "name", doc.Name, "err", err)
		} else if converted != nil {
			doc = converted
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := d.scanContext()
		defer cancel()

		outcome := d.Engine.Relay(ctx, doc)
		if err := outcome.Err(); err != nil {
			d.notify(ctx, doc.Name, err)
		}
	}()

	for _, backend := range d.Backends {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := d.scanContext()
			defer cancel()

			if err := backend.Store(ctx, doc); err != nil {
				slog.Error("backend store failed", "backend", backend.Name(), "id", doc.ID, "name", doc.Name, "err", err)
				d.notify(ctx, doc.Name, err)
			} else {
				slog.Info("backend store complete", "backend", backend.Name(), "id", doc.ID, "name", doc.Name)
			}
		}()
	}
}

// Wait blocks until all in-flight relays have reached a terminal outcome.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) scanContext() (context.Context, context.CancelFunc) {
	budget := d.PerScan
	if budget <= 0 {
		budget = 10 * time.Minute
	}
	return context.WithTimeout(context.Background(), budget)
}

func (d *Dispatcher) notify(ctx context.Context, file string, cause error) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.Failure(ctx, file, cause); err != nil {
		slog.Error("failure notification not delivered", "file", file, "err", err)
	}
}
