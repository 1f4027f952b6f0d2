package intake

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mzyy94/scanrelay/internal/scan"
)

// FTPConfig configures the FTP intake listener.
type FTPConfig struct {
	Addr        string        // listen address, e.g. ":2121"
	User        string        // optional intake login; empty accepts any
	Pass        string        //
	MaxSize     int64         // per-document payload limit in bytes
	IdleTimeout time.Duration // control-connection read deadline
	DataTimeout time.Duration // passive data connection deadline
}

// Sink receives ownership of each decoded document.
type Sink func(*scan.Document)

// FTPListener accepts device-initiated FTP transfers, one document per STOR.
// Each control connection is served by its own goroutine; a broken or
// malformed connection is dropped without affecting the accept loop.
type FTPListener struct {
	cfg   FTPConfig
	namer *scan.Namer
	sink  Sink
	ln    net.Listener
}

// NewFTPListener creates an FTP intake listener. Documents are handed to
// sink after decoding completes.
func NewFTPListener(cfg FTPConfig, namer *scan.Namer, sink Sink) *FTPListener {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.DataTimeout <= 0 {
		cfg.DataTimeout = 2 * time.Minute
	}
	return &FTPListener{cfg: cfg, namer: namer, sink: sink}
}

// Listen binds the control port. Split from Serve so the caller can treat a
// bind failure as startup-fatal before entering the serve loop.
func (l *FTPListener) Listen() error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("ftp listen %s: %w", l.cfg.Addr, err)
	}
	l.ln = ln
	return nil
}

// Addr returns the bound control address. Valid after Listen.
func (l *FTPListener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts control connections until ctx is canceled. It never returns
// because of a single bad connection.
func (l *FTPListener) Serve(ctx context.Context) error {
	if l.ln == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()
	slog.Info("ftp intake listening", "addr", l.ln.Addr().String())

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ftp accept: %w", err)
		}
		sess := newFTPSession(conn, l.cfg, l.namer, l.sink)
		go sess.run()
	}
}
