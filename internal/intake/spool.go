// Package intake accepts scan-push transfers from scanner-class clients and
// turns each into a decoded document. Two frontends are provided: a minimal
// FTP server subset for devices configured with "scan to FTP", and an HTTP
// handler for devices that push with a plain PUT. Both feed the same bounded
// spool and hand completed documents to a sink without blocking their accept
// loops.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned when a payload exceeds the configured maximum.
var ErrTooLarge = errors.New("payload exceeds maximum document size")

// ErrLengthMismatch is returned when the received byte count differs from
// the length the client declared.
var ErrLengthMismatch = errors.New("received length differs from declared length")

// Spool reads a payload into a bounded in-memory buffer. declared < 0 means
// the protocol supplied no length; otherwise the received byte count must
// match it exactly. Oversize payloads are rejected without buffering more
// than max+1 bytes.
func Spool(r io.Reader, declared, max int64) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("invalid spool limit %d", max)
	}
	if declared > max {
		return nil, fmt.Errorf("%w: declared %d, limit %d", ErrTooLarge, declared, max)
	}

	var buf bytes.Buffer
	if declared > 0 {
		buf.Grow(int(declared))
	}
	n, err := io.Copy(&buf, io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if n > max {
		return nil, fmt.Errorf("%w: limit %d", ErrTooLarge, max)
	}
	if declared >= 0 && n != declared {
		return nil, fmt.Errorf("%w: declared %d, received %d", ErrLengthMismatch, declared, n)
	}
	return buf.Bytes(), nil
}
