// Package scan defines the document unit passed from intake to relay and
// the collision-safe naming scheme used for destination filenames.
package scan

import (
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Document is one completed scan transfer, fully buffered and ready to relay.
// After intake hands a Document to a relay goroutine it is owned exclusively
// by that goroutine until the relay reaches a terminal outcome.
type Document struct {
	ID         string    // correlation id for logs
	Name       string    // collision-safe destination filename
	ClientName string    // filename as supplied by the device, may be empty
	Subdir     string    // sanitized subdirectory hint from the device, may be empty
	Data       []byte    // full payload
	Received   time.Time // arrival timestamp (UTC)
}

// Size returns the payload length in bytes.
func (d *Document) Size() int64 { return int64(len(d.Data)) }

// Namer synthesizes destination filenames that are unique across concurrent
// scans even when the clock is coarse. The zero value is ready to use.
type Namer struct {
	counter atomic.Uint64
	now     func() time.Time // overridable for tests
}

// NewNamer returns a Namer using the wall clock.
func NewNamer() *Namer {
	return &Namer{now: time.Now}
}

// Name builds a destination filename from the arrival time, a per-process
// counter, and the client-supplied filename when one exists. The counter
// guarantees uniqueness; the client stem is kept so an operator can still
// recognize the document at the destination.
func (n *Namer) Name(clientName string) string {
	now := time.Now
	if n.now != nil {
		now = n.now
	}
	seq := n.counter.Add(1)
	ts := now().UTC().Format("20060102T150405Z")

	stem, ext := splitClientName(clientName)
	if stem != "" {
		stem = "_" + stem
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s_%06d%s%s", ts, seq, stem, ext)
}

// NewDocument assembles a Document from a completed transfer.
func (n *Namer) NewDocument(clientName, subdir string, data []byte) *Document {
	return &Document{
		ID:         uuid.NewString(),
		Name:       n.Name(clientName),
		ClientName: clientName,
		Subdir:     subdir,
		Data:       data,
		Received:   time.Now().UTC(),
	}
}

// splitClientName reduces a device-supplied filename to a safe stem and
// extension. Path separators and traversal are stripped; anything left that
// is not a portable filename character is dropped.
func splitClientName(name string) (stem, ext string) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "", ""
	}
	ext = path.Ext(name)
	stem = strings.TrimSuffix(name, ext)

	clean := func(s string) string {
		var b strings.Builder
		for _, r := range s {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				b.WriteRune(r)
			case r == '-' || r == '_' || r == '.':
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	stem = clean(stem)
	ext = clean(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ext == "." {
		ext = ""
	}
	return stem, ext
}

// CleanSubdir sanitizes a device-supplied directory hint into a relative
// slash-separated path with no traversal. Returns "" when nothing usable
// remains.
func CleanSubdir(dir string) string {
	dir = strings.ReplaceAll(dir, "\\", "/")
	parts := strings.Split(dir, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}
