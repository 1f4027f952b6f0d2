package scan

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNamerUniqueUnderCoarseClock(t *testing.T) {
	// freeze the clock so only the counter can provide uniqueness
	fixed := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	n := &Namer{now: func() time.Time { return fixed }}

	const workers = 50
	names := make(chan string, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names <- n.Name("doc.pdf")
		}()
	}
	wg.Wait()
	close(names)

	seen := map[string]bool{}
	for name := range names {
		if seen[name] {
			t.Fatalf("duplicate name %q", name)
		}
		seen[name] = true
	}
	if len(seen) != workers {
		t.Fatalf("got %d unique names, want %d", len(seen), workers)
	}
}

func TestNamerKeepsClientStem(t *testing.T) {
	n := NewNamer()

	name := n.Name("invoice.pdf")
	if !strings.HasSuffix(name, "_invoice.pdf") {
		t.Errorf("name %q should end with client stem and extension", name)
	}
	if !strings.Contains(name, "T") || !strings.Contains(name, "Z_") {
		t.Errorf("name %q should start with a UTC timestamp", name)
	}
}

func TestNamerSanitizesClientName(t *testing.T) {
	n := NewNamer()

	tests := []struct {
		in         string
		wantSuffix string
	}{
		{"../../etc/passwd", "_passwd.bin"},
		{`C:\scans\doc.pdf`, "_doc.pdf"},
		{"sc an/&?.jpg", ".jpg"},
		{"", ".bin"},
	}
	for _, tt := range tests {
		got := n.Name(tt.in)
		if !strings.HasSuffix(got, tt.wantSuffix) {
			t.Errorf("Name(%q) = %q, want suffix %q", tt.in, got, tt.wantSuffix)
		}
		if strings.ContainsAny(got, "/\\") {
			t.Errorf("Name(%q) = %q contains a path separator", tt.in, got)
		}
	}
}

func TestCleanSubdir(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"inbox", "inbox"},
		{"/inbox/", "inbox"},
		{"a/b/c", "a/b/c"},
		{"../..", ""},
		{"a/../b", "a/b"},
		{`a\b`, "a/b"},
		{"", ""},
		{".", ""},
	}
	for _, tt := range tests {
		if got := CleanSubdir(tt.in); got != tt.want {
			t.Errorf("CleanSubdir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewDocument(t *testing.T) {
	n := NewNamer()
	doc := n.NewDocument("page.jpg", "inbox", []byte("data"))

	if doc.ID == "" {
		t.Error("document ID should be set")
	}
	if doc.ClientName != "page.jpg" {
		t.Errorf("ClientName = %q, want %q", doc.ClientName, "page.jpg")
	}
	if doc.Size() != 4 {
		t.Errorf("Size() = %d, want 4", doc.Size())
	}
	if doc.Received.IsZero() {
		t.Error("Received should be set")
	}
}
