package webdav

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/scans", "alice", "hunter2", 5*time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, srv
}

func TestPutSendsBodyAndBasicAuth(t *testing.T) {
	payload := bytes.Repeat([]byte("b"), 12345)
	var gotAuthUser, gotAuthPass string
	var gotAuthOK bool
	var gotBody []byte
	var gotPath string

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuthUser, gotAuthPass, gotAuthOK = r.BasicAuth()
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		if r.ContentLength != int64(len(payload)) {
			t.Errorf("Content-Length = %d, want %d", r.ContentLength, len(payload))
		}
		w.WriteHeader(http.StatusCreated)
	})

	status, err := c.Put(context.Background(), []string{"inbox", "doc.pdf"}, payload)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if status != http.StatusCreated {
		t.Errorf("status = %d, want 201", status)
	}
	if !gotAuthOK || gotAuthUser != "alice" || gotAuthPass != "hunter2" {
		t.Errorf("basic auth = %q/%q ok=%v, want alice/hunter2", gotAuthUser, gotAuthPass, gotAuthOK)
	}
	if gotPath != "/scans/inbox/doc.pdf" {
		t.Errorf("path = %q, want /scans/inbox/doc.pdf", gotPath)
	}
	if !bytes.Equal(gotBody, payload) {
		t.Errorf("body = %d bytes, want %d", len(gotBody), len(payload))
	}
}

func TestExistsPropfindDepthZero(t *testing.T) {
	var gotMethod, gotDepth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotDepth = r.Header.Get("Depth")
		w.WriteHeader(207)
	})

	exists, status, err := c.Exists(context.Background(), []string{"inbox"})
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if gotMethod != "PROPFIND" {
		t.Errorf("method = %q, want PROPFIND", gotMethod)
	}
	if gotDepth != "0" {
		t.Errorf("Depth header = %q, want 0", gotDepth)
	}
	if !exists || status != 207 {
		t.Errorf("exists = %v status = %d, want true/207", exists, status)
	}
}

func TestExistsNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	exists, status, err := c.Exists(context.Background(), []string{"missing"})
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists || status != http.StatusNotFound {
		t.Errorf("exists = %v status = %d, want false/404", exists, status)
	}
}

func TestMkcolMethod(t *testing.T) {
	var gotMethod string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusCreated)
	})

	status, err := c.Mkcol(context.Background(), []string{"inbox"})
	if err != nil {
		t.Fatalf("Mkcol() error = %v", err)
	}
	if gotMethod != "MKCOL" {
		t.Errorf("method = %q, want MKCOL", gotMethod)
	}
	if status != http.StatusCreated {
		t.Errorf("status = %d, want 201", status)
	}
}

func TestNetworkFailureIsNetError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL, "u", "p", time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.Close() // connection refused from here on

	_, err = c.Put(context.Background(), []string{"doc.pdf"}, []byte("x"))
	var ne *NetError
	if !errors.As(err, &ne) {
		t.Fatalf("Put() error = %v, want *NetError", err)
	}
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	if _, err := New("ftp://host/", "u", "p", 0); err == nil {
		t.Error("non-HTTP scheme should be rejected")
	}
}

func TestURLJoining(t *testing.T) {
	c, err := New("https://dav.example.com/scans/", "u", "p", 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got := c.URL("inbox", "doc.pdf")
	want := "https://dav.example.com/scans/inbox/doc.pdf"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
