package paperless

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mzyy94/scanrelay/internal/scan"
)

func TestStoreUploadsMultipart(t *testing.T) {
	var gotAuth, gotPath, gotTitle, gotFilename string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotTitle = r.FormValue("title")
		file, header, err := r.FormFile("document")
		if err != nil {
			t.Errorf("document part: %v", err)
			http.Error(w, "no document", http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		gotFile, _ = io.ReadAll(file)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok123")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	doc := &scan.Document{ID: "p1", Name: "20260314T150926Z_000001_doc.pdf", Data: []byte("pdf bytes")}
	if err := c.Store(context.Background(), doc); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if gotAuth != "Token tok123" {
		t.Errorf("Authorization = %q, want Token tok123", gotAuth)
	}
	if gotPath != "/api/documents/post_document/" {
		t.Errorf("path = %q, want /api/documents/post_document/", gotPath)
	}
	if gotTitle != "20260314T150926Z_000001_doc" {
		t.Errorf("title = %q, want name without extension", gotTitle)
	}
	if gotFilename != doc.Name {
		t.Errorf("filename = %q, want %q", gotFilename, doc.Name)
	}
	if !bytes.Equal(gotFile, doc.Data) {
		t.Errorf("file = %q, want %q", gotFile, doc.Data)
	}
}

func TestStoreSurfacesServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	doc := &scan.Document{Name: "x.pdf", Data: []byte("x")}
	if err := c.Store(context.Background(), doc); err == nil {
		t.Error("Store() should fail on a 403 response")
	}
}
