// Package paperless uploads documents to a Paperless-ngx instance as a
// secondary, best-effort destination next to the WebDAV relay.
package paperless

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mzyy94/scanrelay/internal/scan"
)

// Client posts documents to the Paperless consumption API.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
}

// New creates a Client for the given Paperless base URL and API token.
func New(endpoint, token string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse paperless endpoint: %w", err)
	}
	return &Client{
		endpoint: u,
		token:    token,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// Name identifies this backend in logs.
func (c *Client) Name() string { return "paperless" }

// Store uploads the document via POST /api/documents/post_document/.
func (c *Client) Store(ctx context.Context, doc *scan.Document) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("title", strings.TrimSuffix(doc.Name, extOf(doc.Name))); err != nil {
		return fmt.Errorf("paperless title field: %w", err)
	}
	part, err := mw.CreateFormFile("document", doc.Name)
	if err != nil {
		return fmt.Errorf("paperless form file: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return fmt.Errorf("paperless form body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("paperless form close: %w", err)
	}

	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/api/documents/post_document/"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &body)
	if err != nil {
		return fmt.Errorf("build paperless request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paperless upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paperless upload: status %d", resp.StatusCode)
	}
	return nil
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
