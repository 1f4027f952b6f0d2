// Package webdav is a thin client for the three WebDAV methods the relay
// needs: PUT, MKCOL, and PROPFIND (depth 0). Every request carries Basic
// authentication; each call is stateless.
package webdav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NetError wraps a transport-level failure (DNS, TLS, refused connection,
// timeout) so callers can distinguish it from an HTTP status response.
type NetError struct {
	Op  string
	Err error
}

func (e *NetError) Error() string { return fmt.Sprintf("webdav %s: %v", e.Op, e.Err) }
func (e *NetError) Unwrap() error { return e.Err }

// Client issues authenticated WebDAV requests against a fixed endpoint.
type Client struct {
	endpoint *url.URL
	user     string
	pass     string
	http     *http.Client
}

// New creates a Client for the given base URL and credential pair.
func New(endpoint, user, pass string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: u,
		user:     user,
		pass:     pass,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// URL joins relative path segments onto the endpoint.
func (c *Client) URL(segments ...string) string {
	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/")
	for _, s := range segments {
		for _, part := range strings.Split(s, "/") {
			if part == "" {
				continue
			}
			u.Path += "/" + part
		}
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, rawurl string, body []byte, hdr http.Header) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawurl, rd)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.SetBasicAuth(c.user, c.pass)
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if body != nil {
		req.ContentLength = int64(len(body))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetError{Op: method, Err: err}
	}
	return resp, nil
}

// Put uploads body to the given path segments. Returns the HTTP status code,
// or a *NetError when the request never produced a status.
func (c *Client) Put(ctx context.Context, pathSegments []string, body []byte) (int, error) {
	resp, err := c.do(ctx, http.MethodPut, c.URL(pathSegments...), body, http.Header{
		"Content-Type": {"application/octet-stream"},
	})
	if err != nil {
		return 0, err
	}
	defer drain(resp)
	return resp.StatusCode, nil
}

// Mkcol creates the collection at the given path segments.
func (c *Client) Mkcol(ctx context.Context, pathSegments []string) (int, error) {
	resp, err := c.do(ctx, "MKCOL", c.URL(pathSegments...), nil, nil)
	if err != nil {
		return 0, err
	}
	defer drain(resp)
	return resp.StatusCode, nil
}

// Exists checks whether the resource at the given path segments exists,
// via PROPFIND with Depth 0. A 401/403 response is surfaced as a status so
// the caller can classify it.
func (c *Client) Exists(ctx context.Context, pathSegments []string) (bool, int, error) {
	resp, err := c.do(ctx, "PROPFIND", c.URL(pathSegments...), nil, http.Header{
		"Depth": {"0"},
	})
	if err != nil {
		return false, 0, err
	}
	defer drain(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, resp.StatusCode, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, resp.StatusCode, nil
	default:
		return false, resp.StatusCode, nil
	}
}

// drain discards the response body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
