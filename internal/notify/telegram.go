// Package notify reports relay failures to an operator via Telegram.
package notify

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Telegram sends HTML-formatted messages to a fixed chat.
type Telegram struct {
	chat    string
	token   string
	apiBase string // overridable for tests
	http    *http.Client
}

// NewTelegram creates a notifier for the given chat and bot token.
func NewTelegram(chat, token string) *Telegram {
	return &Telegram{
		chat:    chat,
		token:   token,
		apiBase: "https://api.telegram.org",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Failure notifies the operator that a document could not be delivered.
func (t *Telegram) Failure(ctx context.Context, file string, cause error) error {
	msg := fmt.Sprintf(
		"<b>scanrelay delivery failed</b>\nFile: <i>%s</i>\n\n<blockquote><code>%s</code></blockquote>",
		html.EscapeString(file), html.EscapeString(cause.Error()))
	return t.send(ctx, msg)
}

func (t *Telegram) send(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	params := url.Values{}
	params.Set("parse_mode", "HTML")
	params.Set("chat_id", t.chat)
	params.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram send: status %d", resp.StatusCode)
	}
	return nil
}
