// ABOUTME: Telegram Bot API client for outbound message delivery
// ABOUTME: Wraps sendMessage with per-bot tokens over a shared HTTP client

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAPIBase is the production Telegram Bot API host.
	DefaultAPIBase = "https://api.telegram.org"

	defaultHTTPTimeout = 30 * time.Second
)

// ErrSendFailed is returned when the Bot API rejects or fails a sendMessage call.
var ErrSendFailed = errors.New("telegram send failed")

// Client talks to the Telegram Bot API. Tokens are passed per call because
// each bot profile carries its own token.
type Client struct {
	apiBase    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Telegram client. An empty apiBase selects the
// production host.
func NewClient(apiBase string) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		apiBase:    apiBase,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     slog.Default().With("component", "telegram"),
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// SendMessage delivers text to a chat using the given bot token.
func (c *Client) SendMessage(ctx context.Context, token string, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("encoding send request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrSendFailed, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("%w: status %d with unparseable body", ErrSendFailed, resp.StatusCode)
	}
	if !parsed.OK {
		c.logger.Warn("telegram rejected sendMessage",
			"status", resp.StatusCode,
			"description", parsed.Description)
		return fmt.Errorf("%w: %s", ErrSendFailed, parsed.Description)
	}

	return nil
}
