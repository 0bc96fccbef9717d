// Package notify posts run summaries to Slack incoming webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Slack posts messages to one incoming webhook
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack creates a notifier for webhookURL
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// FromEnv returns a notifier when the named environment variable holds a webhook URL,
// or nil when it is unset
func FromEnv(name string) *Slack {
	if name == "" {
		return nil
	}
	url := os.Getenv(name)
	if url == "" {
		return nil
	}
	return NewSlack(url)
}

// Post sends text; any status other than 200 is an error
func (s *Slack) Post(ctx context.Context, text string) error {
	jsonBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build Slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("Posting to Slack", "bytes", len(jsonBody))
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to Slack: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
