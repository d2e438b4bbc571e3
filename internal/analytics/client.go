package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strconv"
)

type (
	event struct {
		Event      string         `json:"event"`
		UserID     string         `json:"user_id"`
		Properties map[string]any `json:"properties,omitempty"`
	}

	// Client posts behavioral events to an HTTP collector.
	Client struct {
		endpoint string
		token    string
		client   *http.Client
		log      *slog.Logger
	}

	// Noop discards events; used in dev mode and tests.
	Noop struct{}
)

func NewClient(endpoint, token string, log *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		client:   http.DefaultClient,
		log:      log,
	}
}

func (c *Client) Notify(ctx context.Context, name, userID string, properties map[string]any) error {
	marshal, err := json.Marshal(event{
		Event:      name,
		UserID:     userID,
		Properties: properties,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(marshal))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 { //nolint:mnd // ignore mnd
		tags := make([]any, 0, 4) //nolint:mnd // ignore mnd
		tags = append(tags, "status", strconv.Itoa(resp.StatusCode))
		if response, err := httputil.DumpResponse(resp, true); err != nil {
			c.log.DebugContext(ctx, "failed to dump response", "error", err)
		} else {
			tags = append(tags, "response", string(response))
		}
		c.log.ErrorContext(ctx, "unexpected collector response", tags...)
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func (Noop) Notify(context.Context, string, string, map[string]any) error {
	return nil
}
