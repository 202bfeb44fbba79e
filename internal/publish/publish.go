// Package publish shares anonymized assessment results with the peer network.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the anonymized payload of a completed assessment. It carries no
// session or question identifiers.
type Result struct {
	Score      float64            `json:"score"`
	Categories map[string]float64 `json:"categories"`
}

// Nop discards results. Used when no sharing endpoint is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Result) error { return nil }

// HTTPPublisher posts results as JSON to a peer network relay.
type HTTPPublisher struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPublisher creates a publisher posting to endpoint. A non-positive
// timeout falls back to 5 seconds.
func NewHTTPPublisher(endpoint string, timeout time.Duration) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPublisher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Publish sends r to the relay. Any non-2xx response is an error.
func (p *HTTPPublisher) Publish(ctx context.Context, r Result) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("publish rejected: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
