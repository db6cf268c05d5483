package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openclaw/observatory/internal/ingest"
)

// Client submits event batches to an Observatory ingestion endpoint.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a batch to /api/v1/ingest. Each batch is attempted exactly
// once; the caller decides what to do with a failed batch.
func (c *Client) Send(ctx context.Context, events []ingest.EventInput) error {
	if len(events) == 0 {
		return nil
	}

	body, err := json.Marshal(ingest.IngestRequest{Events: events})
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/ingest", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting batch: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}
	return nil
}
