package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// QueryResult is the daemon's answer to a pool search.
type QueryResult struct {
	Links  []string `json:"links"`
	Output string   `json:"output"`
}

// Client calls a corpusd daemon's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a daemon client. baseURL is the daemon address, e.g.
// http://localhost:8001.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Query runs a retrieval search on the daemon.
func (c *Client) Query(ctx context.Context, text, pool string) (QueryResult, error) {
	payload, err := json.Marshal(map[string]string{
		"text": text,
		"pool": pool,
	})
	if err != nil {
		return QueryResult{}, fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/query", bytes.NewReader(payload))
	if err != nil {
		return QueryResult{}, fmt.Errorf("building query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return QueryResult{}, fmt.Errorf("querying daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return QueryResult{}, fmt.Errorf("daemon returned %d: %s", resp.StatusCode, errorMessage(body))
	}

	var result QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return QueryResult{}, fmt.Errorf("decoding query response: %w", err)
	}
	return result, nil
}

// errorMessage pulls the message out of an echo error body, falling back
// to the raw bytes.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(body))
}
