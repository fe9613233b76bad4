package timer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mcdev12/focusd/go/internal/focusday"
)

// HTTPSyncClient is the SyncClient implementation that talks to the gateway's
// JSON API on behalf of one authenticated user.
type HTTPSyncClient struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	token string
}

func NewHTTPSyncClient(baseURL, token string) *HTTPSyncClient {
	return &HTTPSyncClient{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken swaps in fresh credentials after a re-authentication. Safe to call
// while background saves are in flight.
func (c *HTTPSyncClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPSyncClient) bearerToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *HTTPSyncClient) GetTodayProgress(ctx context.Context) (*focusday.TodayProgress, error) {
	var out focusday.TodayProgress
	if err := c.do(ctx, http.MethodGet, "/api/focus/today", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPSyncClient) SaveActiveProgress(ctx context.Context, req focusday.SaveActiveProgressRequest) (*focusday.SaveActiveProgressResult, error) {
	var out focusday.SaveActiveProgressResult
	if err := c.do(ctx, http.MethodPut, "/api/focus/active", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPSyncClient) CompleteSession(ctx context.Context, req focusday.CompleteSessionRequest) (*focusday.CompleteSessionResult, error) {
	var out focusday.CompleteSessionResult
	if err := c.do(ctx, http.MethodPost, "/api/focus/complete", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPSyncClient) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
