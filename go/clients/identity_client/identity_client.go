package identity_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// IdentityClient talks to the external identity service that owns
// authentication. The engine only ever asks it one question: which verified
// user does this token belong to.
type IdentityClient struct {
	baseURL string
	client  *http.Client
}

func NewIdentityClient(baseURL string) *IdentityClient {
	return &IdentityClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *IdentityClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UserID string `json:"user_id"`
}

// VerifyToken exchanges a bearer token for the verified user id. Any non-2xx
// response is an authentication failure for the calling operation.
func (c *IdentityClient) VerifyToken(ctx context.Context, token string) (uuid.UUID, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return uuid.Nil, fmt.Errorf("identity service returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	var parsed verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	userID, err := uuid.Parse(parsed.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("identity service returned invalid user id: %w", err)
	}

	return userID, nil
}
