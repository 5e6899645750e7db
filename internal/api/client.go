// Package api is the HTTP client for the Prana-Rakshak assistant service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"prana-chat/internal/logger"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4096

// Client handles communication with the assistant service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new assistant service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat sends one message and returns the assistant's markdown reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/chat", req)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if chatResp.Response == nil {
		return "", fmt.Errorf("%w: missing response field", ErrMalformedResponse)
	}

	return *chatResp.Response, nil
}

// ListSessions returns the sessions the service knows for a user, in service order.
func (c *Client) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}

	var sessions []SessionInfo
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return sessions, nil
}

// History returns the prior messages of a session.
func (c *Client) History(ctx context.Context, sessionID, userID string) ([]HistoryMessage, error) {
	params := url.Values{}
	params.Add("user_id", userID)
	path := fmt.Sprintf("/history/%s?%s", url.PathEscape(sessionID), params.Encode())

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeHistory(body)
}

// HealthCheck verifies that the service root answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	root := strings.TrimSuffix(c.baseURL, "/api") + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("assistant service is unreachable at %s: %w", root, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// do executes a JSON request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	log := logger.With("request_id", requestID, "method", method, "path", path)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug("request failed", "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Debug("request rejected", "status", resp.StatusCode)
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug("request completed", "status", resp.StatusCode, "elapsed", time.Since(start))
	return body, nil
}
