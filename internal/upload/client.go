// Package upload streams recorded pose traces to a running RepCounter
// server over its REST API.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/trace"
)

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// Session mirrors the server's session response without importing the
// session package.
type Session struct {
	SessionID string `json:"session_id"`
	Exercise  string `json:"exercise"`
	Mode      string `json:"mode"`
}

// Summary mirrors the server's stop response.
type Summary struct {
	SessionID string    `json:"session_id"`
	Exercise  string    `json:"exercise"`
	RepCount  int       `json:"rep_count"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Client sends data to the RepCounter server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the RepCounter server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		attempts: 3,
		backoff:  time.Second,
	}
}

// StartSession starts counting exercise on the server.
func (c *Client) StartSession(ctx context.Context, exercise string) (Session, error) {
	var s Session
	err := c.post(ctx, "/api/v1/session/start", map[string]string{"exercise": exercise}, &s)
	return s, err
}

// SendFrame submits one frame to the active session.
func (c *Client) SendFrame(ctx context.Context, pose models.DetectedPose) (models.FrameResult, error) {
	var res models.FrameResult
	err := c.post(ctx, "/api/v1/session/frame", trace.FromPose(pose), &res)
	return res, err
}

// StopSession ends the active session and returns its summary.
func (c *Client) StopSession(ctx context.Context) (Summary, error) {
	var s Summary
	err := c.post(ctx, "/api/v1/session/stop", struct{}{}, &s)
	return s, err
}

// post sends body as JSON and decodes the response into out. Transport
// errors and 5xx responses are retried with exponential backoff.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		lastErr = c.do(ctx, path, data, out)
		if lastErr == nil {
			return nil
		}
		var se *StatusError
		if errors.As(lastErr, &se) && se.Status < http.StatusInternalServerError {
			return fmt.Errorf("%s: %w", path, lastErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s after %d attempts: %w", path, c.attempts, lastErr)
}

func (c *Client) do(ctx context.Context, path string, data []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
