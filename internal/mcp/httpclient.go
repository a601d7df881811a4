package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/session"
)

// HTTPClient implements DataSource by calling the RepCounter REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but the
// counter runs elsewhere (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) ListProfiles(ctx context.Context) ([]models.CalibrationProfile, error) {
	var list []models.CalibrationProfile
	if err := c.get(ctx, "/api/v1/profiles", &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *HTTPClient) ResolveProfile(ctx context.Context, name string) (models.CalibrationProfile, error) {
	var p models.CalibrationProfile
	if err := c.get(ctx, "/api/v1/profiles/"+url.PathEscape(name), &p); err != nil {
		return models.CalibrationProfile{}, err
	}
	return p, nil
}

func (c *HTTPClient) SessionState(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.get(ctx, "/api/v1/session/state", &snap); err != nil {
		return session.Snapshot{}, err
	}
	return snap, nil
}
