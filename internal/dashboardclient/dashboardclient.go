// Package dashboardclient talks to the optional external dashboard
// service: fetching a tenant/project's override config, and emitting
// fire-and-forget optimization events for observability dashboards.
package dashboardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"promptopt/internal/obs"
)

const sourceHeaderValue = "token-optimizer-middleware"

// Client is an HTTP client bound to a dashboard base URL and API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  obs.Logger
}

// New constructs a Client. An empty baseURL disables the dashboard
// entirely — FetchUserConfig returns (nil, nil) and EmitEvent no-ops.
func New(baseURL, apiKey string, logger obs.Logger) *Client {
	if obs.IsNil(logger) {
		logger = obs.NopLogger()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 3 * time.Second},
		logger:  logger,
	}
}

func (c *Client) Enabled() bool { return c.baseURL != "" }

// FetchUserConfig retrieves a tenant/project's dashboard-managed
// optimizer settings. Any failure (network, non-200, malformed body) is
// swallowed and reported as (nil, nil) — a dashboard outage must never
// block optimization, only fall back to defaults.
func (c *Client) FetchUserConfig(ctx context.Context, tenantID, projectID string) (map[string]any, error) {
	if !c.Enabled() {
		return nil, nil
	}

	url := fmt.Sprintf("%s/api/config/%s/%s", c.baseURL, tenantID, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("dashboard config fetch failed: %v", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("dashboard config fetch returned status %d", resp.StatusCode)
		return nil, nil
	}

	var body struct {
		Config map[string]any `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("dashboard config decode failed: %v", err)
		return nil, nil
	}
	return body.Config, nil
}

// OptimizationEvent is the payload emitted to the dashboard after a
// completed optimize/chat call.
type OptimizationEvent struct {
	EventType     string  `json:"event_type"`
	Timestamp     string  `json:"timestamp"`
	TenantID      string  `json:"tenant_id"`
	ProjectID     string  `json:"project_id"`
	APIKeyPrefix  string  `json:"api_key_prefix"`
	Model         string  `json:"model"`
	Endpoint      string  `json:"endpoint"`
	TokensBefore  int     `json:"tokens_before"`
	TokensAfter   int     `json:"tokens_after"`
	TokensSaved   int     `json:"tokens_saved"`
	CompressionRatio float64 `json:"compression_ratio"`
	LatencyMS     int64   `json:"latency_ms"`
	Success       bool    `json:"success"`
}

// EmitEvent posts ev to the dashboard's event endpoint, fire-and-forget:
// every failure is logged and swallowed, never surfaced to the caller.
func (c *Client) EmitEvent(ctx context.Context, ev OptimizationEvent) {
	if !c.Enabled() {
		return
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		c.logger.Warn("dashboard event marshal failed: %v", err)
		return
	}

	url := c.baseURL + "/api/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		c.logger.Warn("dashboard event request build failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Source", sourceHeaderValue)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("dashboard event emit failed: %v", err)
		return
	}
	defer resp.Body.Close()
}
