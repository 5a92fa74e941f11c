package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// APIKeyVerifier checks an inbound API key: first against a fast local
// exact match, then (if that fails and a dashboard is configured) against
// the dashboard's key-validation endpoint.
type APIKeyVerifier struct {
	LocalKey        string
	DashboardBaseURL string
	http            *http.Client
}

func NewAPIKeyVerifier(localKey, dashboardBaseURL string) *APIKeyVerifier {
	return &APIKeyVerifier{
		LocalKey:         localKey,
		DashboardBaseURL: dashboardBaseURL,
		http:             &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify reports whether apiKey is valid. An empty LocalKey disables
// local auth entirely (every key passes) — used for local development.
func (v *APIKeyVerifier) Verify(ctx context.Context, apiKey string) bool {
	if v.LocalKey == "" {
		return true
	}
	if apiKey == v.LocalKey {
		return true
	}
	if v.DashboardBaseURL == "" {
		return false
	}

	payload, _ := json.Marshal(map[string]string{"apiKey": apiKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.DashboardBaseURL+"/api/keys/validate", bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Valid
}
