package dashboardclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"promptopt/internal/obs"
)

func TestDisabledClientSkipsFetchAndEmit(t *testing.T) {
	c := New("", "", obs.NopLogger())
	require.False(t, c.Enabled())

	cfg, err := c.FetchUserConfig(context.Background(), "tenant", "project")
	require.NoError(t, err)
	require.Nil(t, cfg)

	c.EmitEvent(context.Background(), OptimizationEvent{EventType: "optimization"})
}

func TestFetchUserConfigReturnsDecodedConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/config/t1/p1", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		w.Write([]byte(`{"config":{"maxHistoryMessages":5}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", obs.NopLogger())
	cfg, err := c.FetchUserConfig(context.Background(), "t1", "p1")
	require.NoError(t, err)
	require.Equal(t, float64(5), cfg["maxHistoryMessages"])
}

func TestFetchUserConfigSwallowsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", obs.NopLogger())
	cfg, err := c.FetchUserConfig(context.Background(), "t1", "p1")
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestEmitEventPostsExpectedHeaders(t *testing.T) {
	received := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "key123", obs.NopLogger())
	c.EmitEvent(context.Background(), OptimizationEvent{EventType: "optimization", TenantID: "t1"})

	req := <-received
	require.Equal(t, "key123", req.Header.Get("X-API-Key"))
	require.Equal(t, sourceHeaderValue, req.Header.Get("X-Source"))
	require.Equal(t, "/api/events", req.URL.Path)
}
