package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ethpandaops/quake-harvester/internal/api"
	"github.com/ethpandaops/quake-harvester/internal/api/mocks"
	"github.com/ethpandaops/quake-harvester/internal/harvester"
	"github.com/ethpandaops/quake-harvester/internal/testutil"
)

func TestServer_Routes(t *testing.T) {
	cursor := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	ctrl := gomock.NewController(t)
	provider := mocks.NewMockStatusProvider(ctrl)
	provider.EXPECT().Snapshot().Return(harvester.Snapshot{
		Mode:       harvester.ModeDemand,
		Running:    true,
		Cursor:     cursor,
		LastStatus: harvester.StatusReady,
	}).AnyTimes()

	var running atomic.Bool

	running.Store(true)

	srv := New(testutil.NewTestLogger(), testutil.NewTestConfig(), provider, "node-a", running.Load)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx := testutil.NewTestContext(t)

	get := func(path string) *http.Response {
		t.Helper()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+path, nil)
		require.NoError(t, err)

		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		return resp
	}

	t.Run("health", func(t *testing.T) {
		resp := get("/health")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("status", func(t *testing.T) {
		resp := get("/api/v1/status")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body api.StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "node-a", body.InstanceID)
		assert.Equal(t, cursor, body.Harvester.Cursor.UTC())
	})

	t.Run("metrics", func(t *testing.T) {
		resp := get("/metrics")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	})

	t.Run("method not allowed", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/v1/status", nil)
		require.NoError(t, err)

		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("unknown path", func(t *testing.T) {
		resp := get("/nope")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("health reports stopped harvester", func(t *testing.T) {
		running.Store(false)

		resp := get("/health")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
