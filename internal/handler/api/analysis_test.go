package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/service/demo"
	"CoinPull/internal/service/ratelimit"
	"CoinPull/internal/services/forecast"
	"CoinPull/internal/services/report"
	"CoinPull/internal/usecase"
	"CoinPull/pkg/cache"
)

const testLockKey = "test:acquire"

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, rl *ratelimit.Limiter) (*echo.Echo, *usecase.AnalysisService, *cache.MemoryCache) {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	orch := usecase.NewOrchestrator(nil, demo.NewGenerator(demo.WithSeed(9)), nil, nil, usecase.OrchestratorConfig{})
	svc := usecase.NewAnalysisService(orch, forecast.NewEngine(), report.NewAggregator(), nil, mc, nil, nil,
		usecase.AnalysisConfig{LockKey: testLockKey})
	t.Cleanup(svc.Close)

	e := echo.New()
	NewAnalysisHandler(nil, svc, rl).RegisterRoutes(e)
	return e, svc, mc
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func waitForSnapshot(t *testing.T, svc *usecase.AnalysisService, attemptID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := svc.Snapshot()
		return err == nil && snap.Batch.AttemptID == attemptID
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReadEndpointsBeforeFirstAcquisition(t *testing.T) {
	e, _, _ := newTestServer(t, nil)

	for _, path := range []string{"/api/snapshot", "/api/report", "/api/forecasts", "/api/assets", "/api/top-movers"} {
		rec, env := do(t, e, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, http.StatusNotFound, env.Status, path)
		assert.Contains(t, string(env.Data), "ERR_NOT_FOUND", path)
	}

	rec, env := do(t, e, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var st models.AcquisitionStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.False(t, st.Running)
	assert.Zero(t, st.SnapshotAssets)
}

func TestRefreshDemoThenRead(t *testing.T) {
	e, svc, _ := newTestServer(t, nil)

	rec, env := do(t, e, http.MethodPost, "/api/refresh?mode=demo&horizon=3", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted refreshResponse
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.NotEmpty(t, accepted.AttemptID)
	assert.Equal(t, "demo", accepted.Mode)
	assert.Equal(t, 3, accepted.Horizon)

	waitForSnapshot(t, svc, accepted.AttemptID)

	rec, env = do(t, e, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 10, snap.Batch.Len())
	assert.Equal(t, 3, snap.Horizon)

	rec, env = do(t, e, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep reportResponse
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, accepted.AttemptID, rep.AttemptID)
	assert.Equal(t, 10, rep.Report.AssetCount)

	rec, env = do(t, e, http.MethodGet, "/api/top-movers?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":2`)

	rec, env = do(t, e, http.MethodGet, "/api/forecasts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":10`)
}

func TestRefreshBodyOverridesDefaults(t *testing.T) {
	e, svc, _ := newTestServer(t, nil)

	rec, env := do(t, e, http.MethodPost, "/api/refresh", `{"mode":"demo","horizon":12}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var accepted refreshResponse
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.Equal(t, 12, accepted.Horizon)
	waitForSnapshot(t, svc, accepted.AttemptID)
}

func TestRefreshValidation(t *testing.T) {
	e, _, _ := newTestServer(t, nil)

	rec, env := do(t, e, http.MethodPost, "/api/refresh", `{"mode":"paper"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_ONEOF")

	rec, env = do(t, e, http.MethodPost, "/api/refresh?mode=demo&horizon=500", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_LTE")

	rec, _ = do(t, e, http.MethodGet, "/api/top-movers?limit=9", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshLiveWithoutSourceIsUnavailable(t *testing.T) {
	e, _, _ := newTestServer(t, nil)

	rec, env := do(t, e, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(env.Data), "demo mode")
}

func TestRefreshBusy(t *testing.T) {
	e, _, mc := newTestServer(t, nil)

	ok, err := mc.TryLock(context.Background(), testLockKey, "other-replica", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rec, env := do(t, e, http.MethodPost, "/api/refresh?mode=demo", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_CONFLICT")
}

func TestRefreshRateLimited(t *testing.T) {
	e, svc, _ := newTestServer(t, ratelimit.New(1, 0.01))

	rec, env := do(t, e, http.MethodPost, "/api/refresh?mode=demo", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted refreshResponse
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	waitForSnapshot(t, svc, accepted.AttemptID)

	rec, env = do(t, e, http.MethodPost, "/api/refresh?mode=demo", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, string(env.Data), "ERR_TOO_MANY_REQUESTS")
}

func TestProgressWebSocket(t *testing.T) {
	e, svc, _ := newTestServer(t, nil)
	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/progress/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return svc.Hub().Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/refresh?mode=demo", echo.MIMEApplicationJSON, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var kinds []models.EventKind
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg progressMessage
		require.NoError(t, conn.ReadJSON(&msg))
		kinds = append(kinds, msg.Kind)
		if msg.Kind == models.EventDone {
			assert.Equal(t, 10, msg.Assets)
			assert.Empty(t, msg.Error)
			break
		}
	}
	assert.Equal(t, models.EventStarted, kinds[0])
}
