package server_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopview/shopview/internal/cache"
	"github.com/shopview/shopview/internal/config"
	"github.com/shopview/shopview/internal/server"
	"github.com/shopview/shopview/internal/session"
	"github.com/shopview/shopview/internal/store"
)

// scenarioDocs is the canonical three-record dataset: two mobile
// conversions with sales and one desktop bounce.
func scenarioDocs() []session.Document {
	return []session.Document{
		{
			ID:        "s1",
			StartTime: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
			DeviceInfo: map[string]any{
				"device": "mobile", "browser": "Safari",
			},
			SessionMetadata: map[string]any{
				"source": "google", "sales": 50.0,
				"pageViews": 5, "duration": 120.0,
			},
			SessionTags: map[string]any{
				"type": "converted", "segment": "new",
				"category": "electronics",
			},
		},
		{
			ID:        "s2",
			StartTime: time.Date(2024, 6, 2, 14, 0, 0, 0, time.UTC),
			DeviceInfo: map[string]any{
				"device": "desktop", "browser": "Firefox",
			},
			SessionMetadata: map[string]any{
				"source": "direct", "sales": 0.0,
				"pageViews": 1, "duration": 15.0,
			},
			SessionTags: map[string]any{
				"type": "bounced", "segment": "new",
				"category": "apparel",
			},
		},
		{
			ID:        "s3",
			StartTime: time.Date(2024, 6, 3, 18, 30, 0, 0, time.UTC),
			DeviceInfo: map[string]any{
				"device": "mobile", "browser": "Chrome",
			},
			SessionMetadata: map[string]any{
				"source": "google", "sales": 30.0,
				"pageViews": 9, "duration": 300.0,
			},
			SessionTags: map[string]any{
				"type": "converted", "segment": "returning",
				"category": "electronics",
			},
		},
	}
}

type testEnv struct {
	handler http.Handler
	snap    *cache.Snapshot
	loader  *stubLoader
}

type stubLoader struct {
	docs []session.Document
	err  error
}

func (l *stubLoader) Load(
	_ context.Context,
) ([]session.Document, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.docs, nil
}

type setupOption func(*config.Config)

func withWriteTimeout(d time.Duration) setupOption {
	return func(c *config.Config) { c.WriteTimeout = d }
}

func setup(
	t *testing.T, loader *stubLoader, opts ...setupOption,
) *testEnv {
	return setupWithServerOpts(t, loader, nil, opts...)
}

func setupWithServerOpts(
	t *testing.T, loader *stubLoader,
	srvOpts []server.Option, opts ...setupOption,
) *testEnv {
	t.Helper()

	cfg := config.Config{
		Host:         "127.0.0.1",
		CacheTTL:     5 * time.Minute,
		WriteTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	snap := cache.New(loader, cfg.CacheTTL)
	srv := server.New(cfg, snap, zerolog.Nop(), srvOpts...)
	return &testEnv{
		handler: srv.Handler(),
		snap:    snap,
		loader:  loader,
	}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v),
		"body: %s", rec.Body.String())
	return v
}

type dashboardResp struct {
	Metrics []struct {
		Label     string  `json:"label"`
		Value     float64 `json:"value"`
		Formatted string  `json:"formatted"`
	} `json:"metrics"`
	Charts []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Kind   string `json:"kind"`
		Points []struct {
			Label string  `json:"label"`
			Value float64 `json:"value"`
		} `json:"points"`
	} `json:"charts"`
	RowCount int  `json:"row_count"`
	NoData   bool `json:"no_data"`
}

func (d dashboardResp) metric(label string) (float64, string) {
	for _, m := range d.Metrics {
		if m.Label == label {
			return m.Value, m.Formatted
		}
	}
	return 0, ""
}

func (d dashboardResp) chart(id string) ([]struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}, bool) {
	for _, c := range d.Charts {
		if c.ID == id {
			return c.Points, true
		}
	}
	return nil, false
}

func TestDashboardUnfiltered(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	rec := env.get(t, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	d := decodeJSON[dashboardResp](t, rec)
	assert.Equal(t, 3, d.RowCount)
	assert.False(t, d.NoData)
	require.Len(t, d.Metrics, 8)
	require.Len(t, d.Charts, 6)

	v, formatted := d.metric("Total Sessions")
	assert.Equal(t, 3.0, v)
	assert.Equal(t, "3", formatted)

	v, formatted = d.metric("Total Sales")
	assert.Equal(t, 80.0, v)
	assert.Equal(t, "$80.00", formatted)

	points, ok := d.chart("daily_sessions")
	require.True(t, ok)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-06-01", points[0].Label)
	assert.Equal(t, "2024-06-03", points[2].Label)
}

func TestDashboardFilteredScenario(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	rec := env.get(t,
		"/api/v1/dashboard?devices=mobile&types=converted")
	require.Equal(t, http.StatusOK, rec.Code)

	d := decodeJSON[dashboardResp](t, rec)
	assert.Equal(t, 2, d.RowCount)

	v, _ := d.metric("Total Sessions")
	assert.Equal(t, 2.0, v)

	v, _ = d.metric("Total Sales")
	assert.Equal(t, 80.0, v)

	v, formatted := d.metric("Conversion Rate")
	assert.Equal(t, 100.0, v)
	assert.Equal(t, "100.0%", formatted)
}

func TestDashboardEmptyFilterSet(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	// A present-but-empty devices param is an explicit empty set.
	rec := env.get(t, "/api/v1/dashboard?devices=")
	require.Equal(t, http.StatusOK, rec.Code)

	d := decodeJSON[dashboardResp](t, rec)
	assert.Equal(t, 0, d.RowCount)
	assert.True(t, d.NoData)

	_, formatted := d.metric("Conversion Rate")
	assert.Equal(t, "N/A", formatted)
	_, formatted = d.metric("Avg Duration")
	assert.Equal(t, "N/A", formatted)
}

func TestDashboardInvertedDateRange(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	rec := env.get(t,
		"/api/v1/dashboard?from=2024-06-30&to=2024-06-01")
	require.Equal(t, http.StatusOK, rec.Code)

	d := decodeJSON[dashboardResp](t, rec)
	assert.Equal(t, 0, d.RowCount)
	assert.True(t, d.NoData)
}

func TestDashboardEmptyDataset(t *testing.T) {
	env := setup(t, &stubLoader{})

	rec := env.get(t, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	d := decodeJSON[dashboardResp](t, rec)
	assert.True(t, d.NoData)

	v, formatted := d.metric("Total Sessions")
	assert.Equal(t, 0.0, v)
	assert.Equal(t, "0", formatted)

	_, formatted = d.metric("Avg Sales/Session")
	assert.Equal(t, "N/A", formatted)

	for _, c := range d.Charts {
		assert.Empty(t, c.Points, "chart %s", c.ID)
	}
}

func TestDashboardInvalidDate(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	rec := env.get(t, "/api/v1/dashboard?from=06-01-2024")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	assert.Contains(t, body["error"], "YYYY-MM-DD")
}

func TestErrorPanelOnStoreFailure(t *testing.T) {
	env := setup(t, &stubLoader{
		err: &store.ConnError{Err: errors.New("auth failed")},
	})

	for _, path := range []string{
		"/api/v1/dashboard",
		"/api/v1/sessions",
		"/api/v1/filters",
		"/api/v1/export",
		"/api/v1/stats",
	} {
		rec := env.get(t, path)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code,
			"path %s", path)

		panel := decodeJSON[map[string]string](t, rec)
		assert.Contains(t, panel["error"], "auth failed")
		assert.Contains(t, panel["remediation"], "secrets")
	}
}

func TestErrorPanelRecovers(t *testing.T) {
	loader := &stubLoader{
		err: &store.ConnError{Err: errors.New("down")},
	}
	env := setup(t, loader)

	rec := env.get(t, "/api/v1/dashboard")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// The failure is not cached: once the store is back, the next
	// render succeeds.
	loader.err = nil
	loader.docs = scenarioDocs()
	rec = env.get(t, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListSessions(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	rec := env.get(t, "/api/v1/sessions?devices=desktop")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[struct {
		Sessions []session.Row `json:"sessions"`
		Count    int           `json:"count"`
	}](t, rec)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "s2", body.Sessions[0].ID)
	assert.Equal(t, "bounced", body.Sessions[0].SessionType)
}

func TestFilterOptions(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	rec := env.get(t, "/api/v1/filters")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[struct {
		Devices      []string `json:"devices"`
		SessionTypes []string `json:"session_types"`
		DateFrom     string   `json:"date_from"`
		DateTo       string   `json:"date_to"`
	}](t, rec)
	assert.Equal(t, []string{"desktop", "mobile"}, body.Devices)
	assert.Equal(t,
		[]string{"bounced", "converted"}, body.SessionTypes)
	assert.Equal(t, "2024-06-01", body.DateFrom)
	assert.Equal(t, "2024-06-03", body.DateTo)
}

func TestExportCSV(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	rec := env.get(t, "/api/v1/export?devices=mobile&types=converted")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8",
		rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="session_data.csv"`,
		rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(
		strings.NewReader(rec.Body.String()),
	).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows
	assert.Equal(t, session.Columns, records[0])
	assert.Equal(t, "s1", records[1][0])
	assert.Equal(t, "s3", records[2][0])
}

func TestStatsAndRefresh(t *testing.T) {
	env := setup(t, &stubLoader{docs: scenarioDocs()})

	rec := env.get(t, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, 3.0, body["sessions"])
	assert.Equal(t, 300.0, body["cache_ttl_seconds"])

	req := httptest.NewRequest(
		http.MethodPost, "/api/v1/refresh", nil,
	)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	_, ok := env.snap.FetchedAt()
	assert.False(t, ok)
}

func TestVersion(t *testing.T) {
	env := setupWithServerOpts(t,
		&stubLoader{},
		[]server.Option{server.WithVersion(server.VersionInfo{
			Version: "1.2.3", Commit: "abc",
		})},
	)

	rec := env.get(t, "/api/v1/version")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "abc", body["commit"])
}

func TestCORSPreflight(t *testing.T) {
	env := setup(t, &stubLoader{})

	req := httptest.NewRequest(
		http.MethodOptions, "/api/v1/dashboard", nil,
	)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*",
		rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestTimeoutReturnsJSON(t *testing.T) {
	env := setupWithServerOpts(t,
		&stubLoader{docs: scenarioDocs()},
		[]server.Option{
			server.WithHandlerDelay(100 * time.Millisecond),
		},
		withWriteTimeout(10*time.Millisecond),
	)

	rec := env.get(t, "/api/v1/dashboard")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json",
		rec.Header().Get("Content-Type"))

	body := decodeJSON[map[string]string](t, rec)
	assert.Equal(t, "request timed out", body["error"])
}
