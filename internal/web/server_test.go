package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/detect"
	"github.com/hugo-lorenzo-mato/leakgate/internal/ledger"
	"github.com/hugo-lorenzo-mato/leakgate/internal/policy"
	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
	"github.com/hugo-lorenzo-mato/leakgate/internal/watchdog"
)

func newTestServer(t *testing.T) (*Server, *ledger.Ledger, *watchdog.Watchdog) {
	t.Helper()
	led := ledger.New()
	t.Cleanup(func() { led.Close() })

	store := policy.NewStore([]policy.Policy{{
		ResourceType:  core.ResourceFile,
		MaxConcurrent: 1,
		MaxAge:        time.Hour,
		Severity:      core.SeverityError,
	}})
	wd := watchdog.New(watchdog.Config{
		Ledger:   led,
		Policies: func() core.PolicyLookup { return store },
		Runner:   detect.NewRunner(detect.Builtin(nil)),
		Interval: time.Hour,
	})

	srv := New(DefaultConfig(), led, nil, WithWatchdog(wd))
	return srv, led, wd
}

func TestServer_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServer_Stats(t *testing.T) {
	srv, led, _ := newTestServer(t)
	ctx := context.Background()

	_, err := led.Acquire(ctx, core.ResourceFile, "indexer", "")
	require.NoError(t, err)
	_, err = led.Acquire(ctx, core.ResourceSocket, "client", "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.OpenByType["file"])
	assert.Equal(t, 1, resp.OpenByType["socket"])
	assert.Equal(t, string(watchdog.StateIdle), resp.WatchdogState)
}

func TestServer_StatsDoesNotConsumeRejectedReleases(t *testing.T) {
	srv, led, wd := newTestServer(t)
	ctx := context.Background()

	id, err := led.Acquire(ctx, core.ResourceFile, "indexer", "")
	require.NoError(t, err)
	require.NoError(t, led.Release(ctx, id))
	require.Error(t, led.Release(ctx, id))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// The detection pass after the stats read must still see the
	// double-release event.
	set := wd.RunNow(ctx)
	var kinds []core.ViolationKind
	for _, v := range set.Violations {
		kinds = append(kinds, v.Kind)
	}
	assert.Contains(t, kinds, core.ViolationDoubleRelease)
}

func TestServer_ReportBeforeAnyRun(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/report", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ReportAfterRun(t *testing.T) {
	srv, led, wd := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := led.Acquire(ctx, core.ResourceFile, "indexer", "")
		require.NoError(t, err)
	}
	set := wd.RunNow(ctx)
	require.NotEmpty(t, set.Violations)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rep report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, set.RunID, rep.RunID)
	assert.Equal(t, 1, rep.Summary.Total)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/violations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var violations []core.Violation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &violations))
	require.Len(t, violations, 1)
	assert.Equal(t, core.ViolationCountExceeded, violations[0].Kind)
}
