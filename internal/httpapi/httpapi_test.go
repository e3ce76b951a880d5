package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscout-engine/internal/config"
	"matscout-engine/internal/curate"
	"matscout-engine/internal/domain"
	"matscout-engine/internal/events"
	"matscout-engine/internal/metrics"
	"matscout-engine/internal/quota"
	"matscout-engine/internal/store"
)

type apiFixture struct {
	h       http.Handler
	db      *sql.DB
	hub     *events.Hub
	spawned chan string
	cfgPath string
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	dir := t.TempDir()

	d, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, store.Migrate(d.Pool))

	cfgPath := filepath.Join(dir, "config.yml")
	require.NoError(t, config.SaveAtomic(cfgPath, config.Default()))

	cfgVal := &atomic.Value{}
	cfgVal.Store(config.Default())

	f := &apiFixture{
		db:      d.Pool,
		hub:     events.NewHub(),
		spawned: make(chan string, 4),
		cfgPath: cfgPath,
	}
	f.h = New(Deps{
		DB:          d.Pool,
		Hub:         f.hub,
		Orc:         curate.NewOrchestrator(d.Pool, 24*time.Hour),
		Spawn:       func(_ context.Context, id string) { f.spawned <- id },
		CfgVal:      cfgVal,
		UserCfgPath: cfgPath,
		LoadCfg:     func() (config.Config, error) { return config.Load(cfgPath) },
		Ledger:      quota.NewLedger(d.Pool, 10000),
		Collector:   metrics.New(),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestStartRunAcceptedThenConflict(t *testing.T) {
	f := newFixture(t)
	sub := f.hub.Subscribe()
	defer f.hub.Unsubscribe(sub)

	rec := f.do(t, "POST", "/api/curation/runs", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	resp := decodeAs[startRunResp](t, rec)
	require.NotEmpty(t, resp.RunID)
	assert.Equal(t, domain.RunStatusRunning, resp.Status)

	select {
	case id := <-f.spawned:
		assert.Equal(t, resp.RunID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("worker was never spawned")
	}

	var started events.Event
	require.NoError(t, json.Unmarshal([]byte(<-sub), &started))
	assert.Equal(t, events.TypeRunStarted, started.Type)

	// slot is taken until the worker closes the run
	rec = f.do(t, "POST", "/api/curation/runs", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	e := decodeAs[APIError](t, rec)
	assert.Equal(t, "run_not_eligible", e.Error.Code)
	assert.Contains(t, e.Error.Message, "already active")
}

func TestStartRunRejectsBadType(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/curation/runs", map[string]string{"type": "weekly"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_run_type", decodeAs[APIError](t, rec).Error.Code)
}

func TestGetRunNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/curation/runs/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	e := decodeAs[APIError](t, rec)
	assert.Equal(t, "run_not_found", e.Error.Code)
	assert.NotEmpty(t, e.Error.RequestID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func seedRun(t *testing.T, db *sql.DB, id, status string, added int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.InsertRun(ctx, db, id, domain.RunTypeManual))
	won, err := store.PromoteRun(ctx, db, id)
	require.NoError(t, err)
	require.True(t, won)
	_, err = store.CompleteRun(ctx, db, id, store.RunClose{Status: status, Analyzed: added + 1, Added: added})
	require.NoError(t, err)
}

func TestRunHistoryFilters(t *testing.T) {
	f := newFixture(t)
	seedRun(t, f.db, "r1", domain.RunStatusCompleted, 2)
	seedRun(t, f.db, "r2", domain.RunStatusFailed, 0)
	seedRun(t, f.db, "r3", domain.RunStatusCompleted, 1)

	rec := f.do(t, "GET", "/api/curation/runs?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]store.Run](t, rec), 2)

	rec = f.do(t, "GET", "/api/curation/runs?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]store.Run](t, rec), 1)

	rec = f.do(t, "GET", "/api/curation/runs", nil)
	assert.Len(t, decodeAs[[]store.Run](t, rec), 3)
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	seedRun(t, f.db, "r1", domain.RunStatusCompleted, 2)

	_, err := store.InsertVideoIgnore(context.Background(), f.db, store.VideoInsert{
		SourceID: "v1", Title: "Heel Hook Details", Channel: "Lachlan Giles",
		Technique: "heel hook", TechniqueType: "submission", PositionCategory: "leg entanglement",
		GiOrNogi: "nogi", QualityScore: 88, SkillLevel: "advanced", Status: "active",
		TagsJSON: "[]", DurationSec: 600, RunID: "r1",
	})
	require.NoError(t, err)

	rec := f.do(t, "GET", "/api/curation/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeAs[statsResp](t, rec)
	assert.Equal(t, 1, got.Summary.TotalRuns)
	assert.Equal(t, 2, got.Summary.TotalAdded)
	assert.Equal(t, 1, got.Summary.LibrarySize)
	assert.Equal(t, 10000, got.Quota.Ceiling)
	assert.Equal(t, 0, got.Quota.Used)
	require.Len(t, got.Techniques, 1)
	assert.Equal(t, "heel hook", got.Techniques[0].Technique)
}

func TestConfigRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decodeAs[config.Config](t, rec)
	assert.Equal(t, 10000, cfg.Quota.DailyCeiling)

	cfg.Scoring.AcceptThreshold = 80
	rec = f.do(t, "PUT", "/api/config", cfg)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, "GET", "/api/config", nil)
	assert.Equal(t, 80, decodeAs[config.Config](t, rec).Scoring.AcceptThreshold)

	// a config that could never search anything is refused
	cfg.Quota.DailyCeiling = 0
	rec = f.do(t, "PUT", "/api/config", cfg)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	vr := decodeAs[config.Validation](t, rec)
	require.NotEmpty(t, vr.Errors)
	assert.Contains(t, vr.Errors[0], "daily_ceiling")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeAs[map[string]any](t, rec)
	assert.Equal(t, true, got["ok"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/curation/runs", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-f.spawned

	rec = f.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "curation_runs_started_total 1")
}

func TestSSEStreamsRunEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/events", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	br := bufio.NewReader(res.Body)
	readData := func() string {
		for {
			line, err := br.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	// hello ping arrives before anything is published
	var hello events.Event
	require.NoError(t, json.Unmarshal([]byte(readData()), &hello))
	assert.Equal(t, "ping", hello.Type)

	f.hub.Publish(events.RunStarted("run-sse", domain.RunTypeManual))

	var got events.Event
	require.NoError(t, json.Unmarshal([]byte(readData()), &got))
	assert.Equal(t, events.TypeRunStarted, got.Type)
	assert.Contains(t, string(got.Data), "run-sse")
}

func TestVideoThumbnailCachedAfterFirstFetch(t *testing.T) {
	f := newFixture(t)

	png := []byte("\x89PNG\r\n\x1a\nfakepixels")
	hits := 0
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer origin.Close()

	_, err := store.InsertVideoIgnore(context.Background(), f.db, store.VideoInsert{
		SourceID: "yt-th1", Title: "Kimura grips", Technique: "kimura",
		Status: "active", TagsJSON: "[]",
		ThumbnailURL: origin.URL + "/vi/th1/mqdefault.jpg",
	})
	require.NoError(t, err)

	rec := f.do(t, "GET", "/api/curation/videos/yt-th1/thumbnail", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	// second request never leaves the engine
	origin.Close()
	rec = f.do(t, "GET", "/api/curation/videos/yt-th1/thumbnail", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, png, rec.Body.Bytes())
	assert.Equal(t, 1, hits)
}

func TestVideoThumbnailUnknownVideo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/curation/videos/ghost/thumbnail", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	e := decodeAs[APIError](t, rec)
	assert.Equal(t, "video_not_found", e.Error.Code)
}
