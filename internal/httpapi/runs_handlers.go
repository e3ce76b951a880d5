package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"matscout-engine/internal/curate"
	"matscout-engine/internal/domain"
	"matscout-engine/internal/events"
	"matscout-engine/internal/metrics"
	"matscout-engine/internal/quota"
	"matscout-engine/internal/store"
)

type RunsHandler struct {
	DB        *sql.DB
	Orc       *curate.Orchestrator
	Hub       *events.Hub
	Spawn     func(ctx context.Context, runID string)
	Ledger    *quota.Ledger
	Collector *metrics.Collector
}

type startRunReq struct {
	Type string `json:"type"`
}

type startRunResp struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// Start claims the run slot and hands the run to the worker host. The
// request returns as soon as the slot is claimed; progress streams over
// /api/events.
func (h RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRunReq
	_ = json.NewDecoder(r.Body).Decode(&req) // empty body means manual

	runType := req.Type
	switch runType {
	case "":
		runType = domain.RunTypeManual
	case domain.RunTypeManual, domain.RunTypeScheduled:
	default:
		WriteError(w, r, http.StatusBadRequest, "bad_run_type", "type must be manual or scheduled")
		return
	}

	id, err := h.Orc.Start(r.Context(), runType)
	if errors.Is(err, curate.ErrNotEligible) {
		WriteError(w, r, http.StatusConflict, "run_not_eligible", err.Error())
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}

	if h.Collector != nil {
		h.Collector.RunStarted()
	}
	h.Hub.Publish(events.RunStarted(id, runType))

	// The run outlives this request.
	go h.Spawn(context.Background(), id)

	WriteJSON(w, http.StatusAccepted, startRunResp{RunID: id, Status: domain.RunStatusRunning})
}

func (h RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok, err := store.GetRun(r.Context(), h.DB, id)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if !ok {
		WriteError(w, r, http.StatusNotFound, "run_not_found", "no run with id "+id)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

func (h RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	runs, err := store.RunHistory(r.Context(), h.DB, store.RunHistoryOpts{
		Status: q.Get("status"),
		Type:   q.Get("type"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	WriteJSON(w, http.StatusOK, runs)
}

func (h RunsHandler) Videos(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok, err := store.GetRun(r.Context(), h.DB, id); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	} else if !ok {
		WriteError(w, r, http.StatusNotFound, "run_not_found", "no run with id "+id)
		return
	}

	videos, err := store.VideosByRun(r.Context(), h.DB, id)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if videos == nil {
		videos = []store.AcceptedVideo{}
	}
	WriteJSON(w, http.StatusOK, videos)
}

type statsResp struct {
	Summary    store.StatsSummary     `json:"summary"`
	Techniques []store.TechniqueCount `json:"techniques"`
	Quota      quotaStatus            `json:"quota"`
}

type quotaStatus struct {
	Used      int  `json:"used"`
	Ceiling   int  `json:"ceiling"`
	Exhausted bool `json:"exhausted"`
}

func (h RunsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var resp statsResp
	var err error

	resp.Summary, err = store.Stats(r.Context(), h.DB)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	resp.Techniques, err = store.TechniqueBreakdown(r.Context(), h.DB, 20)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if resp.Techniques == nil {
		resp.Techniques = []store.TechniqueCount{}
	}
	resp.Quota, err = h.quotaStatus(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h RunsHandler) quotaStatus(ctx context.Context) (quotaStatus, error) {
	s := quotaStatus{}
	if h.Ledger == nil {
		return s, nil
	}
	used, err := h.Ledger.Used(ctx)
	if err != nil {
		return s, err
	}
	exhausted, err := h.Ledger.Exhausted(ctx)
	if err != nil {
		return s, err
	}
	s.Used, s.Ceiling, s.Exhausted = used, h.Ledger.Ceiling(), exhausted
	if h.Collector != nil {
		h.Collector.SetQuotaUsed(used)
	}
	return s, nil
}
