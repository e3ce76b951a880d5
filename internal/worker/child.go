package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"matscout-engine/internal/analysis"
	"matscout-engine/internal/config"
	"matscout-engine/internal/curate"
	"matscout-engine/internal/domain"
	"matscout-engine/internal/exhaust"
	"matscout-engine/internal/priority"
	"matscout-engine/internal/quota"
	"matscout-engine/internal/search"
	"matscout-engine/internal/secrets"
	"matscout-engine/internal/store"
)

// RunChild is the worker process body: claim the file lock, open an own
// database handle, run the pipeline, close the run row, emit a terminal
// message, exit. The host treats a second close as a no-op, so either
// side may win the close race.
func RunChild(ctx context.Context, cfg config.Config, runID string, out io.Writer) error {
	em := newEmitter(out, runID)

	lk := flock.New(filepath.Join(cfg.App.DataDir, "worker.lock"))
	got, err := lk.TryLock()
	if err != nil {
		return failChild(em, nil, runID, fmt.Errorf("worker lock: %w", err))
	}
	if !got {
		return failChild(em, nil, runID, errors.New("another worker already holds the lock"))
	}
	defer func() {
		if err := lk.Unlock(); err != nil {
			log.Printf("[worker] release lock: %v", err)
		}
	}()

	db, err := store.OpenAt(cfg.App.DataDir)
	if err != nil {
		return failChild(em, nil, runID, fmt.Errorf("open store: %w", err))
	}
	defer db.Close()

	r, ok, err := store.GetRun(ctx, db.Pool, runID)
	if err != nil {
		return failChild(em, db.Pool, runID, fmt.Errorf("load run: %w", err))
	}
	if !ok {
		return failChild(em, nil, runID, fmt.Errorf("unknown run %s", runID))
	}
	if r.Status != domain.RunStatusRunning {
		return failChild(em, nil, runID, fmt.Errorf("run %s is %s, not running", runID, r.Status))
	}

	pipe, err := buildPipeline(cfg, db.Pool, em)
	if err != nil {
		return failChild(em, db.Pool, runID, err)
	}

	em.progress("start", fmt.Sprintf("curation run %s underway", runID), "info")

	sum, err := pipe.Run(ctx, runID)
	if err != nil {
		return failChild(em, db.Pool, runID, err)
	}

	if _, err := store.CompleteRun(ctx, db.Pool, runID, store.RunClose{
		Status:     domain.RunStatusCompleted,
		Analyzed:   sum.Analyzed,
		Added:      sum.Added,
		Rejected:   sum.Rejected,
		Duplicates: sum.Duplicates,
		QuotaUsed:  sum.QuotaUsed,
	}); err != nil {
		log.Printf("[worker] close own run row: %v", err)
	}

	em.complete(sum)
	return nil
}

// failChild reports one failure to every listener: the run row when a
// handle is available, the host via stdout, and the caller.
func failChild(em *emitter, db *sql.DB, runID string, err error) error {
	if db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, cerr := store.CompleteRun(ctx, db, runID, store.RunClose{
			Status: domain.RunStatusFailed, Error: err.Error(),
		}); cerr != nil {
			log.Printf("[worker] close failed run row: %v", cerr)
		}
	}
	em.failed(err.Error())
	return err
}

func buildPipeline(cfg config.Config, db *sql.DB, em *emitter) (*curate.Pipeline, error) {
	searchKey, err := secrets.Get(secrets.AccountSearchAPI)
	if err != nil {
		return nil, fmt.Errorf("search API key: %w", err)
	}
	llmKey, err := secrets.Get(secrets.AccountLLMAPI)
	if err != nil {
		return nil, fmt.Errorf("analysis API key: %w", err)
	}

	ledger := quota.NewLedger(db, cfg.Quota.DailyCeiling)
	sc := search.New(search.Config{
		Endpoint:   cfg.Search.Endpoint,
		APIKey:     searchKey,
		SearchCost: cfg.Quota.SearchCost,
		DetailCost: cfg.Quota.DetailCost,
		RatePerSec: cfg.Search.RatePerSec,
		Burst:      cfg.Search.Burst,
	}, ledger)
	tracker := exhaust.NewTracker(db, cfg.Exhaustion.TriggerCount, cfg.Cooldown())

	var prober curate.Prober
	if cfg.Search.ProbeChannels {
		prober = sc
	}

	return &curate.Pipeline{
		DB:       db,
		Search:   sc,
		Analyzer: analysis.New(analysis.Config{Endpoint: cfg.Analysis.Endpoint, Model: cfg.Analysis.Model, APIKey: llmKey}),
		Prober:   prober,
		Selector: priority.New(db, tracker),
		Tracker:  tracker,
		Ledger:   ledger,
		Emit:     em.progress,

		BatchSize:   cfg.Curation.BatchSize,
		MaxResults:  cfg.Curation.MaxResults,
		MinDuration: cfg.Filters.MinDurationSec,
		MaxDuration: cfg.Filters.MaxDurationSec,
		Threshold:   cfg.Scoring.AcceptThreshold,
		Parallel:    cfg.Curation.AnalysisParallel,

		Tiers: curate.TiersFromLists(cfg.Instructors.Elite, cfg.Instructors.Recognized, cfg.Instructors.Solid),
	}, nil
}
