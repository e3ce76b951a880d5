package curate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"matscout-engine/internal/domain"
	"matscout-engine/internal/store"
)

// ErrNotEligible is returned by Start when another run holds the slot.
var ErrNotEligible = errors.New("curate: run not eligible")

// Orchestrator owns the run lifecycle. The status column in curation_runs
// is the source of truth for "is anything running", never host memory.
type Orchestrator struct {
	db       *sql.DB
	interval time.Duration // minimum gap between scheduled runs
	now      func() time.Time
}

func NewOrchestrator(db *sql.DB, interval time.Duration) *Orchestrator {
	return &Orchestrator{db: db, interval: interval, now: time.Now}
}

type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// CanStart checks run eligibility without claiming anything. Manual runs
// bypass the scheduled-interval check but still respect the active-run
// exclusion.
func (o *Orchestrator) CanStart(ctx context.Context, runType string) (Eligibility, error) {
	active, err := store.HasActiveRun(ctx, o.db)
	if err != nil {
		return Eligibility{}, fmt.Errorf("check active run: %w", err)
	}
	if active {
		return Eligibility{Reason: "a curation run is already active"}, nil
	}

	if runType == domain.RunTypeScheduled {
		last, ok, err := store.LastScheduledStart(ctx, o.db)
		if err != nil {
			return Eligibility{}, err
		}
		if ok && o.now().Sub(last) < o.interval {
			return Eligibility{Reason: fmt.Sprintf("last scheduled run started %s ago, interval is %s",
				o.now().Sub(last).Round(time.Minute), o.interval)}, nil
		}
	}

	return Eligibility{Eligible: true}, nil
}

// Start creates and claims a run. The pending insert plus guarded
// promotion means two racing dispatchers cannot both end up running; the
// loser's pending row is removed and ErrNotEligible returned.
func (o *Orchestrator) Start(ctx context.Context, runType string) (string, error) {
	elig, err := o.CanStart(ctx, runType)
	if err != nil {
		return "", err
	}
	if !elig.Eligible {
		return "", fmt.Errorf("%w: %s", ErrNotEligible, elig.Reason)
	}

	id := uuid.NewString()
	if err := store.InsertRun(ctx, o.db, id, runType); err != nil {
		return "", err
	}

	won, err := store.PromoteRun(ctx, o.db, id)
	if err != nil {
		return "", err
	}
	if !won {
		if derr := store.DeletePendingRun(ctx, o.db, id); derr != nil {
			log.Printf("[curate] drop pending run %s: %v", id, derr)
		}
		return "", fmt.Errorf("%w: another run won the start race", ErrNotEligible)
	}

	log.Printf("[curate] run %s started type=%s", id, runType)
	return id, nil
}

// Complete closes a run. A run already closed by the other side of the
// worker boundary is a logged no-op, not an error.
func (o *Orchestrator) Complete(ctx context.Context, runID string, c store.RunClose) error {
	closed, err := store.CompleteRun(ctx, o.db, runID, c)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	if !closed {
		log.Printf("[curate] run %s already closed, dropping %s signal", runID, c.Status)
		return nil
	}
	log.Printf("[curate] run %s closed status=%s analyzed=%d added=%d rejected=%d duplicates=%d quota=%d",
		runID, c.Status, c.Analyzed, c.Added, c.Rejected, c.Duplicates, c.QuotaUsed)
	return nil
}

// ReconcileStale fails pending/running rows older than olderThan. Called
// at startup and from the scheduler loop so a crashed worker can never
// leave a run "running" forever.
func (o *Orchestrator) ReconcileStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := o.now().Add(-olderThan)
	n, err := store.FailStaleRuns(ctx, o.db, cutoff, "worker timed out or crashed")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[curate] reconciled %d stale run(s)", n)
	}
	return n, nil
}
