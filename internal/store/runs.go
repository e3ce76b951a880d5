package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Run struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Analyzed   int    `json:"analyzed"`
	Added      int    `json:"added"`
	Rejected   int    `json:"rejected"`
	Duplicates int    `json:"duplicates"`
	QuotaUsed  int    `json:"quotaUsed"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// RunClose carries everything CompleteRun writes when a run leaves "running".
type RunClose struct {
	Status     string // completed | failed
	Analyzed   int
	Added      int
	Rejected   int
	Duplicates int
	QuotaUsed  int
	Error      string
}

func InsertRun(ctx context.Context, db *sql.DB, id, runType string) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO curation_runs (id, run_type, status, started_at)
VALUES (?, ?, 'pending', ?);`,
		id, runType, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// PromoteRun flips pending -> running, but only while no other run is
// running. The single UPDATE on the single-writer pool is what enforces
// the at-most-one-running invariant, even across racing dispatchers.
// False means the row was not pending or another run won.
func PromoteRun(ctx context.Context, db *sql.DB, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `
UPDATE curation_runs SET status = 'running'
WHERE id = ? AND status = 'pending'
  AND NOT EXISTS (SELECT 1 FROM curation_runs WHERE status = 'running');`, id)
	if err != nil {
		return false, fmt.Errorf("promote run: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeletePendingRun removes a pending row that lost the promotion race and
// never ran. Keeps run history free of phantom entries.
func DeletePendingRun(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx, `
DELETE FROM curation_runs WHERE id = ? AND status = 'pending';`, id)
	if err != nil {
		return fmt.Errorf("delete pending run: %w", err)
	}
	return nil
}

// CompleteRun closes a running run. False means it was already terminal;
// callers treat that as a no-op, which is what makes duplicate termination
// signals harmless.
func CompleteRun(ctx context.Context, db *sql.DB, id string, c RunClose) (bool, error) {
	res, err := db.ExecContext(ctx, `
UPDATE curation_runs
SET status = ?, analyzed = ?, added = ?, rejected = ?, duplicates = ?,
    quota_used = ?, error = ?, finished_at = ?
WHERE id = ? AND status = 'running';`,
		c.Status, c.Analyzed, c.Added, c.Rejected, c.Duplicates,
		c.QuotaUsed, c.Error, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return false, fmt.Errorf("complete run: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func GetRun(ctx context.Context, db *sql.DB, id string) (Run, bool, error) {
	var r Run
	var finished sql.NullString
	err := db.QueryRowContext(ctx, `
SELECT id, run_type, status, analyzed, added, rejected, duplicates, quota_used, error, started_at, finished_at
FROM curation_runs WHERE id = ? LIMIT 1;`, id).Scan(
		&r.ID, &r.Type, &r.Status, &r.Analyzed, &r.Added, &r.Rejected,
		&r.Duplicates, &r.QuotaUsed, &r.Error, &r.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	r.FinishedAt = finished.String
	return r, true, nil
}

// HasActiveRun reports whether any run is pending or running right now.
// The status column is the source of truth, not host memory.
func HasActiveRun(ctx context.Context, db *sql.DB) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `
SELECT 1 FROM curation_runs WHERE status IN ('pending','running') LIMIT 1;`).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LastScheduledStart returns the start time of the most recent scheduled
// run, terminal or not. ok=false when none exists yet.
func LastScheduledStart(ctx context.Context, db *sql.DB) (time.Time, bool, error) {
	var s string
	err := db.QueryRowContext(ctx, `
SELECT started_at FROM curation_runs
WHERE run_type = 'scheduled'
ORDER BY started_at DESC LIMIT 1;`).Scan(&s)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse started_at %q: %w", s, err)
	}
	return t, true, nil
}

// FailStaleRuns closes pending/running rows that started before cutoff.
// Catches workers that died without a terminal message and hosts that
// crashed between dispatch and completion.
func FailStaleRuns(ctx context.Context, db *sql.DB, cutoff time.Time, reason string) (int64, error) {
	res, err := db.ExecContext(ctx, `
UPDATE curation_runs
SET status = 'failed', error = ?, finished_at = ?
WHERE status IN ('pending','running') AND started_at < ?;`,
		reason, time.Now().UTC().Format(time.RFC3339), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("fail stale runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
