package curate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscout-engine/internal/domain"
	"matscout-engine/internal/store"
)

func TestStartClaimsTheOnlySlot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	o := NewOrchestrator(db, 24*time.Hour)

	id, err := o.Start(ctx, domain.RunTypeManual)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	r, ok, err := store.GetRun(ctx, db, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusRunning, r.Status)
	assert.Equal(t, domain.RunTypeManual, r.Type)

	// second start while the first is live
	elig, err := o.CanStart(ctx, domain.RunTypeManual)
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	assert.Contains(t, elig.Reason, "already active")

	_, err = o.Start(ctx, domain.RunTypeManual)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestScheduledRunsRespectInterval(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	o := NewOrchestrator(db, 24*time.Hour)

	id, err := o.Start(ctx, domain.RunTypeScheduled)
	require.NoError(t, err)
	require.NoError(t, o.Complete(ctx, id, store.RunClose{Status: domain.RunStatusCompleted}))

	elig, err := o.CanStart(ctx, domain.RunTypeScheduled)
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	assert.Contains(t, elig.Reason, "interval")

	// a manual run ignores the scheduled interval
	elig, err = o.CanStart(ctx, domain.RunTypeManual)
	require.NoError(t, err)
	assert.True(t, elig.Eligible)

	// once the interval has passed, scheduled runs are eligible again
	o.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	elig, err = o.CanStart(ctx, domain.RunTypeScheduled)
	require.NoError(t, err)
	assert.True(t, elig.Eligible)
}

func TestCompleteAbsorbsSecondSignal(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	o := NewOrchestrator(db, time.Hour)

	id, err := o.Start(ctx, domain.RunTypeManual)
	require.NoError(t, err)

	require.NoError(t, o.Complete(ctx, id, store.RunClose{
		Status: domain.RunStatusCompleted, Analyzed: 4, Added: 2,
	}))
	// the worker-exit vs host-timeout race delivers a second close
	require.NoError(t, o.Complete(ctx, id, store.RunClose{
		Status: domain.RunStatusFailed, Error: "late timeout",
	}))

	r, _, err := store.GetRun(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, r.Status)
	assert.Equal(t, 2, r.Added)
	assert.Empty(t, r.Error)
}

func TestReconcileStaleFailsAbandonedRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	o := NewOrchestrator(db, time.Hour)

	id, err := o.Start(ctx, domain.RunTypeManual)
	require.NoError(t, err)

	// nothing stale yet
	n, err := o.ReconcileStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	// age the run past the window
	_, err = db.ExecContext(ctx, `UPDATE curation_runs SET started_at = ? WHERE id = ?;`,
		time.Now().UTC().Add(-2*time.Hour).Format(time.RFC3339), id)
	require.NoError(t, err)

	n, err = o.ReconcileStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	r, _, err := store.GetRun(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, r.Status)
	assert.Contains(t, r.Error, "timed out or crashed")

	// the slot is free again
	elig, err := o.CanStart(ctx, domain.RunTypeManual)
	require.NoError(t, err)
	assert.True(t, elig.Eligible)
}
