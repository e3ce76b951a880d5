package quota

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscout-engine/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, store.Migrate(d.Pool))
	return d.Pool
}

func TestReserveWithinCeiling(t *testing.T) {
	l := NewLedger(testDB(t), 250)
	ctx := context.Background()

	require.NoError(t, l.Reserve(ctx, 100))
	require.NoError(t, l.Reserve(ctx, 100))

	used, err := l.Used(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, used)
}

func TestReserveRejectsBeforeNetwork(t *testing.T) {
	l := NewLedger(testDB(t), 250)
	ctx := context.Background()

	require.NoError(t, l.Reserve(ctx, 200))

	err := l.Reserve(ctx, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))

	// the rejected reservation wrote nothing
	used, err := l.Used(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, used)

	// consumption never exceeds the ceiling
	assert.LessOrEqual(t, used, l.Ceiling())
}

func TestExactCeilingFits(t *testing.T) {
	l := NewLedger(testDB(t), 200)
	ctx := context.Background()

	require.NoError(t, l.Reserve(ctx, 200))
	assert.ErrorIs(t, l.Reserve(ctx, 1), ErrExhausted)
}

func TestProviderLatch(t *testing.T) {
	l := NewLedger(testDB(t), 10000)
	ctx := context.Background()

	require.NoError(t, l.Reserve(ctx, 100))
	require.NoError(t, l.MarkExhausted(ctx))

	ex, err := l.Exhausted(ctx)
	require.NoError(t, err)
	assert.True(t, ex)

	// local headroom is irrelevant once the provider said no
	assert.ErrorIs(t, l.Reserve(ctx, 1), ErrExhausted)
}

func TestBudgetResetsNextDay(t *testing.T) {
	l := NewLedger(testDB(t), 100)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day1 }

	require.NoError(t, l.Reserve(ctx, 100))
	assert.ErrorIs(t, l.Reserve(ctx, 1), ErrExhausted)
	require.NoError(t, l.MarkExhausted(ctx))

	l.now = func() time.Time { return day1.Add(24 * time.Hour) }

	require.NoError(t, l.Reserve(ctx, 100), "fresh day, fresh budget, latch gone")
	used, err := l.Used(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, used)
}
