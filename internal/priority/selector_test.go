package priority

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscout-engine/internal/domain"
	"matscout-engine/internal/exhaust"
	"matscout-engine/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, store.Migrate(d.Pool))
	return d.Pool
}

func addCoverage(t *testing.T, db *sql.DB, technique string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		added, err := store.InsertVideoIgnore(ctx, db, store.VideoInsert{
			SourceID:  fmt.Sprintf("%s-%d", technique, i),
			Title:     technique,
			Technique: technique, TechniqueType: "submission",
			Status: "active", TagsJSON: "[]",
		})
		require.NoError(t, err)
		require.True(t, added)
	}
}

func TestTopPrioritiesOrdering(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDemandSignal(ctx, db, store.DemandSignal{
		Technique: "heel hook", UserRequests: 20, MetaHeat: 90, TargetMin: 5,
		SearchTerms: []string{"heel hook details"},
	}))
	require.NoError(t, store.UpsertDemandSignal(ctx, db, store.DemandSignal{
		Technique: "kimura", UserRequests: 4, MetaHeat: 40, TargetMin: 6,
		SearchTerms: []string{"kimura from side control"},
	}))
	addCoverage(t, db, "kimura", 3)

	sel := New(db, exhaust.NewTracker(db, 5, 14*24*time.Hour))
	got, err := sel.TopPriorities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// heel hook: demand 95, gap 100 -> 97; kimura: demand 30, gap 50 -> 38
	assert.Equal(t, "heel hook", got[0].Technique)
	assert.InDelta(t, 97.0, got[0].Score, 0.001)
	assert.Equal(t, "kimura", got[1].Technique)
	assert.InDelta(t, 38.0, got[1].Score, 0.001)

	one, err := sel.TopPriorities(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "heel hook", one[0].Technique)
}

func TestTieBreakByRawDemand(t *testing.T) {
	hot := domain.CoveragePriority{Technique: "z guard sweep", Score: 68, Demand: 80}
	cool := domain.CoveragePriority{Technique: "arm triangle", Score: 68, Demand: 70}

	assert.True(t, less(hot, cool))
	assert.False(t, less(cool, hot))

	// same score and demand falls through to the name
	cool.Demand = 80
	assert.False(t, less(hot, cool))
	assert.True(t, less(cool, hot))
}

func TestTieBreakByTechniqueName(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, name := range []string{"berimbolo", "armbar"} {
		require.NoError(t, store.UpsertDemandSignal(ctx, db, store.DemandSignal{
			Technique: name, UserRequests: 10, MetaHeat: 60, TargetMin: 5,
		}))
	}

	sel := New(db, exhaust.NewTracker(db, 5, 14*24*time.Hour))
	got, err := sel.TopPriorities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "armbar", got[0].Technique)
	assert.Equal(t, "berimbolo", got[1].Technique)
}

func TestExcludesFullyCoolingTechniques(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDemandSignal(ctx, db, store.DemandSignal{
		Technique: "heel hook", UserRequests: 20, MetaHeat: 90, TargetMin: 5,
		Instructors: []string{"Coach A"},
	}))
	require.NoError(t, store.UpsertDemandSignal(ctx, db, store.DemandSignal{
		Technique: "kimura", UserRequests: 8, MetaHeat: 50, TargetMin: 5,
		Instructors: []string{"Coach A", "Coach B"},
	}))
	require.NoError(t, store.UpsertDemandSignal(ctx, db, store.DemandSignal{
		Technique: "armbar", UserRequests: 8, MetaHeat: 50, TargetMin: 5,
	}))

	tracker := exhaust.NewTracker(db, 2, 14*24*time.Hour)
	require.NoError(t, tracker.RecordEmpty(ctx, "Coach A"))
	require.NoError(t, tracker.RecordEmpty(ctx, "Coach A"))

	sel := New(db, tracker)
	got, err := sel.TopPriorities(ctx, 10)
	require.NoError(t, err)

	byName := map[string][]string{}
	for _, p := range got {
		byName[p.Technique] = p.Instructors
	}
	require.Len(t, got, 2) // heel hook dropped: its only instructor is cooling
	assert.NotContains(t, byName, "heel hook")
	assert.Equal(t, []string{"Coach B"}, byName["kimura"])
	assert.Empty(t, byName["armbar"])
}

func TestGapZeroOnceTargetMet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDemandSignal(ctx, db, store.DemandSignal{
		Technique: "triangle choke", UserRequests: 10, MetaHeat: 70, TargetMin: 3,
	}))
	addCoverage(t, db, "triangle choke", 3)

	sel := New(db, exhaust.NewTracker(db, 5, 14*24*time.Hour))
	got, err := sel.TopPriorities(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Zero(t, got[0].Gap)
	assert.InDelta(t, 0.6*got[0].Demand, got[0].Score, 0.001)
}
