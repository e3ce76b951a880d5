package priority

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"matscout-engine/internal/domain"
	"matscout-engine/internal/exhaust"
	"matscout-engine/internal/store"
)

// Selector ranks which techniques most need new footage right now. The
// ranking is recomputed from live demand and coverage data on every call.
type Selector struct {
	db      *sql.DB
	tracker *exhaust.Tracker
}

func New(db *sql.DB, tracker *exhaust.Tracker) *Selector {
	return &Selector{db: db, tracker: tracker}
}

// TopPriorities returns up to limit priorities, best first. Priority is
// 0.6*demand + 0.4*coverage-gap; ties fall back to raw demand, then to the
// technique name so the order is stable across calls.
func (s *Selector) TopPriorities(ctx context.Context, limit int) ([]domain.CoveragePriority, error) {
	signals, err := store.ListDemandSignals(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list demand signals: %w", err)
	}

	out := make([]domain.CoveragePriority, 0, len(signals))
	for _, sig := range signals {
		eligible, err := s.eligibleInstructors(ctx, sig.Instructors)
		if err != nil {
			return nil, err
		}
		// A technique whose every mapped instructor is cooling down has
		// nothing worth spending quota on this run.
		if len(sig.Instructors) > 0 && len(eligible) == 0 {
			continue
		}

		covered, err := store.CoverageCount(ctx, s.db, sig.Technique)
		if err != nil {
			return nil, fmt.Errorf("coverage for %s: %w", sig.Technique, err)
		}

		demand := DemandScore(sig)
		gap := gapScore(covered, sig.TargetMin)
		out = append(out, domain.CoveragePriority{
			Technique:        sig.Technique,
			PositionCategory: sig.PositionCategory,
			Score:            0.6*demand + 0.4*gap,
			Demand:           demand,
			Gap:              gap,
			Emerging:         sig.Emerging,
			SearchTerms:      sig.SearchTerms,
			Instructors:      eligible,
		})
	}

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// less orders priorities best-first: score, then raw demand, then name.
func less(a, b domain.CoveragePriority) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Demand != b.Demand {
		return a.Demand > b.Demand
	}
	return a.Technique < b.Technique
}

func (s *Selector) eligibleInstructors(ctx context.Context, instructors []string) ([]string, error) {
	var out []string
	for _, in := range instructors {
		ok, err := s.tracker.Eligible(ctx, in)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, in)
		}
	}
	return out, nil
}

// DemandScore blends direct user asks with competitive-meta heat, 0..100.
// Requests saturate at 20; past that a technique is as requested as it
// gets. The scorer's emerging dimension reuses this for per-candidate
// demand lookups.
func DemandScore(sig store.DemandSignal) float64 {
	req := float64(sig.UserRequests) * 5
	if req > 100 {
		req = 100
	}
	return 0.5*req + 0.5*float64(sig.MetaHeat)
}

// gapScore scales the shortfall against the target minimum onto 0..100.
func gapScore(covered, target int) float64 {
	if target <= 0 {
		target = 5
	}
	if covered >= target {
		return 0
	}
	return float64(target-covered) / float64(target) * 100
}
