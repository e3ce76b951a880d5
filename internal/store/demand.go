package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type DemandSignal struct {
	Technique        string   `json:"technique"`
	PositionCategory string   `json:"positionCategory"`
	UserRequests     int      `json:"userRequests"`
	MetaHeat         int      `json:"metaHeat"` // 0..100 competitive-meta trend
	TargetMin        int      `json:"targetMin"`
	SearchTerms      []string `json:"searchTerms"`
	Instructors      []string `json:"instructors"`
	Emerging         bool     `json:"emerging"`
	UpdatedAt        string   `json:"updatedAt"`
}

func ListDemandSignals(ctx context.Context, db *sql.DB) ([]DemandSignal, error) {
	rows, err := db.QueryContext(ctx, `
SELECT technique, position_category, user_requests, meta_heat, target_min,
       search_terms, instructors, emerging, updated_at
FROM demand_signals
ORDER BY technique;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DemandSignal
	for rows.Next() {
		var d DemandSignal
		var termsJSON, instructorsJSON string
		var emerging int
		if err := rows.Scan(&d.Technique, &d.PositionCategory, &d.UserRequests,
			&d.MetaHeat, &d.TargetMin, &termsJSON, &instructorsJSON, &emerging, &d.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(termsJSON), &d.SearchTerms)
		_ = json.Unmarshal([]byte(instructorsJSON), &d.Instructors)
		d.Emerging = emerging != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDemandSignal looks one technique up by its canonical (lowercase)
// name. ok=false when the product has no demand row for it.
func GetDemandSignal(ctx context.Context, db *sql.DB, technique string) (DemandSignal, bool, error) {
	row := db.QueryRowContext(ctx, `
SELECT technique, position_category, user_requests, meta_heat, target_min,
       search_terms, instructors, emerging, updated_at
FROM demand_signals WHERE technique = ? LIMIT 1;`, technique)

	var d DemandSignal
	var termsJSON, instructorsJSON string
	var emerging int
	err := row.Scan(&d.Technique, &d.PositionCategory, &d.UserRequests,
		&d.MetaHeat, &d.TargetMin, &termsJSON, &instructorsJSON, &emerging, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return DemandSignal{}, false, nil
	}
	if err != nil {
		return DemandSignal{}, false, err
	}
	_ = json.Unmarshal([]byte(termsJSON), &d.SearchTerms)
	_ = json.Unmarshal([]byte(instructorsJSON), &d.Instructors)
	d.Emerging = emerging != 0
	return d, true, nil
}

func UpsertDemandSignal(ctx context.Context, db *sql.DB, d DemandSignal) error {
	terms, _ := json.Marshal(d.SearchTerms)
	instructors, _ := json.Marshal(d.Instructors)
	emerging := 0
	if d.Emerging {
		emerging = 1
	}

	_, err := db.ExecContext(ctx, `
INSERT INTO demand_signals(technique, position_category, user_requests, meta_heat,
  target_min, search_terms, instructors, emerging, updated_at)
VALUES(?,?,?,?,?,?,?,?,?)
ON CONFLICT(technique) DO UPDATE SET
  position_category = excluded.position_category,
  user_requests = excluded.user_requests,
  meta_heat = excluded.meta_heat,
  target_min = excluded.target_min,
  search_terms = excluded.search_terms,
  instructors = excluded.instructors,
  emerging = excluded.emerging,
  updated_at = excluded.updated_at;
`, d.Technique, d.PositionCategory, d.UserRequests, d.MetaHeat,
		d.TargetMin, string(terms), string(instructors), emerging,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert demand signal: %w", err)
	}
	return nil
}

// SeedDemand installs a starter set of techniques so a fresh install has
// something to curate before the product starts feeding real demand data.
func SeedDemand(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM demand_signals;`).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	seeds := []DemandSignal{
		{Technique: "heel hook", PositionCategory: "leg entanglement", UserRequests: 14, MetaHeat: 92, TargetMin: 8,
			SearchTerms: []string{"heel hook details", "heel hook defense"}, Emerging: true},
		{Technique: "berimbolo", PositionCategory: "guard", UserRequests: 6, MetaHeat: 70, TargetMin: 5,
			SearchTerms: []string{"berimbolo back take"}, Emerging: true},
		{Technique: "triangle choke", PositionCategory: "guard", UserRequests: 11, MetaHeat: 55, TargetMin: 8,
			SearchTerms: []string{"triangle choke setup", "triangle finish details"}},
		{Technique: "knee cut pass", PositionCategory: "passing", UserRequests: 9, MetaHeat: 60, TargetMin: 6,
			SearchTerms: []string{"knee cut pass instructional"}},
		{Technique: "kimura", PositionCategory: "side control", UserRequests: 7, MetaHeat: 45, TargetMin: 6,
			SearchTerms: []string{"kimura trap system", "kimura from side control"}},
		{Technique: "body lock pass", PositionCategory: "passing", UserRequests: 5, MetaHeat: 78, TargetMin: 5,
			SearchTerms: []string{"body lock passing"}, Emerging: true},
		{Technique: "armbar from guard", PositionCategory: "guard", UserRequests: 8, MetaHeat: 40, TargetMin: 8,
			SearchTerms: []string{"closed guard armbar details"}},
	}

	count := 0
	for _, d := range seeds {
		if err := UpsertDemandSignal(ctx, db, d); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// FeedbackScore looks up the aggregate engagement score for an
// instructor/technique pairing. ok=false means no history exists.
func FeedbackScore(ctx context.Context, db *sql.DB, instructor, technique string) (int, bool, error) {
	key := NormalizeInstructorKey(instructor)
	var score int
	err := db.QueryRowContext(ctx, `
SELECT score FROM feedback_scores
WHERE instructor = ? AND technique = ? LIMIT 1;`, key, technique).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

// UpsertFeedback records the downstream engagement aggregate. The curation
// engine only reads these; writes come from the product's feedback loop.
func UpsertFeedback(ctx context.Context, db *sql.DB, instructor, technique string, score, samples int) error {
	key := NormalizeInstructorKey(instructor)
	_, err := db.ExecContext(ctx, `
INSERT INTO feedback_scores(instructor, technique, score, samples, updated_at)
VALUES(?,?,?,?,?)
ON CONFLICT(instructor, technique) DO UPDATE SET
  score = excluded.score,
  samples = excluded.samples,
  updated_at = excluded.updated_at;
`, key, technique, score, samples, time.Now().UTC().Format(time.RFC3339))
	return err
}
