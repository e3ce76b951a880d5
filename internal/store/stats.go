package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

type RunHistoryOpts struct {
	Status string // pending | running | completed | failed | "" for all
	Type   string // scheduled | manual | "" for all
	Limit  int
	Offset int
}

// RunHistory lists runs newest first with optional status/type filters.
func RunHistory(ctx context.Context, db *sql.DB, opts RunHistoryOpts) ([]Run, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	q := sq.Select("id", "run_type", "status", "analyzed", "added", "rejected",
		"duplicates", "quota_used", "error", "started_at", "finished_at").
		From("curation_runs").
		OrderBy("started_at DESC").
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset))

	if opts.Status != "" {
		q = q.Where(sq.Eq{"status": opts.Status})
	}
	if opts.Type != "" {
		q = q.Where(sq.Eq{"run_type": opts.Type})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Type, &r.Status, &r.Analyzed, &r.Added,
			&r.Rejected, &r.Duplicates, &r.QuotaUsed, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt = finished.String
		out = append(out, r)
	}
	return out, rows.Err()
}

type StatsSummary struct {
	TotalRuns       int     `json:"totalRuns"`
	CompletedRuns   int     `json:"completedRuns"`
	FailedRuns      int     `json:"failedRuns"`
	TotalAnalyzed   int     `json:"totalAnalyzed"`
	TotalAdded      int     `json:"totalAdded"`
	TotalRejected   int     `json:"totalRejected"`
	TotalDuplicates int     `json:"totalDuplicates"`
	ApprovalRate    float64 `json:"approvalRate"`
	LibrarySize     int     `json:"librarySize"`
}

// Stats aggregates run counters for the dashboard.
func Stats(ctx context.Context, db *sql.DB) (StatsSummary, error) {
	var s StatsSummary
	err := db.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(analyzed), 0),
  COALESCE(SUM(added), 0),
  COALESCE(SUM(rejected), 0),
  COALESCE(SUM(duplicates), 0)
FROM curation_runs;`).Scan(
		&s.TotalRuns, &s.CompletedRuns, &s.FailedRuns,
		&s.TotalAnalyzed, &s.TotalAdded, &s.TotalRejected, &s.TotalDuplicates)
	if err != nil {
		return StatsSummary{}, err
	}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accepted_videos;`).Scan(&s.LibrarySize); err != nil {
		return StatsSummary{}, err
	}

	if s.TotalAnalyzed > 0 {
		s.ApprovalRate = float64(s.TotalAdded) / float64(s.TotalAnalyzed)
	}
	return s, nil
}

type TechniqueCount struct {
	Technique  string  `json:"technique"`
	Count      int     `json:"count"`
	AvgQuality float64 `json:"avgQuality"`
}

// TechniqueBreakdown returns accepted-video counts per technique, biggest
// library holdings first.
func TechniqueBreakdown(ctx context.Context, db *sql.DB, limit int) ([]TechniqueCount, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query, args, err := sq.Select("technique", "COUNT(*) AS n", "COALESCE(AVG(quality_score), 0)").
		From("accepted_videos").
		GroupBy("technique").
		OrderBy("n DESC", "technique ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TechniqueCount
	for rows.Next() {
		var t TechniqueCount
		if err := rows.Scan(&t.Technique, &t.Count, &t.AvgQuality); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
