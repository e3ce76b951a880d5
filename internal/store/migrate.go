package store

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS curation_runs (
  id TEXT PRIMARY KEY,
  run_type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  analyzed INTEGER NOT NULL DEFAULT 0,
  added INTEGER NOT NULL DEFAULT 0,
  rejected INTEGER NOT NULL DEFAULT 0,
  duplicates INTEGER NOT NULL DEFAULT 0,
  quota_used INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  started_at TEXT NOT NULL,
  finished_at TEXT
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS accepted_videos (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  channel TEXT NOT NULL DEFAULT '',
  technique TEXT NOT NULL,
  technique_type TEXT NOT NULL DEFAULT '',
  position_category TEXT NOT NULL DEFAULT '',
  gi_or_nogi TEXT NOT NULL DEFAULT 'both',
  quality_score INTEGER NOT NULL DEFAULT 0,
  skill_level TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'active',
  tags TEXT NOT NULL DEFAULT '[]',
  duration_seconds INTEGER NOT NULL DEFAULT 0,
  thumbnail_url TEXT NOT NULL DEFAULT '',
  run_id TEXT NOT NULL DEFAULT '',
  added_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS exhaustion_state (
  instructor TEXT PRIMARY KEY,
  empty_count INTEGER NOT NULL DEFAULT 0,
  cooldown_until TEXT,
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS quota_days (
  day TEXT PRIMARY KEY,
  used INTEGER NOT NULL DEFAULT 0,
  exhausted INTEGER NOT NULL DEFAULT 0
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS demand_signals (
  technique TEXT PRIMARY KEY,
  position_category TEXT NOT NULL DEFAULT '',
  user_requests INTEGER NOT NULL DEFAULT 0,
  meta_heat INTEGER NOT NULL DEFAULT 0,
  target_min INTEGER NOT NULL DEFAULT 5,
  search_terms TEXT NOT NULL DEFAULT '[]',
  instructors TEXT NOT NULL DEFAULT '[]',
  emerging INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS feedback_scores (
  instructor TEXT NOT NULL,
  technique TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 50,
  samples INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (instructor, technique)
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS channel_cache (
  channel_id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  subscribers INTEGER NOT NULL DEFAULT 0,
  verified INTEGER NOT NULL DEFAULT 0,
  checked_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS thumbs (
  source_id TEXT PRIMARY KEY,
  content_type TEXT NOT NULL,
  bytes BLOB NOT NULL,
  fetched_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_videos_source_id
ON accepted_videos(source_id)
WHERE source_id != '';
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_videos_technique
ON accepted_videos(technique);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_runs_status
ON curation_runs(status);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_runs_started
ON curation_runs(started_at);
`); err != nil {
		return err
	}

	// Back-compat for dev DBs that might predate these columns.
	if !columnExists(tx, "curation_runs", "duplicates") {
		if _, err := tx.Exec(`ALTER TABLE curation_runs ADD COLUMN duplicates INTEGER NOT NULL DEFAULT 0;`); err != nil {
			return err
		}
	}
	if !columnExists(tx, "accepted_videos", "duration_seconds") {
		if _, err := tx.Exec(`ALTER TABLE accepted_videos ADD COLUMN duration_seconds INTEGER NOT NULL DEFAULT 0;`); err != nil {
			return err
		}
	}
	if !columnExists(tx, "accepted_videos", "thumbnail_url") {
		if _, err := tx.Exec(`ALTER TABLE accepted_videos ADD COLUMN thumbnail_url TEXT NOT NULL DEFAULT '';`); err != nil {
			return err
		}
	}

	// Mark schema v1
	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
