package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type AcceptedVideo struct {
	ID               int64    `json:"id"`
	SourceID         string   `json:"sourceId"`
	Title            string   `json:"title"`
	Channel          string   `json:"channel"`
	Technique        string   `json:"technique"`
	TechniqueType    string   `json:"techniqueType"`
	PositionCategory string   `json:"positionCategory"`
	GiOrNogi         string   `json:"giOrNogi"`
	QualityScore     int      `json:"qualityScore"`
	SkillLevel       string   `json:"skillLevel"`
	Status           string   `json:"status"`
	Tags             []string `json:"tags"`
	DurationSec      int      `json:"durationSeconds"`
	ThumbnailURL     string   `json:"thumbnailUrl"`
	RunID            string   `json:"runId"`
	AddedAt          string   `json:"addedAt"`
}

type VideoInsert struct {
	SourceID         string
	Title            string
	Channel          string
	Technique        string
	TechniqueType    string
	PositionCategory string
	GiOrNogi         string
	QualityScore     int
	SkillLevel       string
	Status           string // active | pending_review
	TagsJSON         string // "[]"
	DurationSec      int
	ThumbnailURL     string
	RunID            string
}

// VideoExists is the cheap pre-check before an insert attempt. The unique
// index remains the authority; callers must still handle the ignore path.
func VideoExists(ctx context.Context, db *sql.DB, sourceID string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM accepted_videos WHERE source_id = ? LIMIT 1;`, sourceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertVideoIgnore inserts an accepted candidate, silently absorbing a
// source_id collision. added=false means the row already existed.
func InsertVideoIgnore(ctx context.Context, db *sql.DB, v VideoInsert) (added bool, err error) {
	// relies on unique index on source_id WHERE source_id != ''
	_, err = db.ExecContext(ctx, `
INSERT OR IGNORE INTO accepted_videos
  (source_id, title, channel, technique, technique_type, position_category,
   gi_or_nogi, quality_score, skill_level, status, tags, duration_seconds,
   thumbnail_url, run_id, added_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		v.SourceID, v.Title, v.Channel, v.Technique, v.TechniqueType, v.PositionCategory,
		v.GiOrNogi, v.QualityScore, v.SkillLevel, v.Status, v.TagsJSON, v.DurationSec,
		v.ThumbnailURL, v.RunID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert video: %w", err)
	}

	// rows-affected with IGNORE is unreliable across drivers; changes() isn't.
	var changes int
	if e := db.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); e == nil {
		return changes > 0, nil
	}
	return true, nil
}

// CoverageCount is how many accepted videos the library holds for one
// technique. Feeds gap scoring and the coverage-balance dimension.
func CoverageCount(ctx context.Context, db *sql.DB, technique string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accepted_videos WHERE technique = ?;`, technique).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// AngleCount counts accepted videos for a (technique, technique_type)
// pairing, the unique-value dimension's notion of an already-covered angle.
func AngleCount(ctx context.Context, db *sql.DB, technique, techniqueType string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM accepted_videos
WHERE technique = ? AND technique_type = ?;`, technique, techniqueType).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func scanVideo(rows *sql.Rows) (AcceptedVideo, error) {
	var v AcceptedVideo
	var tagsJSON string
	err := rows.Scan(
		&v.ID, &v.SourceID, &v.Title, &v.Channel, &v.Technique, &v.TechniqueType,
		&v.PositionCategory, &v.GiOrNogi, &v.QualityScore, &v.SkillLevel,
		&v.Status, &tagsJSON, &v.DurationSec, &v.ThumbnailURL, &v.RunID, &v.AddedAt,
	)
	if err != nil {
		return AcceptedVideo{}, err
	}
	_ = json.Unmarshal([]byte(tagsJSON), &v.Tags)
	return v, nil
}

// VideoThumbnailURL looks up the stored thumbnail source for one video.
func VideoThumbnailURL(ctx context.Context, db *sql.DB, sourceID string) (string, bool, error) {
	var u string
	err := db.QueryRowContext(ctx,
		`SELECT thumbnail_url FROM accepted_videos WHERE source_id = ? LIMIT 1;`, sourceID).Scan(&u)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u, true, nil
}

// VideosByRun lists what one run added, newest first.
func VideosByRun(ctx context.Context, db *sql.DB, runID string) ([]AcceptedVideo, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, source_id, title, channel, technique, technique_type, position_category,
       gi_or_nogi, quality_score, skill_level, status, tags, duration_seconds,
       thumbnail_url, run_id, added_at
FROM accepted_videos
WHERE run_id = ?
ORDER BY id DESC;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AcceptedVideo
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
