package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type Exhaustion struct {
	Instructor    string `json:"instructor"`
	EmptyCount    int    `json:"emptyCount"`
	CooldownUntil string `json:"cooldownUntil,omitempty"`
	UpdatedAt     string `json:"updatedAt"`
}

// GetExhaustion returns the tracked state for an instructor, ok=false when
// the instructor has never gone empty.
func GetExhaustion(ctx context.Context, db *sql.DB, instructor string) (Exhaustion, bool, error) {
	key := NormalizeInstructorKey(instructor)
	if key == "" {
		return Exhaustion{}, false, nil
	}

	var e Exhaustion
	var cooldown sql.NullString
	err := db.QueryRowContext(ctx, `
SELECT instructor, empty_count, cooldown_until, updated_at
FROM exhaustion_state WHERE instructor = ? LIMIT 1;`, key).Scan(
		&e.Instructor, &e.EmptyCount, &cooldown, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return Exhaustion{}, false, nil
	}
	if err != nil {
		return Exhaustion{}, false, err
	}
	e.CooldownUntil = cooldown.String
	return e, true, nil
}

// UpsertExhaustion writes the counter and optional cooldown expiry for an
// instructor, creating the row on first empty search.
func UpsertExhaustion(ctx context.Context, db *sql.DB, instructor string, emptyCount int, cooldownUntil *time.Time) error {
	key := NormalizeInstructorKey(instructor)
	if key == "" {
		return nil
	}

	var cd any
	if cooldownUntil != nil {
		cd = cooldownUntil.UTC().Format(time.RFC3339)
	}

	_, err := db.ExecContext(ctx, `
INSERT INTO exhaustion_state(instructor, empty_count, cooldown_until, updated_at)
VALUES(?,?,?,?)
ON CONFLICT(instructor) DO UPDATE SET
  empty_count = excluded.empty_count,
  cooldown_until = excluded.cooldown_until,
  updated_at = excluded.updated_at;
`, key, emptyCount, cd, time.Now().UTC().Format(time.RFC3339))

	return err
}

// ClearExhaustion drops the row entirely; a successful add wipes both the
// counter and any cooldown.
func ClearExhaustion(ctx context.Context, db *sql.DB, instructor string) error {
	key := NormalizeInstructorKey(instructor)
	if key == "" {
		return nil
	}
	_, err := db.ExecContext(ctx,
		`DELETE FROM exhaustion_state WHERE instructor = ?;`, key)
	return err
}

// ListCooling returns instructors whose cooldown has not expired yet.
func ListCooling(ctx context.Context, db *sql.DB, now time.Time) ([]Exhaustion, error) {
	rows, err := db.QueryContext(ctx, `
SELECT instructor, empty_count, cooldown_until, updated_at
FROM exhaustion_state
WHERE cooldown_until IS NOT NULL AND cooldown_until > ?
ORDER BY instructor;`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exhaustion
	for rows.Next() {
		var e Exhaustion
		var cooldown sql.NullString
		if err := rows.Scan(&e.Instructor, &e.EmptyCount, &cooldown, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.CooldownUntil = cooldown.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// NormalizeInstructorKey collapses whitespace and case so "John  Danaher"
// and "john danaher" hit the same row.
func NormalizeInstructorKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ToLower(s)
	return s
}
