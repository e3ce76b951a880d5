package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReserveQuota atomically debits cost against the day's budget. ok=false
// means the debit would cross the ceiling or the day is latched exhausted;
// nothing is written in that case. The single UPDATE is the atomicity
// guarantee: check and debit cannot interleave.
func ReserveQuota(ctx context.Context, db *sql.DB, day string, cost, ceiling int) (bool, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO quota_days(day) VALUES(?);`, day); err != nil {
		return false, fmt.Errorf("ensure quota day: %w", err)
	}

	res, err := db.ExecContext(ctx, `
UPDATE quota_days
SET used = used + ?
WHERE day = ? AND exhausted = 0 AND used + ? <= ?;`,
		cost, day, cost, ceiling)
	if err != nil {
		return false, fmt.Errorf("reserve quota: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkQuotaExhausted latches the day closed regardless of the local
// counter. Used when the provider itself reports quota exceeded.
func MarkQuotaExhausted(ctx context.Context, db *sql.DB, day string) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO quota_days(day, exhausted) VALUES(?, 1)
ON CONFLICT(day) DO UPDATE SET exhausted = 1;`, day)
	return err
}

// QuotaDay reports the day's consumption and whether it is latched.
func QuotaDay(ctx context.Context, db *sql.DB, day string) (used int, exhausted bool, err error) {
	var ex int
	err = db.QueryRowContext(ctx,
		`SELECT used, exhausted FROM quota_days WHERE day = ? LIMIT 1;`, day).Scan(&used, &ex)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return used, ex != 0, nil
}
