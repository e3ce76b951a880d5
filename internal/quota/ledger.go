package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matscout-engine/internal/store"
)

// ErrExhausted means the day's search budget is gone: either the local
// counter would cross the ceiling or the provider latched the day closed.
var ErrExhausted = errors.New("quota: daily budget exhausted")

// Ledger tracks cost units against a fixed daily ceiling. Days are keyed
// by UTC date, so the budget resets at midnight UTC like the provider's.
type Ledger struct {
	db      *sql.DB
	ceiling int
	now     func() time.Time
}

func NewLedger(db *sql.DB, ceiling int) *Ledger {
	return &Ledger{db: db, ceiling: ceiling, now: time.Now}
}

func (l *Ledger) day() string { return l.now().UTC().Format("2006-01-02") }

// Reserve debits cost against today's budget before any network call. A
// rejected reservation writes nothing and returns ErrExhausted.
func (l *Ledger) Reserve(ctx context.Context, cost int) error {
	ok, err := store.ReserveQuota(ctx, l.db, l.day(), cost, l.ceiling)
	if err != nil {
		return fmt.Errorf("quota reserve: %w", err)
	}
	if !ok {
		return ErrExhausted
	}
	return nil
}

// MarkExhausted latches today closed regardless of the local counter.
// Called when the provider reports its own quota error, which defends
// against drift between our ledger and theirs.
func (l *Ledger) MarkExhausted(ctx context.Context) error {
	return store.MarkQuotaExhausted(ctx, l.db, l.day())
}

// Used reports today's consumed units.
func (l *Ledger) Used(ctx context.Context) (int, error) {
	used, _, err := store.QuotaDay(ctx, l.db, l.day())
	return used, err
}

// Exhausted reports whether today is latched closed.
func (l *Ledger) Exhausted(ctx context.Context) (bool, error) {
	_, ex, err := store.QuotaDay(ctx, l.db, l.day())
	return ex, err
}

// Ceiling is the configured daily budget.
func (l *Ledger) Ceiling() int { return l.ceiling }
