package exhaust

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"matscout-engine/internal/store"
)

// Tracker records which instructors have stopped yielding new content and
// keeps them out of rotation for a cooldown window. A source is "mined out"
// after trigger consecutive searches that added nothing.
type Tracker struct {
	db       *sql.DB
	trigger  int
	cooldown time.Duration
	now      func() time.Time
}

func NewTracker(db *sql.DB, trigger int, cooldown time.Duration) *Tracker {
	return &Tracker{db: db, trigger: trigger, cooldown: cooldown, now: time.Now}
}

// RecordEmpty bumps the consecutive-empty counter. Crossing the trigger
// sets the cooldown expiry; further empties keep pushing it out.
func (t *Tracker) RecordEmpty(ctx context.Context, instructor string) error {
	e, ok, err := store.GetExhaustion(ctx, t.db, instructor)
	if err != nil {
		return fmt.Errorf("exhaust lookup %q: %w", instructor, err)
	}

	count := 1
	if ok {
		count = e.EmptyCount + 1
	}

	var until *time.Time
	if count >= t.trigger {
		u := t.now().Add(t.cooldown)
		until = &u
	}

	if err := store.UpsertExhaustion(ctx, t.db, instructor, count, until); err != nil {
		return fmt.Errorf("exhaust record empty %q: %w", instructor, err)
	}
	return nil
}

// RecordSuccess wipes the counter and any cooldown. One new accepted video
// proves the source is not mined out.
func (t *Tracker) RecordSuccess(ctx context.Context, instructor string) error {
	if err := store.ClearExhaustion(ctx, t.db, instructor); err != nil {
		return fmt.Errorf("exhaust reset %q: %w", instructor, err)
	}
	return nil
}

// Eligible is false while the instructor's cooldown expiry is still ahead
// of now. Callers must check this before spending any quota on the source.
func (t *Tracker) Eligible(ctx context.Context, instructor string) (bool, error) {
	e, ok, err := store.GetExhaustion(ctx, t.db, instructor)
	if err != nil {
		return false, fmt.Errorf("exhaust lookup %q: %w", instructor, err)
	}
	if !ok || e.CooldownUntil == "" {
		return true, nil
	}
	until, err := time.Parse(time.RFC3339, e.CooldownUntil)
	if err != nil {
		// corrupt timestamp must not block a source forever
		return true, nil
	}
	return !until.After(t.now()), nil
}

// Cooling lists instructors currently excluded, for the admin surface.
func (t *Tracker) Cooling(ctx context.Context) ([]store.Exhaustion, error) {
	return store.ListCooling(ctx, t.db, t.now())
}
