package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// ChannelCache is one remembered channel probe. Subscriber counts drift
// slowly, so a days-old row scores the same authority tier as a fresh one.
type ChannelCache struct {
	ChannelID   string
	Title       string
	Subscribers int64
	Verified    bool
}

// GetChannelCache returns the cached probe for a channel if one exists and
// is younger than maxAge.
func GetChannelCache(ctx context.Context, db *sql.DB, channelID string, maxAge time.Duration) (ChannelCache, bool, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return ChannelCache{}, false, nil
	}
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)

	var c ChannelCache
	var verified int
	err := db.QueryRowContext(ctx, `
SELECT channel_id, title, subscribers, verified
FROM channel_cache
WHERE channel_id = ? AND checked_at >= ?
LIMIT 1;`, channelID, cutoff).Scan(&c.ChannelID, &c.Title, &c.Subscribers, &verified)

	if err == sql.ErrNoRows {
		return ChannelCache{}, false, nil
	}
	if err != nil {
		return ChannelCache{}, false, err
	}
	c.Verified = verified != 0
	return c, true, nil
}

func PutChannelCache(ctx context.Context, db *sql.DB, c ChannelCache) error {
	c.ChannelID = strings.TrimSpace(c.ChannelID)
	if c.ChannelID == "" {
		return nil
	}

	verified := 0
	if c.Verified {
		verified = 1
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO channel_cache(channel_id, title, subscribers, verified, checked_at)
VALUES(?,?,?,?,?)
ON CONFLICT(channel_id) DO UPDATE SET
  title = excluded.title,
  subscribers = excluded.subscribers,
  verified = excluded.verified,
  checked_at = excluded.checked_at;
`, c.ChannelID, c.Title, c.Subscribers, verified, time.Now().UTC().Format(time.RFC3339))

	return err
}
