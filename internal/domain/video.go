package domain

import "time"

type VideoCandidate struct {
	SourceID     string
	Title        string
	Channel      string
	ChannelID    string
	Description  string
	ThumbnailURL string
	PublishedAt  *time.Time
	DurationSec  int
	ViewCount    int64
	LikeCount    int64
}

// VideoDetails is the metadata the detail endpoint adds on top of a search hit.
type VideoDetails struct {
	DurationSec int
	ViewCount   int64
	LikeCount   int64
}
