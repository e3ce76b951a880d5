package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"matscout-engine/internal/domain"
	"matscout-engine/internal/quota"
)

type Config struct {
	Endpoint   string // e.g. https://www.googleapis.com/youtube/v3
	APIKey     string
	SearchCost int
	DetailCost int
	RatePerSec float64
	Burst      int
}

// Client talks to the video-index and metadata APIs. Every call reserves
// its quota cost before touching the network; a reservation that fails
// surfaces quota.ErrExhausted and no request is made. A failed call after
// a reservation stays debited, since the provider bills failures too.
type Client struct {
	cfg       Config
	hc        *http.Client
	limiter   *rate.Limiter
	ledger    *quota.Ledger
	probeBase string // channel-page origin, overridable in tests
}

func New(cfg Config, ledger *quota.Ledger) *Client {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		ledger:  ledger,
	}
}

// --- wire types ---

type searchResp struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID      searchItemID `json:"id"`
	Snippet itemSnippet  `json:"snippet"`
}

type searchItemID struct {
	VideoID string `json:"videoId"`
}

type itemSnippet struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	ChannelTitle string         `json:"channelTitle"`
	ChannelID    string         `json:"channelId"`
	PublishedAt  string         `json:"publishedAt"`
	Thumbnails   itemThumbnails `json:"thumbnails"`
}

type itemThumbnails struct {
	Medium  itemThumbnail `json:"medium"`
	Default itemThumbnail `json:"default"`
}

type itemThumbnail struct {
	URL string `json:"url"`
}

type videosResp struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ContentDetails struct {
		Duration string `json:"duration"` // ISO-8601, e.g. PT15M33S
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount string `json:"viewCount"` // the API serializes counts as strings
		LikeCount string `json:"likeCount"`
	} `json:"statistics"`
}

type apiErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Search runs one query against the video index and returns raw candidates.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.VideoCandidate, error) {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 10
	}

	if err := c.ledger.Reserve(ctx, c.cfg.SearchCost); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("key", c.cfg.APIKey)

	var result searchResp
	if err := c.getJSON(ctx, c.cfg.Endpoint+"/search?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("video search %q: %w", query, err)
	}

	out := make([]domain.VideoCandidate, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		cand := domain.VideoCandidate{
			SourceID:     item.ID.VideoID,
			Title:        item.Snippet.Title,
			Channel:      item.Snippet.ChannelTitle,
			ChannelID:    item.Snippet.ChannelID,
			Description:  item.Snippet.Description,
			ThumbnailURL: item.Snippet.Thumbnails.Medium.URL,
		}
		if cand.ThumbnailURL == "" {
			cand.ThumbnailURL = item.Snippet.Thumbnails.Default.URL
		}
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			cand.PublishedAt = &t
		}
		out = append(out, cand)
	}
	return out, nil
}

// Details fetches duration and engagement counts for one video.
func (c *Client) Details(ctx context.Context, videoID string) (domain.VideoDetails, error) {
	if err := c.ledger.Reserve(ctx, c.cfg.DetailCost); err != nil {
		return domain.VideoDetails{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.VideoDetails{}, err
	}

	params := url.Values{}
	params.Set("part", "contentDetails,statistics")
	params.Set("id", videoID)
	params.Set("key", c.cfg.APIKey)

	var result videosResp
	if err := c.getJSON(ctx, c.cfg.Endpoint+"/videos?"+params.Encode(), &result); err != nil {
		return domain.VideoDetails{}, fmt.Errorf("video details %s: %w", videoID, err)
	}
	if len(result.Items) == 0 {
		return domain.VideoDetails{}, fmt.Errorf("video details %s: no item returned", videoID)
	}

	item := result.Items[0]
	seconds, err := ParseISO8601Duration(item.ContentDetails.Duration)
	if err != nil {
		return domain.VideoDetails{}, fmt.Errorf("video details %s: %w", videoID, err)
	}

	d := domain.VideoDetails{DurationSec: seconds}
	d.ViewCount, _ = strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
	d.LikeCount, _ = strconv.ParseInt(item.Statistics.LikeCount, 10, 64)
	return d, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "MatScout/1.0 (+curation)")

	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		if quotaReason(res.StatusCode, body) {
			// the provider's word overrides our local counter for the day
			_ = c.ledger.MarkExhausted(ctx)
			return fmt.Errorf("provider quota: %w", quota.ErrExhausted)
		}
		return fmt.Errorf("status %d: %s", res.StatusCode, string(body))
	}

	return json.NewDecoder(res.Body).Decode(dst)
}

// quotaReason recognizes the provider's own quota/rate errors on 403.
func quotaReason(status int, body []byte) bool {
	if status != http.StatusForbidden {
		return false
	}
	var e apiErrorResp
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	for _, item := range e.Error.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
			return true
		}
	}
	return false
}
