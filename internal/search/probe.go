package search

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ChannelInfo is what the static channel page gives away about an
// instructor: enough for a rough authority signal, nothing more.
type ChannelInfo struct {
	Title       string
	Description string
	Subscribers int64
	Verified    bool
}

var subCountRE = regexp.MustCompile(`"subscriberCountText":\{"simpleText":"([^"]+?)\s+subscribers?"`)

// ProbeChannel scrapes a channel page for authority context. It spends no
// API quota (plain page fetch) but respects the shared rate limiter.
// Callers must treat errors as "unknown channel", never as a rejection.
func (c *Client) ProbeChannel(ctx context.Context, channelID string) (ChannelInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ChannelInfo{}, err
	}

	base := c.probeBase
	if base == "" {
		base = "https://www.youtube.com"
	}
	pageURL := base + "/channel/" + url.PathEscape(channelID) + "/about"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ChannelInfo{}, err
	}
	req.Header.Set("User-Agent", "MatScout/1.0 (+curation)")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	res, err := c.hc.Do(req)
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("probe channel %s: %w", channelID, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return ChannelInfo{}, fmt.Errorf("probe channel %s: status %d", channelID, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("probe channel %s: parse html: %w", channelID, err)
	}

	var info ChannelInfo
	info.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	info.Description, _ = doc.Find(`meta[property="og:description"]`).Attr("content")

	// subscriber count and badge live in the initial-data blob, not the DOM
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		txt := s.Text()
		if info.Subscribers == 0 {
			if m := subCountRE.FindStringSubmatch(txt); m != nil {
				info.Subscribers = parseSubscriberText(m[1])
			}
		}
		if !info.Verified && strings.Contains(txt, "BADGE_STYLE_TYPE_VERIFIED") {
			info.Verified = true
		}
		return !(info.Subscribers > 0 && info.Verified)
	})

	return info, nil
}

// parseSubscriberText turns display counts like "1.23M", "548K" or
// "12,345" into a number. Unparseable text comes back as 0.
func parseSubscriberText(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1_000
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1_000_000
		s = s[:len(s)-1]
	case 'B', 'b':
		mult = 1_000_000_000
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * float64(mult)))
}
