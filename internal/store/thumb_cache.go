package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Thumb is a cached thumbnail image, keyed by the video's source id so
// the library UI renders without hotlinking the provider's CDN.
type Thumb struct {
	SourceID    string
	ContentType string
	Bytes       []byte
	FetchedAt   string
}

func GetThumb(ctx context.Context, db *sql.DB, sourceID string) (Thumb, bool, error) {
	var t Thumb
	err := db.QueryRowContext(ctx, `
SELECT source_id, content_type, bytes, fetched_at
FROM thumbs WHERE source_id = ? LIMIT 1;`, sourceID).
		Scan(&t.SourceID, &t.ContentType, &t.Bytes, &t.FetchedAt)

	if err == sql.ErrNoRows {
		return Thumb{}, false, nil
	}
	if err != nil {
		return Thumb{}, false, err
	}
	return t, true, nil
}

func PutThumb(ctx context.Context, db *sql.DB, t Thumb) error {
	_, err := db.ExecContext(ctx, `
INSERT OR REPLACE INTO thumbs(source_id, content_type, bytes, fetched_at)
VALUES(?,?,?,?);`,
		t.SourceID, t.ContentType, t.Bytes, time.Now().UTC().Format(time.RFC3339))
	return err
}

// CacheThumbFromURL fetches a thumbnail and stores it under sourceID.
// Already-cached thumbs are returned without a fetch.
func CacheThumbFromURL(ctx context.Context, db *sql.DB, sourceID, raw string) (Thumb, error) {
	raw = strings.TrimSpace(raw)
	if sourceID == "" || raw == "" {
		return Thumb{}, errors.New("thumb: empty source id or url")
	}

	if t, ok, err := GetThumb(ctx, db, sourceID); err != nil {
		return Thumb{}, err
	} else if ok {
		return t, nil
	}

	pu, err := url.Parse(raw)
	if err != nil || pu.Scheme == "" || pu.Host == "" {
		return Thumb{}, fmt.Errorf("thumb: bad url %q", raw)
	}
	if !thumbHostAllowed(pu.Host) {
		return Thumb{}, fmt.Errorf("thumb: host %s not allowed", pu.Host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return Thumb{}, err
	}
	req.Header.Set("User-Agent", "MatScout/1.0 (+curation)")
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Thumb{}, fmt.Errorf("thumb fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Thumb{}, fmt.Errorf("thumb fetch: status %s", resp.Status)
	}

	// size cap protects the DB
	const max = 512 * 1024
	b, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return Thumb{}, err
	}
	if len(b) == 0 || len(b) > max {
		return Thumb{}, fmt.Errorf("thumb fetch: %d bytes outside 1-%d", len(b), max)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "image/") {
		ct = http.DetectContentType(b)
		if !strings.HasPrefix(ct, "image/") {
			return Thumb{}, errors.New("thumb fetch: not an image")
		}
	}

	t := Thumb{SourceID: sourceID, ContentType: ct, Bytes: b}
	if err := PutThumb(ctx, db, t); err != nil {
		return Thumb{}, err
	}
	return t, nil
}

// thumbHostAllowed limits fetches to the provider's image CDNs, plus
// loopback for local mirrors.
func thumbHostAllowed(hostport string) bool {
	host := strings.ToLower(hostport)
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = strings.ToLower(h)
	}

	if host == "127.0.0.1" || host == "::1" || host == "localhost" {
		return true
	}
	if host == "i.ytimg.com" || host == "img.youtube.com" {
		return true
	}
	if strings.HasSuffix(host, ".ggpht.com") || strings.HasSuffix(host, ".googleusercontent.com") {
		return true
	}
	return false
}
