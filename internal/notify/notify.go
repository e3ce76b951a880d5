package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"matscout-engine/internal/domain"
	"matscout-engine/internal/store"
)

type Config struct {
	Endpoint string // e.g. https://api.resend.com/emails
	APIKey   string
	From     string
	To       string
}

// Mailer sends the end-of-run report through a transactional email API.
// Delivery is best effort: the curation result is already durable in the
// store, so callers log a send failure and move on.
type Mailer struct {
	cfg Config
	hc  *http.Client
}

func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, hc: &http.Client{Timeout: 15 * time.Second}}
}

type emailReq struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type emailResp struct {
	ID string `json:"id"`
}

// SendRunReport mails a one-screen summary of a finished run.
func (m *Mailer) SendRunReport(ctx context.Context, runID string, c store.RunClose) error {
	if m.cfg.Endpoint == "" || m.cfg.APIKey == "" || m.cfg.From == "" || m.cfg.To == "" {
		return fmt.Errorf("mailer not configured")
	}

	subject, text := buildReport(runID, c)
	body, err := json.Marshal(emailReq{
		From:    m.cfg.From,
		To:      []string{m.cfg.To},
		Subject: subject,
		Text:    text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.hc.Do(req)
	if err != nil {
		return fmt.Errorf("send run report: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("send run report: status %d: %s", res.StatusCode, msg)
	}

	var out emailResp
	_ = json.NewDecoder(res.Body).Decode(&out)
	return nil
}

func buildReport(runID string, c store.RunClose) (subject, text string) {
	if c.Status == domain.RunStatusCompleted {
		subject = fmt.Sprintf("Curation run finished: %d added, %d analyzed", c.Added, c.Analyzed)
	} else {
		subject = fmt.Sprintf("Curation run failed: %s", firstLine(c.Error))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s ended with status %q.\n\n", runID, c.Status)
	fmt.Fprintf(&b, "Candidates analyzed: %d\n", c.Analyzed)
	fmt.Fprintf(&b, "Videos added:        %d\n", c.Added)
	fmt.Fprintf(&b, "Rejected:            %d\n", c.Rejected)
	fmt.Fprintf(&b, "Duplicates skipped:  %d\n", c.Duplicates)
	fmt.Fprintf(&b, "Quota spent:         %d units\n", c.QuotaUsed)
	if c.Error != "" {
		fmt.Fprintf(&b, "\nError: %s\n", c.Error)
	}
	return subject, b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
