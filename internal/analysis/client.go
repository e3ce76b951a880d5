package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"matscout-engine/internal/domain"
)

// ErrUnparseable marks model output that failed strict validation. The
// candidate gets skipped; the run keeps going.
var ErrUnparseable = errors.New("analysis: unparseable model output")

type Config struct {
	Endpoint string
	Model    string
	APIKey   string
}

// Client classifies candidates through an OpenAI-compatible
// chat-completions API.
type Client struct {
	cfg Config
	hc  *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: 45 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends one candidate's metadata to the model and returns the
// validated classification. Any transport failure, non-JSON reply, or
// missing/invalid field is an error, never a guess.
func (c *Client) Classify(ctx context.Context, cand domain.VideoCandidate) (domain.VideoAnalysis, error) {
	if c.cfg.APIKey == "" || c.cfg.Endpoint == "" || c.cfg.Model == "" {
		return domain.VideoAnalysis{}, fmt.Errorf("analysis client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(cand)},
		},
	})
	if err != nil {
		return domain.VideoAnalysis{}, fmt.Errorf("marshal analysis payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.VideoAnalysis{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.VideoAnalysis{}, fmt.Errorf("analysis call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.VideoAnalysis{}, fmt.Errorf("analysis error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return domain.VideoAnalysis{}, fmt.Errorf("decode analysis response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return domain.VideoAnalysis{}, fmt.Errorf("analysis response had no choices: %w", ErrUnparseable)
	}

	return parseAnalysis(cr.Choices[0].Message.Content)
}

// stripFences removes markdown code fences models like to wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
