package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscout-engine/internal/domain"
)

func chatBody(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

const goodAnalysis = `{
  "is_instructional": true,
  "technique": "Heel Hook",
  "technique_type": "submission",
  "position_category": "leg entanglement",
  "gi_or_nogi": "No-Gi",
  "quality_score": 88,
  "skill_level": "advanced",
  "instructor_name": "Lachlan Giles"
}`

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k-test", r.Header.Get("Authorization"))
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
			return
		}
		assert.Equal(t, "gpt-4o-mini", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Contains(t, req.Messages[1].Content, "Title: Heel Hook Masterclass")
		}

		fmt.Fprint(w, chatBody("```json\n"+goodAnalysis+"\n```"))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "gpt-4o-mini", APIKey: "k-test"})
	got, err := c.Classify(context.Background(), domain.VideoCandidate{
		Title:       "Heel Hook Masterclass",
		Channel:     "Submeta",
		Description: "Lachlan breaks down the inside heel hook.",
		DurationSec: 845,
	})
	require.NoError(t, err)

	assert.True(t, got.IsInstructional)
	assert.Equal(t, "heel hook", got.Technique)
	assert.Equal(t, "submission", got.TechniqueType)
	assert.Equal(t, "nogi", got.GiOrNogi)
	assert.Equal(t, 88, got.QualityScore)
	assert.Equal(t, "Lachlan Giles", got.InstructorName)
}

func TestClassifyNonInstructional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatBody(`{"is_instructional": false}`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "m", APIKey: "k"})
	got, err := c.Classify(context.Background(), domain.VideoCandidate{Title: "ADCC 2024 highlights"})
	require.NoError(t, err)
	assert.False(t, got.IsInstructional)
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "m", APIKey: "k"})
	_, err := c.Classify(context.Background(), domain.VideoCandidate{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestParseAnalysisFailsClosed(t *testing.T) {
	cases := map[string]string{
		"prose":              "Sure! Here's the classification you asked for.",
		"missing flag":       `{"technique": "armbar"}`,
		"missing technique":  `{"is_instructional": true, "technique_type": "submission", "position_category": "mount", "gi_or_nogi": "gi", "quality_score": 70, "skill_level": "beginner"}`,
		"bad type":           `{"is_instructional": true, "technique": "armbar", "technique_type": "attack", "position_category": "mount", "gi_or_nogi": "gi", "quality_score": 70, "skill_level": "beginner"}`,
		"bad gi value":       `{"is_instructional": true, "technique": "armbar", "technique_type": "submission", "position_category": "mount", "gi_or_nogi": "sometimes", "quality_score": 70, "skill_level": "beginner"}`,
		"missing quality":    `{"is_instructional": true, "technique": "armbar", "technique_type": "submission", "position_category": "mount", "gi_or_nogi": "gi", "skill_level": "beginner"}`,
		"quality over range": `{"is_instructional": true, "technique": "armbar", "technique_type": "submission", "position_category": "mount", "gi_or_nogi": "gi", "quality_score": 140, "skill_level": "beginner"}`,
		"bad skill":          `{"is_instructional": true, "technique": "armbar", "technique_type": "submission", "position_category": "mount", "gi_or_nogi": "gi", "quality_score": 70, "skill_level": "expert"}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseAnalysis(content)
			assert.ErrorIs(t, err, ErrUnparseable)
		})
	}
}

func TestParseAnalysisAcceptsBoundaryScores(t *testing.T) {
	for _, score := range []int{0, 100} {
		content := fmt.Sprintf(`{"is_instructional": true, "technique": "armbar", "technique_type": "submission",
			"position_category": "mount", "gi_or_nogi": "both", "quality_score": %d, "skill_level": "intermediate"}`, score)
		got, err := parseAnalysis(content)
		require.NoError(t, err)
		assert.Equal(t, score, got.QualityScore)
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
