package domain

import "fmt"

// CoveragePriority pairs one technique with how urgently it needs new
// footage. Recomputed at the start of every run, never persisted.
type CoveragePriority struct {
	Technique        string
	PositionCategory string
	Score            float64 // combined demand+gap, 0..100
	Demand           float64 // raw demand component, used as tie-breaker
	Gap              float64
	Emerging         bool
	SearchTerms      []string // generic queries
	Instructors      []string // eligible instructors worth mining, may be empty
}

// SearchQuery is one concrete query the pipeline will issue. Instructor is
// set when the query mines a single instructor's channel output.
type SearchQuery struct {
	Term       string
	Instructor string
}

// Queries expands a priority into concrete search strings: generic terms
// first, then one scoped query per eligible instructor.
func (p CoveragePriority) Queries() []SearchQuery {
	out := make([]SearchQuery, 0, len(p.SearchTerms)+len(p.Instructors))
	for _, t := range p.SearchTerms {
		out = append(out, SearchQuery{Term: t})
	}
	for _, in := range p.Instructors {
		out = append(out, SearchQuery{
			Term:       fmt.Sprintf("%s %s", in, p.Technique),
			Instructor: in,
		})
	}
	return out
}
