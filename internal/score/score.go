package score

import (
	"fmt"
	"math"
	"strings"

	"matscout-engine/internal/domain"
)

// DefaultThreshold is the accept cutoff. A final score equal to the
// threshold is an accept.
const DefaultThreshold = 71

// boostCap limits the combined boost total so boosts can nudge a
// borderline candidate but never flip a clearly bad one.
const boostCap = 15

const (
	DimAuthority = "instructor_authority"
	DimTaxonomy  = "taxonomy_fit"
	DimCoverage  = "coverage_balance"
	DimUnique    = "unique_value"
	DimFeedback  = "user_feedback"
	DimBelt      = "belt_fit"
	DimEmerging  = "emerging_technique"
)

var weights = map[string]float64{
	DimAuthority: 0.20,
	DimTaxonomy:  0.15,
	DimCoverage:  0.15,
	DimUnique:    0.15,
	DimFeedback:  0.10,
	DimBelt:      0.10,
	DimEmerging:  0.15,
}

type Dimension struct {
	Name    string   `json:"name"`
	Score   int      `json:"score"`
	Weight  float64  `json:"weight"`
	Reasons []string `json:"reasons"`
}

type Boost struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Decision carries the full per-dimension breakdown. Callers persist or
// log it whole; it is the audit trail for every accept and reject.
type Decision struct {
	Dimensions []Dimension `json:"dimensions"`
	Weighted   float64     `json:"weighted"`
	Boosts     []Boost     `json:"boosts"`
	BoostTotal int         `json:"boostTotal"`
	Final      int         `json:"final"`
	Threshold  int         `json:"threshold"`
	Accepted   bool        `json:"accepted"`
}

// Context is everything Score needs from the outside world, resolved by
// the caller before the call. Score itself does no I/O.
type Context struct {
	EliteInstructors      map[string]bool
	RecognizedInstructors map[string]bool
	SolidInstructors      map[string]bool

	ChannelSubscribers int64
	ChannelVerified    bool

	CoverageCount  int // accepted videos already teaching this technique
	CoverageTarget int // desired minimum per technique
	AngleCount     int // accepted videos with the same technique + type

	HasFeedback   bool
	FeedbackScore int

	Emerging    bool
	DemandScore int

	Threshold int
}

// Score evaluates one analyzed candidate. Identical inputs always produce
// an identical Decision.
func Score(cand domain.VideoCandidate, an domain.VideoAnalysis, sctx Context) Decision {
	threshold := sctx.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	tier := instructorTier(an, cand, sctx)

	dims := []Dimension{
		authorityDim(tier, sctx),
		taxonomyDim(an),
		coverageDim(an, sctx),
		uniqueDim(an, sctx),
		feedbackDim(sctx),
		beltDim(an),
		emergingDim(an, sctx),
	}

	var weighted float64
	for i := range dims {
		dims[i].Weight = weights[dims[i].Name]
		weighted += float64(dims[i].Score) * dims[i].Weight
	}

	boosts, total := applyBoosts(tier, sctx)

	final := int(math.Round(weighted)) + total
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	return Decision{
		Dimensions: dims,
		Weighted:   weighted,
		Boosts:     boosts,
		BoostTotal: total,
		Final:      final,
		Threshold:  threshold,
		Accepted:   final >= threshold,
	}
}

const (
	tierElite      = "elite"
	tierRecognized = "recognized"
	tierSolid      = "solid"
	tierUnknown    = "unknown"
)

// instructorTier resolves against the analysis-reported name first and
// falls back to the channel name, since many channels are the instructor.
func instructorTier(an domain.VideoAnalysis, cand domain.VideoCandidate, sctx Context) string {
	for _, name := range []string{an.InstructorName, cand.Channel} {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		switch {
		case sctx.EliteInstructors[key]:
			return tierElite
		case sctx.RecognizedInstructors[key]:
			return tierRecognized
		case sctx.SolidInstructors[key]:
			return tierSolid
		}
	}
	return tierUnknown
}

func authorityDim(tier string, sctx Context) Dimension {
	d := Dimension{Name: DimAuthority}
	switch tier {
	case tierElite:
		d.Score = 95
		d.Reasons = []string{"elite-tier instructor"}
	case tierRecognized:
		d.Score = 80
		d.Reasons = []string{"recognized instructor"}
	case tierSolid:
		d.Score = 65
		d.Reasons = []string{"solid instructor"}
	default:
		d.Score = 30
		d.Reasons = []string{"instructor not in tier map"}
		if sctx.ChannelVerified || sctx.ChannelSubscribers >= 100_000 {
			d.Score = 45
			d.Reasons = append(d.Reasons, "channel signals lift unknown instructor")
		}
	}
	return d
}

// taxonomyDim trusts the model's own quality judgment as the mapping
// confidence: the strict parse already guaranteed every field is a known
// taxonomy value.
func taxonomyDim(an domain.VideoAnalysis) Dimension {
	s := 40 + int(math.Round(float64(an.QualityScore)*0.6))
	return Dimension{
		Name:  DimTaxonomy,
		Score: s,
		Reasons: []string{
			fmt.Sprintf("mapped to %s / %s", an.Technique, an.PositionCategory),
			fmt.Sprintf("model quality %d/100", an.QualityScore),
		},
	}
}

func coverageDim(an domain.VideoAnalysis, sctx Context) Dimension {
	target := sctx.CoverageTarget
	if target <= 0 {
		target = 5
	}
	d := Dimension{Name: DimCoverage}
	if sctx.CoverageCount >= target {
		d.Score = 30
		d.Reasons = []string{fmt.Sprintf("%s already has %d videos (target %d)", an.Technique, sctx.CoverageCount, target)}
		return d
	}
	d.Score = 100 - (70*sctx.CoverageCount)/target
	d.Reasons = []string{fmt.Sprintf("%s covered by %d of %d wanted videos", an.Technique, sctx.CoverageCount, target)}
	return d
}

func uniqueDim(an domain.VideoAnalysis, sctx Context) Dimension {
	d := Dimension{Name: DimUnique}
	switch {
	case sctx.AngleCount == 0:
		d.Score = 90
		d.Reasons = []string{fmt.Sprintf("first %s angle on %s", an.TechniqueType, an.Technique)}
	case sctx.AngleCount == 1:
		d.Score = 70
		d.Reasons = []string{"one existing video covers this angle"}
	case sctx.AngleCount == 2:
		d.Score = 50
		d.Reasons = []string{"two existing videos cover this angle"}
	default:
		d.Score = 35
		d.Reasons = []string{fmt.Sprintf("angle already covered %d times", sctx.AngleCount)}
	}
	return d
}

func feedbackDim(sctx Context) Dimension {
	if !sctx.HasFeedback {
		return Dimension{Name: DimFeedback, Score: 50, Reasons: []string{"no feedback history, neutral"}}
	}
	return Dimension{
		Name:    DimFeedback,
		Score:   sctx.FeedbackScore,
		Reasons: []string{fmt.Sprintf("historical engagement %d/100", sctx.FeedbackScore)},
	}
}

func beltDim(an domain.VideoAnalysis) Dimension {
	d := Dimension{Name: DimBelt}
	switch an.SkillLevel {
	case "beginner":
		d.Score = 80
		d.Reasons = []string{"beginner material, broad audience"}
	case "intermediate":
		d.Score = 90
		d.Reasons = []string{"intermediate material matches the core audience"}
	case "advanced":
		d.Score = 75
		d.Reasons = []string{"advanced material, narrower audience"}
	default:
		d.Score = 60
		d.Reasons = []string{"skill level unclassified"}
	}
	return d
}

func emergingDim(an domain.VideoAnalysis, sctx Context) Dimension {
	d := Dimension{Name: DimEmerging}
	switch {
	case sctx.Emerging && sctx.CoverageCount < maxInt(sctx.CoverageTarget, 1):
		d.Score = 95
		d.Reasons = []string{fmt.Sprintf("%s is rising in competition and under-covered", an.Technique)}
	case sctx.Emerging:
		d.Score = 75
		d.Reasons = []string{fmt.Sprintf("%s is rising in competition", an.Technique)}
	case sctx.DemandScore >= 80:
		d.Score = 60
		d.Reasons = []string{"steady high demand"}
	default:
		d.Score = 40
		d.Reasons = []string{"no emerging-meta signal"}
	}
	return d
}

func applyBoosts(tier string, sctx Context) ([]Boost, int) {
	var boosts []Boost
	if tier == tierElite {
		boosts = append(boosts, Boost{Name: "elite_instructor", Points: 8})
	}
	if sctx.CoverageCount == 0 {
		boosts = append(boosts, Boost{Name: "rare_technique", Points: 5})
	}
	if sctx.DemandScore >= 85 {
		boosts = append(boosts, Boost{Name: "high_demand", Points: 4})
	}
	total := 0
	for _, b := range boosts {
		total += b.Points
	}
	if total > boostCap {
		total = boostCap
	}
	return boosts, total
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
