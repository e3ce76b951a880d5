package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matscout-engine/internal/domain"
)

func dimByName(t *testing.T, d Decision, name string) Dimension {
	t.Helper()
	for _, dim := range d.Dimensions {
		if dim.Name == name {
			return dim
		}
	}
	t.Fatalf("dimension %q missing", name)
	return Dimension{}
}

func TestScoreIsDeterministic(t *testing.T) {
	cand := domain.VideoCandidate{Title: "Knee cut details", Channel: "BJJ Fanatics"}
	an := domain.VideoAnalysis{
		IsInstructional: true, Technique: "knee cut pass", TechniqueType: "pass",
		PositionCategory: "half guard", GiOrNogi: "both", QualityScore: 82,
		SkillLevel: "intermediate", InstructorName: "Bernardo Faria",
	}
	sctx := Context{
		EliteInstructors: map[string]bool{"bernardo faria": true},
		CoverageCount:    1, CoverageTarget: 5, AngleCount: 1,
		HasFeedback: true, FeedbackScore: 77, DemandScore: 70,
	}

	first := Score(cand, an, sctx)
	second := Score(cand, an, sctx)
	assert.Equal(t, first, second)
}

func TestBoundaryScoreAccepts(t *testing.T) {
	an := domain.VideoAnalysis{
		IsInstructional: true, Technique: "kimura", TechniqueType: "submission",
		PositionCategory: "side control", GiOrNogi: "gi", QualityScore: 70,
		SkillLevel: "beginner", InstructorName: "Chewjitsu",
	}
	sctx := Context{
		SolidInstructors: map[string]bool{"chewjitsu": true},
		CoverageCount:    2, CoverageTarget: 7, AngleCount: 1,
		HasFeedback: true, FeedbackScore: 92, DemandScore: 50,
	}

	// solid 65*.20 + taxonomy 82*.15 + coverage 80*.15 + unique 70*.15
	// + feedback 92*.10 + beginner 80*.10 + emerging 40*.15 = 71.0
	d := Score(domain.VideoCandidate{Channel: "Chewjitsu"}, an, sctx)
	require.Empty(t, d.Boosts)
	assert.Equal(t, 71, d.Final)
	assert.True(t, d.Accepted)

	sctx.FeedbackScore = 80 // drops the sum to 69.8
	d = Score(domain.VideoCandidate{Channel: "Chewjitsu"}, an, sctx)
	assert.Equal(t, 70, d.Final)
	assert.False(t, d.Accepted)
}

func TestBoostTotalIsCapped(t *testing.T) {
	an := domain.VideoAnalysis{
		IsInstructional: true, Technique: "heel hook", TechniqueType: "submission",
		PositionCategory: "leg entanglement", GiOrNogi: "nogi", QualityScore: 0,
		SkillLevel: "advanced", InstructorName: "John Danaher",
	}
	sctx := Context{
		EliteInstructors: map[string]bool{"john danaher": true},
		CoverageCount:    0, CoverageTarget: 5, AngleCount: 3,
		HasFeedback: true, FeedbackScore: 0, DemandScore: 90,
	}

	d := Score(domain.VideoCandidate{}, an, sctx)
	require.Len(t, d.Boosts, 3)
	raw := 0
	for _, b := range d.Boosts {
		raw += b.Points
	}
	assert.Equal(t, 17, raw)
	assert.Equal(t, 15, d.BoostTotal)
	assert.Equal(t, 77, d.Final)
}

func TestBoostsCannotFlipBadAggregate(t *testing.T) {
	an := domain.VideoAnalysis{
		IsInstructional: true, Technique: "berimbolo", TechniqueType: "sweep",
		PositionCategory: "de la riva", GiOrNogi: "gi", QualityScore: 0,
		SkillLevel: "advanced", InstructorName: "nobody known",
	}
	sctx := Context{
		CoverageCount: 0, CoverageTarget: 5, AngleCount: 3,
		HasFeedback: true, FeedbackScore: 0, DemandScore: 85,
	}

	d := Score(domain.VideoCandidate{Channel: "random uploads"}, an, sctx)
	assert.Equal(t, 9, d.BoostTotal)
	assert.Equal(t, 58, d.Final)
	assert.False(t, d.Accepted)
}

func TestFinalScoreClamped(t *testing.T) {
	an := domain.VideoAnalysis{
		IsInstructional: true, Technique: "body lock pass", TechniqueType: "pass",
		PositionCategory: "open guard", GiOrNogi: "nogi", QualityScore: 100,
		SkillLevel: "intermediate", InstructorName: "Gordon Ryan",
	}
	sctx := Context{
		EliteInstructors: map[string]bool{"gordon ryan": true},
		CoverageCount:    0, CoverageTarget: 5, AngleCount: 0,
		HasFeedback: true, FeedbackScore: 100,
		Emerging:    true, DemandScore: 90,
	}

	d := Score(domain.VideoCandidate{}, an, sctx)
	assert.Equal(t, 100, d.Final)
	assert.True(t, d.Accepted)
}

func TestUnknownInstructorChannelLift(t *testing.T) {
	an := domain.VideoAnalysis{
		IsInstructional: true, Technique: "armbar", TechniqueType: "submission",
		PositionCategory: "closed guard", GiOrNogi: "gi", QualityScore: 60,
		SkillLevel: "beginner",
	}

	plain := Score(domain.VideoCandidate{Channel: "new gym"}, an, Context{})
	assert.Equal(t, 30, dimByName(t, plain, DimAuthority).Score)

	lifted := Score(domain.VideoCandidate{Channel: "new gym"}, an, Context{ChannelVerified: true})
	assert.Equal(t, 45, dimByName(t, lifted, DimAuthority).Score)
}

func TestEveryDimensionCarriesReasons(t *testing.T) {
	an := domain.VideoAnalysis{
		IsInstructional: true, Technique: "triangle choke", TechniqueType: "submission",
		PositionCategory: "closed guard", GiOrNogi: "both", QualityScore: 75,
		SkillLevel: "intermediate",
	}
	d := Score(domain.VideoCandidate{Channel: "someone"}, an, Context{})

	require.Len(t, d.Dimensions, 7)
	for _, dim := range d.Dimensions {
		assert.NotEmpty(t, dim.Reasons, dim.Name)
		assert.Greater(t, dim.Weight, 0.0, dim.Name)
	}
	assert.Equal(t, DefaultThreshold, d.Threshold)
}
