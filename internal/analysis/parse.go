package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"matscout-engine/internal/domain"
)

// rawAnalysis uses pointers for the fields where "absent" and "zero" must
// be told apart.
type rawAnalysis struct {
	IsInstructional  *bool  `json:"is_instructional"`
	Technique        string `json:"technique"`
	TechniqueType    string `json:"technique_type"`
	PositionCategory string `json:"position_category"`
	GiOrNogi         string `json:"gi_or_nogi"`
	QualityScore     *int   `json:"quality_score"`
	SkillLevel       string `json:"skill_level"`
	InstructorName   string `json:"instructor_name"`
}

var techniqueTypes = map[string]bool{
	"submission": true,
	"sweep":      true,
	"pass":       true,
	"escape":     true,
	"takedown":   true,
	"control":    true,
	"counter":    true,
	"setup":      true,
}

var skillLevels = map[string]bool{
	"beginner":     true,
	"intermediate": true,
	"advanced":     true,
}

// parseAnalysis validates the model's reply field by field and fails
// closed: anything missing or out of range is ErrUnparseable, never a
// default value.
func parseAnalysis(content string) (domain.VideoAnalysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	if raw.IsInstructional == nil {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: is_instructional missing", ErrUnparseable)
	}
	if !*raw.IsInstructional {
		// Non-instructional content carries no classification worth
		// validating; the pipeline rejects it on this flag alone.
		return domain.VideoAnalysis{IsInstructional: false}, nil
	}

	out := domain.VideoAnalysis{
		IsInstructional:  true,
		Technique:        normalize(raw.Technique),
		TechniqueType:    normalize(raw.TechniqueType),
		PositionCategory: normalize(raw.PositionCategory),
		GiOrNogi:         normalizeGi(raw.GiOrNogi),
		SkillLevel:       normalize(raw.SkillLevel),
		InstructorName:   strings.TrimSpace(raw.InstructorName),
	}

	if out.Technique == "" {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: technique missing", ErrUnparseable)
	}
	if !techniqueTypes[out.TechniqueType] {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: technique_type %q", ErrUnparseable, raw.TechniqueType)
	}
	if out.PositionCategory == "" {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: position_category missing", ErrUnparseable)
	}
	if out.GiOrNogi != "gi" && out.GiOrNogi != "nogi" && out.GiOrNogi != "both" {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: gi_or_nogi %q", ErrUnparseable, raw.GiOrNogi)
	}
	if raw.QualityScore == nil {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: quality_score missing", ErrUnparseable)
	}
	if *raw.QualityScore < 0 || *raw.QualityScore > 100 {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: quality_score %d out of range", ErrUnparseable, *raw.QualityScore)
	}
	out.QualityScore = *raw.QualityScore
	if !skillLevels[out.SkillLevel] {
		return domain.VideoAnalysis{}, fmt.Errorf("%w: skill_level %q", ErrUnparseable, raw.SkillLevel)
	}

	return out, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeGi folds the spellings models actually produce ("No-Gi",
// "no gi") onto the canonical three values.
func normalizeGi(s string) string {
	s = normalize(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
