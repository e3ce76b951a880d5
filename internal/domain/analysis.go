package domain

// VideoAnalysis is the validated classification of one candidate.
type VideoAnalysis struct {
	IsInstructional  bool
	Technique        string
	TechniqueType    string // submission/sweep/pass/escape/takedown/control
	PositionCategory string // guard/half-guard/mount/back/standing/turtle
	GiOrNogi         string // gi/nogi/both
	QualityScore     int    // 0..100
	SkillLevel       string // beginner/intermediate/advanced
	InstructorName   string
}
