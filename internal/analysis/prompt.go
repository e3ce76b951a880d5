package analysis

import (
	"fmt"
	"strings"

	"matscout-engine/internal/domain"
)

const systemPrompt = `You classify Brazilian jiu-jitsu videos from their metadata.
Reply with a single JSON object and nothing else:
{
  "is_instructional": bool,       // true only for technique instruction, not matches/vlogs/podcasts
  "technique": string,            // specific technique taught, e.g. "heel hook", "knee cut pass"
  "technique_type": string,       // one of: submission, sweep, pass, escape, takedown, control, counter, setup
  "position_category": string,    // e.g. "leg entanglement", "closed guard", "half guard", "mount"
  "gi_or_nogi": string,           // one of: gi, nogi, both
  "quality_score": int,           // 0-100 judged from title/description specificity
  "skill_level": string,          // one of: beginner, intermediate, advanced
  "instructor_name": string       // the person teaching, empty string if unknown
}
If the video is not instructional, set is_instructional to false and leave the rest empty.`

func userPrompt(cand domain.VideoCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", cand.Title)
	fmt.Fprintf(&b, "Channel: %s\n", cand.Channel)
	if cand.DurationSec > 0 {
		fmt.Fprintf(&b, "Duration: %ds\n", cand.DurationSec)
	}
	desc := cand.Description
	if len(desc) > 1500 {
		desc = desc[:1500]
	}
	fmt.Fprintf(&b, "Description: %s\n", desc)
	return b.String()
}
