package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus anything an operator
// should fix before saving.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Instructors.Elite = trimList(out.Instructors.Elite)
	out.Instructors.Recognized = trimList(out.Instructors.Recognized)
	out.Instructors.Solid = trimList(out.Instructors.Solid)

	// ---- Validation rules ----

	if out.Quota.DailyCeiling <= 0 {
		res.addErr("quota.daily_ceiling must be > 0")
	}
	if out.Quota.SearchCost <= 0 {
		res.addErr("quota.search_cost must be > 0")
	}
	if out.Quota.DetailCost <= 0 {
		res.addErr("quota.detail_cost must be > 0")
	}
	if out.Quota.SearchCost > out.Quota.DailyCeiling {
		res.addErr("quota.search_cost (%d) exceeds daily_ceiling (%d); no search could ever run",
			out.Quota.SearchCost, out.Quota.DailyCeiling)
	} else if out.Quota.DailyCeiling/maxInt(out.Quota.SearchCost, 1) < 10 {
		res.addWarn("daily ceiling only covers %d searches; runs will exhaust quota quickly.",
			out.Quota.DailyCeiling/out.Quota.SearchCost)
	}

	if out.Filters.MinDurationSec < 0 {
		res.addErr("filters.min_duration_seconds must be >= 0")
	}
	if out.Filters.MaxDurationSec <= out.Filters.MinDurationSec {
		res.addErr("filters.max_duration_seconds must be greater than min_duration_seconds")
	}
	if out.Filters.MinDurationSec > 0 && out.Filters.MinDurationSec < 30 {
		res.addWarn("min_duration_seconds below 30s lets shorts/clips through.")
	}

	if out.Scoring.AcceptThreshold < 0 || out.Scoring.AcceptThreshold > 100 {
		res.addErr("scoring.accept_threshold must be 0..100")
	} else if out.Scoring.AcceptThreshold < 50 {
		res.addWarn("accept_threshold %d is permissive; expect low-quality accepts.", out.Scoring.AcceptThreshold)
	}

	if out.Exhaustion.TriggerCount <= 0 {
		res.addErr("exhaustion.trigger_count must be > 0")
	}
	if out.Exhaustion.CooldownDays <= 0 {
		res.addErr("exhaustion.cooldown_days must be > 0")
	}

	if out.Curation.BatchSize <= 0 {
		res.addErr("curation.batch_size must be > 0")
	}
	if out.Curation.MaxResults <= 0 {
		res.addErr("curation.max_results must be > 0")
	} else if out.Curation.MaxResults > 50 {
		res.addWarn("max_results %d is large; each search still costs the same quota but analysis cost grows per hit.", out.Curation.MaxResults)
	}
	if out.Curation.WorkerTimeoutMin <= 0 {
		res.addErr("curation.worker_timeout_minutes must be > 0")
	}
	if out.Curation.AnalysisParallel <= 0 {
		out.Curation.AnalysisParallel = 1
	}

	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.Endpoint) == "" {
			res.addErr("email.endpoint is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.From) == "" {
			res.addErr("email.from is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.To) == "" {
			res.addErr("email.to is required when email.enabled=true")
		}
	}

	// an instructor listed in two tiers gets the higher one; flag it anyway
	tierOf := map[string]string{}
	for _, n := range out.Instructors.Elite {
		tierOf[strings.ToLower(n)] = "elite"
	}
	for _, n := range out.Instructors.Recognized {
		if t, dup := tierOf[strings.ToLower(n)]; dup {
			res.addWarn("instructor %q appears in both %s and recognized tiers", n, t)
		} else {
			tierOf[strings.ToLower(n)] = "recognized"
		}
	}
	for _, n := range out.Instructors.Solid {
		if t, dup := tierOf[strings.ToLower(n)]; dup {
			res.addWarn("instructor %q appears in both %s and solid tiers", n, t)
		}
	}

	return out, res
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
