package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func Validate(cfg Config) error {
	var errs []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		errs = append(errs, "app.port must be 1..65535")
	}
	if cfg.Quota.DailyCeiling <= 0 {
		errs = append(errs, "quota.daily_ceiling must be > 0")
	}
	if cfg.Quota.SearchCost <= 0 || cfg.Quota.DetailCost <= 0 {
		errs = append(errs, "quota costs must be > 0")
	}
	if cfg.Quota.SearchCost > cfg.Quota.DailyCeiling {
		errs = append(errs, "quota.search_cost exceeds the daily ceiling; no search could ever run")
	}
	if cfg.Filters.MinDurationSec < 0 {
		errs = append(errs, "filters.min_duration_seconds must be >= 0")
	}
	if cfg.Filters.MaxDurationSec <= cfg.Filters.MinDurationSec {
		errs = append(errs, "filters.max_duration_seconds must be greater than min_duration_seconds")
	}
	if cfg.Scoring.AcceptThreshold < 0 || cfg.Scoring.AcceptThreshold > 100 {
		errs = append(errs, "scoring.accept_threshold must be 0..100")
	}
	if cfg.Exhaustion.TriggerCount <= 0 {
		errs = append(errs, "exhaustion.trigger_count must be > 0")
	}
	if cfg.Exhaustion.CooldownDays <= 0 {
		errs = append(errs, "exhaustion.cooldown_days must be > 0")
	}
	if cfg.Curation.BatchSize <= 0 {
		errs = append(errs, "curation.batch_size must be > 0")
	}
	if cfg.Curation.WorkerTimeoutMin <= 0 {
		errs = append(errs, "curation.worker_timeout_minutes must be > 0")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + joinLines(errs))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	out := ""
	for i, s := range lines {
		if i > 0 {
			out += "\n- "
		}
		out += s
	}
	return out
}
