package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides the recognized environment-level options on top of
// whatever the file provided. MATSCOUT_* wins over YAML.
func ApplyEnv(cfg *Config) {
	intEnv := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return
		}
		*dst = n
	}
	strEnv := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	intEnv("MATSCOUT_QUOTA_CEILING", &cfg.Quota.DailyCeiling)
	intEnv("MATSCOUT_MIN_DURATION_SEC", &cfg.Filters.MinDurationSec)
	intEnv("MATSCOUT_MAX_DURATION_SEC", &cfg.Filters.MaxDurationSec)
	intEnv("MATSCOUT_ACCEPT_THRESHOLD", &cfg.Scoring.AcceptThreshold)
	intEnv("MATSCOUT_EXHAUST_TRIGGER", &cfg.Exhaustion.TriggerCount)
	intEnv("MATSCOUT_EXHAUST_COOLDOWN_DAYS", &cfg.Exhaustion.CooldownDays)
	intEnv("MATSCOUT_BATCH_SIZE", &cfg.Curation.BatchSize)
	intEnv("MATSCOUT_PORT", &cfg.App.Port)
	strEnv("MATSCOUT_DATA_DIR", &cfg.App.DataDir)
}
