package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Curation struct {
		BatchSize        int `yaml:"batch_size"`             // priorities consumed per run
		MaxResults       int `yaml:"max_results"`            // search hits requested per query
		IntervalHours    int `yaml:"interval_hours"`         // spacing between scheduled runs
		WorkerTimeoutMin int `yaml:"worker_timeout_minutes"` // wall clock before a worker is killed
		AnalysisParallel int `yaml:"analysis_parallelism"`
	} `yaml:"curation"`

	Quota struct {
		DailyCeiling int `yaml:"daily_ceiling"`
		SearchCost   int `yaml:"search_cost"`
		DetailCost   int `yaml:"detail_cost"`
	} `yaml:"quota"`

	Filters struct {
		MinDurationSec int `yaml:"min_duration_seconds"`
		MaxDurationSec int `yaml:"max_duration_seconds"`
	} `yaml:"filters"`

	Scoring struct {
		AcceptThreshold int `yaml:"accept_threshold"`
	} `yaml:"scoring"`

	Exhaustion struct {
		TriggerCount int `yaml:"trigger_count"`
		CooldownDays int `yaml:"cooldown_days"`
	} `yaml:"exhaustion"`

	Search struct {
		Endpoint      string  `yaml:"endpoint"`
		RatePerSec    float64 `yaml:"rate_per_sec"`
		Burst         int     `yaml:"burst"`
		ProbeChannels bool    `yaml:"probe_channels"`
	} `yaml:"search"`

	Analysis struct {
		Endpoint string `yaml:"endpoint"`
		Model    string `yaml:"model"`
	} `yaml:"analysis"`

	Email struct {
		Enabled  bool   `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
		From     string `yaml:"from"`
		To       string `yaml:"to"`
	} `yaml:"email"`

	Instructors struct {
		Elite      []string `yaml:"elite"`
		Recognized []string `yaml:"recognized"`
		Solid      []string `yaml:"solid"`
	} `yaml:"instructors"`
}

func Default() Config {
	var cfg Config
	cfg.App.Port = 38572
	cfg.App.DataDir = "data"

	cfg.Curation.BatchSize = 5
	cfg.Curation.MaxResults = 10
	cfg.Curation.IntervalHours = 24
	cfg.Curation.WorkerTimeoutMin = 30
	cfg.Curation.AnalysisParallel = 3

	cfg.Quota.DailyCeiling = 10000
	cfg.Quota.SearchCost = 100
	cfg.Quota.DetailCost = 1

	cfg.Filters.MinDurationSec = 90
	cfg.Filters.MaxDurationSec = 3600

	cfg.Scoring.AcceptThreshold = 71

	cfg.Exhaustion.TriggerCount = 5
	cfg.Exhaustion.CooldownDays = 14

	cfg.Search.Endpoint = "https://www.googleapis.com/youtube/v3"
	cfg.Search.RatePerSec = 2
	cfg.Search.Burst = 4

	cfg.Analysis.Endpoint = "https://api.openai.com/v1/chat/completions"
	cfg.Analysis.Model = "gpt-4o-mini"

	cfg.Email.Endpoint = "https://api.resend.com/emails"

	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

func (c Config) WorkerTimeout() time.Duration {
	return time.Duration(c.Curation.WorkerTimeoutMin) * time.Minute
}

func (c Config) RunInterval() time.Duration {
	return time.Duration(c.Curation.IntervalHours) * time.Hour
}

func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Exhaustion.CooldownDays) * 24 * time.Hour
}
