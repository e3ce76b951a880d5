package httpapi

import (
	"context"
	"database/sql"
	"sync/atomic"

	"matscout-engine/internal/config"
	"matscout-engine/internal/curate"
	"matscout-engine/internal/events"
	"matscout-engine/internal/metrics"
	"matscout-engine/internal/quota"
)

type Deps struct {
	DB *sql.DB

	Hub *events.Hub
	Orc *curate.Orchestrator

	// Spawn supervises the detached worker for a claimed run id and
	// blocks until the run row is closed. Injected so tests can swap
	// the process boundary for a stub.
	Spawn func(ctx context.Context, runID string)

	// Atomic store holding config.Config
	CfgVal      *atomic.Value
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Ledger    *quota.Ledger
	Collector *metrics.Collector
}
