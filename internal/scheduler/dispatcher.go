package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"matscout-engine/internal/config"
	"matscout-engine/internal/curate"
	"matscout-engine/internal/domain"
	"matscout-engine/internal/events"
	"matscout-engine/internal/metrics"
)

// Dispatcher turns ticks into curation work: starting scheduled runs when
// the interval allows and sweeping runs whose worker died.
type Dispatcher struct {
	Orc       *curate.Orchestrator
	Hub       *events.Hub
	CfgVal    *atomic.Value // stores config.Config
	Collector *metrics.Collector

	// Spawn supervises the worker process for a claimed run.
	Spawn func(ctx context.Context, runID string)
}

// DispatchScheduled claims a scheduled run if one is due. Ineligibility
// (interval not elapsed, another run active) is the normal idle case and
// stays quiet.
func (d *Dispatcher) DispatchScheduled(ctx context.Context) error {
	id, err := d.Orc.Start(ctx, domain.RunTypeScheduled)
	if errors.Is(err, curate.ErrNotEligible) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("[scheduler] dispatching scheduled run %s", id)
	if d.Collector != nil {
		d.Collector.RunStarted()
	}
	d.Hub.Publish(events.RunStarted(id, domain.RunTypeScheduled))

	go d.Spawn(context.Background(), id)
	return nil
}

// Reconcile fails runs stuck past the worker timeout plus a grace margin.
// While the host lives its own timeout closes runs first; this sweep only
// catches runs orphaned by a host crash or restart.
func (d *Dispatcher) Reconcile(ctx context.Context) error {
	cfg := d.CfgVal.Load().(config.Config)
	_, err := d.Orc.ReconcileStale(ctx, cfg.WorkerTimeout()+5*time.Minute)
	return err
}
