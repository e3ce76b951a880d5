package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"matscout-engine/internal/domain"
	"matscout-engine/internal/store"
)

// Collector owns the engine's Prometheus metrics. It registers on its
// own registry so tests can build as many as they like.
type Collector struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter

	analyzed   prometheus.Counter
	added      prometheus.Counter
	rejected   prometheus.Counter
	duplicates prometheus.Counter

	quotaUsed prometheus.Gauge

	httpDuration *prometheus.HistogramVec

	reg *prometheus.Registry
}

func New() *Collector {
	c := &Collector{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curation_runs_started_total",
			Help: "Curation runs that entered the running state",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curation_runs_completed_total",
			Help: "Curation runs that finished cleanly",
		}),
		runsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curation_runs_failed_total",
			Help: "Curation runs closed as failed, timeouts included",
		}),
		analyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curation_candidates_analyzed_total",
			Help: "Video candidates examined across all runs",
		}),
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curation_videos_added_total",
			Help: "Videos accepted into the library",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curation_candidates_rejected_total",
			Help: "Candidates rejected by filters or scoring",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curation_duplicates_skipped_total",
			Help: "Candidates skipped because the video is already in the library",
		}),
		quotaUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curation_quota_used_units",
			Help: "Search API units spent against today's ceiling",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reg: prometheus.NewRegistry(),
	}

	c.reg.MustRegister(
		c.runsStarted, c.runsCompleted, c.runsFailed,
		c.analyzed, c.added, c.rejected, c.duplicates,
		c.quotaUsed, c.httpDuration,
	)
	return c
}

// Handler serves the /metrics endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) RunStarted() {
	c.runsStarted.Inc()
}

// RunClosed folds one finished run into the counters.
func (c *Collector) RunClosed(cl store.RunClose) {
	if cl.Status == domain.RunStatusCompleted {
		c.runsCompleted.Inc()
	} else {
		c.runsFailed.Inc()
	}
	c.analyzed.Add(float64(cl.Analyzed))
	c.added.Add(float64(cl.Added))
	c.rejected.Add(float64(cl.Rejected))
	c.duplicates.Add(float64(cl.Duplicates))
}

func (c *Collector) SetQuotaUsed(units int) {
	c.quotaUsed.Set(float64(units))
}

func (c *Collector) ObserveHTTP(method, route string, d time.Duration) {
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
