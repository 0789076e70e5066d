package cleanup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Runs     *prometheus.CounterVec
	Removed  *prometheus.CounterVec
	Duration prometheus.Histogram
}

// NewMetrics registers the sweep metrics on reg; a nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_cleanup_runs_total",
			Help: "Store sweep runs by outcome",
		}, []string{"outcome"}),
		Removed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_cleanup_removed_total",
			Help: "Expired entries removed by store",
		}, []string{"store"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeeper_cleanup_duration_seconds",
			Help:    "Duration of store sweep runs",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

func (m *Metrics) ObserveRun(res *Result, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Runs.WithLabelValues(outcome).Inc()
	for store, n := range res.Removed {
		m.Removed.WithLabelValues(store).Add(float64(n))
	}
	m.Duration.Observe(res.Duration.Seconds())
}
