package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	FailedAttempts prometheus.Counter
	Lockouts       prometheus.Counter
	LockedChecks   prometheus.Counter
	Resets         prometheus.Counter
}

// New registers the lockout metrics on reg; a nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FailedAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_lockout_failed_attempts_total",
			Help: "Failed authentication attempts recorded by the lockout guard",
		}),
		Lockouts: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_lockout_locks_total",
			Help: "Identity+origin pairs that reached the failure threshold",
		}),
		LockedChecks: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_lockout_locked_checks_total",
			Help: "Lock checks that rejected a request",
		}),
		Resets: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_lockout_resets_total",
			Help: "Lockout records cleared after a successful authentication",
		}),
	}
}

func (m *Metrics) IncrementFailedAttempts() { m.FailedAttempts.Inc() }
func (m *Metrics) IncrementLockouts()       { m.Lockouts.Inc() }
func (m *Metrics) IncrementLockedChecks()   { m.LockedChecks.Inc() }
func (m *Metrics) IncrementResets()         { m.Resets.Inc() }
