package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Issued               *prometheus.CounterVec
	Verifications        *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
}

// New registers the one-time token metrics on reg; a nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Issued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_onetime_issued_total",
			Help: "One-time credentials issued by purpose",
		}, []string{"purpose"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_onetime_verifications_total",
			Help: "One-time credential verifications by purpose, method and outcome",
		}, []string{"purpose", "method", "outcome"}),
		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_onetime_notification_failures_total",
			Help: "Notifications that could not be delivered",
		}, []string{"purpose"}),
	}
}

func (m *Metrics) IncrementIssued(purpose string) {
	m.Issued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) RecordVerification(purpose, method, outcome string) {
	m.Verifications.WithLabelValues(purpose, method, outcome).Inc()
}

func (m *Metrics) IncrementNotificationFailures(purpose string) {
	m.NotificationFailures.WithLabelValues(purpose).Inc()
}
