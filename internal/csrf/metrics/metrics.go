package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Issued     prometheus.Counter
	Rejections *prometheus.CounterVec
}

// New registers the CSRF metrics on reg; a nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Issued: f.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_csrf_tokens_issued_total",
			Help: "CSRF tokens issued",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_csrf_rejections_total",
			Help: "State-changing requests rejected by the CSRF guard",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.Issued.Inc()
}

func (m *Metrics) IncrementRejections(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}
