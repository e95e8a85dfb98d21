package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for registry administration.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	RegistrationsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "careledger_registry_transitions_total",
			Help: "Status transitions attempted, by registrant kind, action and outcome",
		}, []string{"kind", "action", "outcome"}),
		RegistrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "careledger_registry_registrations_total",
			Help: "New registrants created, by kind",
		}, []string{"kind"}),
	}
}

// RecordTransition counts one transition attempt.
func (m *Metrics) RecordTransition(kind, action, outcome string) {
	m.TransitionsTotal.WithLabelValues(kind, action, outcome).Inc()
}

// RecordRegistration counts one new registrant.
func (m *Metrics) RecordRegistration(kind string) {
	m.RegistrationsTotal.WithLabelValues(kind).Inc()
}
