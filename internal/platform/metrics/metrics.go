package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ApplicationsSubmitted prometheus.Counter
	ApplicationsAttested  prometheus.Counter
	ApplicationsRejected  prometheus.Counter
	ApplicationsSent      prometheus.Counter
	AuditEventsDropped    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics against a specific registerer. Tests pass a
// fresh registry so repeated construction never collides.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ApplicationsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifecert_applications_submitted_total",
			Help: "Total number of life-certificate applications submitted",
		}),
		ApplicationsAttested: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifecert_applications_attested_total",
			Help: "Total number of applications attested by notaries",
		}),
		ApplicationsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifecert_applications_rejected_total",
			Help: "Total number of applications rejected by notaries",
		}),
		ApplicationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifecert_applications_sent_total",
			Help: "Total number of applications transmitted to SPARSH",
		}),
		AuditEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifecert_audit_events_dropped_total",
			Help: "Audit events dropped because the sink buffer was full",
		}),
	}
}
