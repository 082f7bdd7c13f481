// Package metrics holds the Prometheus collectors of the scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "persona_scheduler"

var (
	// ActionsTotal counts adapter actions.
	// Labels: platform, kind (publish, like, comment, follow, reply), outcome (success or an apperr code)
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "actions",
		Name:      "total",
		Help:      "Platform actions attempted by the scheduler",
	}, []string{"platform", "kind", "outcome"})

	// QuotaDenials counts reservations refused by a daily cap.
	// Labels: scope (persona, account), kind
	QuotaDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quota",
		Name:      "denials_total",
		Help:      "Quota reservations denied",
	}, []string{"scope", "kind"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tick",
		Name:      "duration_seconds",
		Help:      "Wall time of one scheduling pass",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})

	// UnitFailures counts units of work aborted by an internal fault.
	UnitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tick",
		Name:      "unit_failures_total",
		Help:      "Units of work aborted by an internal fault",
	}, []string{"stage"})

	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conversations",
		Name:      "inbound_total",
		Help:      "Inbound direct messages by classification",
	}, []string{"platform", "status"})
)
