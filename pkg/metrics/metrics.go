package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteCalls counts every call made to hcw@home or OpenMRS, by resource and outcome
	RemoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_remote_calls_total",
		Help: "Total number of FHIR calls made to remote systems",
	}, []string{"target", "method", "resource", "status"})

	// RemoteCallDuration measures FHIR round trips
	RemoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_remote_call_duration_seconds",
		Help:    "Duration of FHIR calls in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"target", "method"})

	// Logins counts authentications against hcw@home
	// A steady climb means tokens are refreshed far more often than they expire
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_hcw_logins_total",
		Help: "Total number of login calls made to hcw@home",
	}, []string{"status"})

	// ReconcileOutcomes tracks what the reconciler decided for each appointment
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_reconcile_outcomes_total",
		Help: "Reconciliation decisions by action and outcome",
	}, []string{"action", "outcome"}) // outcome: created, updated, unchanged, deleted, absent, skipped, error

	// SweepItems counts sweep results per appointment
	SweepItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_sweep_items_total",
		Help: "Ended appointments visited by the completion sweep",
	}, []string{"outcome"}) // outcome: persisted, no_encounter, already_synced, error

	// SweepDuration measures one full sweep run
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_sweep_duration_seconds",
		Help:    "Duration of a completion sweep in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RabbitMQReconnections counts how many times the consumer had to restore the link
	RabbitMQReconnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_rabbitmq_reconnections_total",
		Help: "Total number of RabbitMQ reconnection attempts",
	})

	// HealthStatus provides a binary 0/1 signal for the broker link
	HealthStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_healthy",
		Help: "Current health status of the service (1 for healthy, 0 for unhealthy)",
	})
)
