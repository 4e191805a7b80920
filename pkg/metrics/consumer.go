package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConsumerDuration tracks the end-to-end latency of handling one change event
	ConsumerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consumer_processing_duration_seconds",
		Help:    "Time taken to handle a change event from reception to remote write",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"status", "table", "operation"})

	// ConsumerMessages tracks the result of message consumption
	ConsumerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_total",
		Help: "Total number of change events handled by the consumer",
	}, []string{"status", "kind"}) // status: success, dead_letter, requeued

	// ConsumerDeadLetters counts events recorded in the failure ledger
	ConsumerDeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_dead_letters_total",
		Help: "Number of change events rejected without requeue",
	}, []string{"table"})
)
