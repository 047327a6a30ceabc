package eventbus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	eventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lift",
			Name:      "events_published_total",
			Help:      "Count of events durably appended to the bus.",
		},
	)

	eventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lift",
			Name:      "events_processed_total",
			Help:      "Count of envelope processing outcomes.",
		},
		[]string{"outcome"},
	)

	handlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lift",
			Name:      "handler_failures_total",
			Help:      "Count of handler invocations that returned an error.",
		},
		[]string{"handler"},
	)

	processingPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lift",
			Name:      "processing_passes_total",
			Help:      "Count of processing passes by result.",
		},
		[]string{"result"},
	)

	passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lift",
			Name:      "processing_pass_duration_seconds",
			Help:      "Time spent inside a processing pass.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2, 5},
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lift",
			Name:      "event_queue_depth",
			Help:      "Envelope counts by status.",
		},
		[]string{"status"},
	)
)

// RegisterMetrics registers bus metrics (idempotent).
func RegisterMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(
			eventsPublished,
			eventsProcessed,
			handlerFailures,
			processingPasses,
			passDuration,
			queueDepth,
		)
	})
}
