// Package metrics declara las métricas Prometheus del pipeline de eventos.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutboxPublished cuenta los eventos del outbox confirmados por el broker.
	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placementlab_outbox_published_total",
		Help: "Outbox events acknowledged by the event bus",
	}, []string{"event_type"})

	OutboxPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placementlab_outbox_publish_failures_total",
		Help: "Failed outbox publish attempts",
	})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "placementlab_outbox_pending",
		Help: "Outbox events waiting to be relayed",
	})

	OutboxBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "placementlab_outbox_breaker_state",
		Help: "Circuit breaker state towards the event bus (0 closed, 1 half-open, 2 open)",
	})

	// DispatchedMessages cuenta los mensajes encolados por cola de suscriptor.
	DispatchedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placementlab_dispatched_messages_total",
		Help: "Messages enqueued per subscriber queue",
	}, []string{"queue"})

	DispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placementlab_dispatch_failures_total",
		Help: "Failed enqueue attempts per subscriber queue",
	}, []string{"queue"})

	UnroutableEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placementlab_unroutable_events_total",
		Help: "Events dropped because no queue subscribes to their type",
	}, []string{"event_type"})

	// WorkerOutcomes cuenta el resultado de cada entrega procesada por un worker.
	WorkerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placementlab_worker_outcomes_total",
		Help: "Worker message outcomes",
	}, []string{"queue", "outcome"})

	WorkerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "placementlab_worker_processing_seconds",
		Help:    "Time spent processing a message",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})

	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placementlab_dead_letters_total",
		Help: "Messages moved to the dead-letter queue",
	}, []string{"queue"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placementlab_http_requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "placementlab_http_request_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placementlab_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)
