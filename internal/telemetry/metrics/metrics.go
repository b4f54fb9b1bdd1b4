package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event pipeline metrics
	eventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "world_events_processed_total",
			Help: "Total number of events fully processed",
		},
		[]string{"type"},
	)

	eventsDuplicateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "world_events_duplicate_total",
			Help: "Total number of duplicate events skipped",
		},
		[]string{"type", "source"},
	)

	eventsDeadLetteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "world_events_dead_lettered_total",
			Help: "Total number of events sent to the dead letter store",
		},
		[]string{"type", "error_code"},
	)

	eventsUnhandledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "world_events_unhandled_total",
			Help: "Total number of valid events with no registered handler",
		},
		[]string{"type"},
	)

	eventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "world_event_processing_duration_seconds",
			Help:    "Event processing duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"type"},
	)

	registryWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "world_processed_registry_write_failures_total",
			Help: "Total number of best-effort processed-registry write failures",
		},
	)

	// Area generation metrics
	areaGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "world_area_generations_total",
			Help: "Total number of area generation batches by outcome",
		},
		[]string{"outcome"},
	)

	locationsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "world_locations_generated_total",
			Help: "Total number of stub locations created by batch generation",
		},
	)

	reconnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "world_reconnections_total",
			Help: "Total number of batch directions resolved by reconnection",
		},
	)

	exitsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "world_exits_created_total",
			Help: "Total number of directed exit sides ensured by batch generation",
		},
	)

	areaGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "world_area_generation_duration_seconds",
			Help:    "Batch generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	// Player metrics
	playerMovesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "world_player_moves_total",
			Help: "Total number of completed player moves",
		},
	)

	// Consumer metrics
	retryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "world_consumer_retry_attempts_total",
			Help: "Total number of deliveries routed to a retry tier",
		},
		[]string{"tier"},
	)

	workerPoolJobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "world_worker_pool_jobs_queued",
			Help: "Number of queued jobs in the consumer worker pool",
		},
	)
)

// RecordEventProcessed records one fully processed event.
func RecordEventProcessed(eventType string, duration time.Duration) {
	eventsProcessedTotal.WithLabelValues(eventType).Inc()
	eventProcessingDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordEventDuplicate records a dedupe hit; source is "cache" or "registry".
func RecordEventDuplicate(eventType, source string) {
	eventsDuplicateTotal.WithLabelValues(eventType, source).Inc()
}

// RecordEventDeadLettered records a dead-lettered event.
func RecordEventDeadLettered(eventType, errorCode string) {
	eventsDeadLetteredTotal.WithLabelValues(eventType, errorCode).Inc()
}

// RecordEventUnhandled records a valid event nobody handles.
func RecordEventUnhandled(eventType string) {
	eventsUnhandledTotal.WithLabelValues(eventType).Inc()
}

// RecordRegistryWriteFailure records a best-effort mark-processed failure.
func RecordRegistryWriteFailure() {
	registryWriteFailuresTotal.Inc()
}

// RecordAreaGeneration records one finished batch with its counters.
func RecordAreaGeneration(outcome string, locations, reconnections, exits int, duration time.Duration) {
	areaGenerationsTotal.WithLabelValues(outcome).Inc()
	locationsGeneratedTotal.Add(float64(locations))
	reconnectionsTotal.Add(float64(reconnections))
	exitsCreatedTotal.Add(float64(exits))
	areaGenerationDuration.Observe(duration.Seconds())
}

// RecordPlayerMove records one completed move.
func RecordPlayerMove() {
	playerMovesTotal.Inc()
}

// RecordRetryAttempt records a delivery pushed to a retry tier.
func RecordRetryAttempt(tier string) {
	retryAttemptsTotal.WithLabelValues(tier).Inc()
}

// SetWorkerPoolJobsQueued sets the queued-jobs gauge.
func SetWorkerPoolJobsQueued(count int) {
	workerPoolJobsQueued.Set(float64(count))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
