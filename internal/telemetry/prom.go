package telemetry

import (
	"context"
	"time"

	"github.com/mosswell/world-service/internal/telemetry/metrics"
)

// MetricsSink translates telemetry signals into Prometheus series. Field
// extraction is tolerant: a missing dimension becomes an empty label, never
// a panic in the hot path.
type MetricsSink struct{}

func NewMetricsSink() MetricsSink { return MetricsSink{} }

func (MetricsSink) Track(_ context.Context, name string, fields map[string]any) {
	switch name {
	case EventProcessed:
		metrics.RecordEventProcessed(str(fields, "type"), millis(fields, "latency_ms"))
	case EventDuplicate:
		metrics.RecordEventDuplicate(str(fields, "type"), str(fields, "source"))
	case EventDeadLettered:
		metrics.RecordEventDeadLettered(str(fields, "type"), str(fields, "error_code"))
	case EventUnhandled:
		metrics.RecordEventUnhandled(str(fields, "type"))
	case EventRegistryWriteFailed:
		metrics.RecordRegistryWriteFailure()
	case AreaGenerationStarted:
		// Started is a log-only signal; outcomes are counted on completion.
	case AreaGenerationCompleted:
		metrics.RecordAreaGeneration("completed",
			num(fields, "locations_generated"),
			num(fields, "reconnections_created"),
			num(fields, "exits_created"),
			millis(fields, "duration_ms"))
	case AreaGenerationFailed:
		metrics.RecordAreaGeneration("failed", 0, 0, 0, 0)
	case PlayerMoved:
		metrics.RecordPlayerMove()
	}
}

func str(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func num(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func millis(fields map[string]any, key string) time.Duration {
	return time.Duration(num(fields, key)) * time.Millisecond
}
