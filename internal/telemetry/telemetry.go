// Package telemetry fans world-simulation signals out to logs, metrics
// and test recorders behind one narrow Sink interface.
package telemetry

import (
	"context"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Telemetry event names. These are stable identifiers; dashboards and
// alerts key on them.
const (
	EventProcessed           = "World.Event.Processed"
	EventDuplicate           = "World.Event.Duplicate"
	EventDeadLettered        = "World.Event.DeadLettered"
	EventUnhandled           = "World.Event.Unhandled"
	EventRegistryWriteFailed = "World.Event.RegistryWriteFailed"

	AreaGenerationStarted   = "World.AreaGeneration.Started"
	AreaGenerationCompleted = "World.AreaGeneration.Completed"
	AreaGenerationFailed    = "World.AreaGeneration.Failed"

	PlayerMoved = "World.Player.Moved"
)

// Sink receives one named signal with its dimensions. Implementations must
// be safe for concurrent use and must never fail the caller.
type Sink interface {
	Track(ctx context.Context, name string, fields map[string]any)
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) Track(context.Context, string, map[string]any) {}

// MultiSink fans one signal out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Track(ctx context.Context, name string, fields map[string]any) {
	for _, s := range m {
		s.Track(ctx, name, fields)
	}
}

// LogSink writes each signal as one structured log line.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{log: zlog.With().Str("component", "telemetry").Logger()}
}

func NewLogSinkWith(l zerolog.Logger) *LogSink {
	return &LogSink{log: l.With().Str("component", "telemetry").Logger()}
}

func (s *LogSink) Track(_ context.Context, name string, fields map[string]any) {
	s.log.Info().Str("event", name).Fields(fields).Msg("telemetry")
}
