// Package dispatch runs the event pipeline: parse, validate, dedupe,
// dispatch, dead-letter. Every queue delivery ends in exactly one outcome;
// only retryable faults leave as errors for the transport to redeliver.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
	"github.com/mosswell/world-service/internal/telemetry"
)

type Outcome int

const (
	// OutcomeNone is the zero value, returned only alongside an error.
	OutcomeNone Outcome = iota
	OutcomeProcessed
	OutcomeDuplicate
	OutcomeDeadLettered
	OutcomeUnhandled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeDeadLettered:
		return "dead-lettered"
	case OutcomeUnhandled:
		return "unhandled"
	default:
		return "none"
	}
}

// Delivery carries transport-level context for one attempt.
type Delivery struct {
	Attempt         int
	FirstAttemptUtc time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Processor struct {
	registry    *Registry
	processed   ProcessedEventRepository
	deadLetters DeadLetterRepository
	cache       *KeyCache
	sink        telemetry.Sink
	clock       Clock
	log         zerolog.Logger
}

func NewProcessor(registry *Registry, processed ProcessedEventRepository, deadLetters DeadLetterRepository, cache *KeyCache, sink telemetry.Sink, clock Clock) *Processor {
	if cache == nil {
		cache = NewKeyCache(DefaultCacheSize)
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Processor{
		registry:    registry,
		processed:   processed,
		deadLetters: deadLetters,
		cache:       cache,
		sink:        sink,
		clock:       clock,
		log:         zlog.With().Str("component", "dispatch").Logger(),
	}
}

// Process takes one raw delivery through the pipeline. The returned error
// is non-nil only for retryable faults; every other path resolves to an
// outcome and the transport should ack.
func (p *Processor) Process(ctx context.Context, body []byte, del Delivery) (Outcome, error) {
	started := p.clock.Now()

	var env worldevent.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return p.deadLetter(ctx, body, nil, del, ErrCodeJSONParse, fmt.Sprintf("malformed envelope: %v", err))
	}

	if err := env.Validate(); err != nil {
		return p.deadLetter(ctx, body, &env, del, ErrCodeSchemaValidation, err.Error())
	}
	if env.IngestedUtc.IsZero() {
		env.IngestedUtc = p.clock.Now().UTC()
	}

	log := p.log.With().
		Str("event_id", env.EventID).
		Str("type", string(env.Type)).
		Str("correlation_id", env.CorrelationID).
		Logger()

	// Dedupe tier 1: process-local LRU.
	if p.cache.Contains(env.IdempotencyKey) {
		log.Debug().Str("source", "cache").Msg("duplicate event skipped")
		p.sink.Track(ctx, telemetry.EventDuplicate, map[string]any{
			"type":            string(env.Type),
			"idempotency_key": env.IdempotencyKey,
			"source":          "cache",
		})
		return OutcomeDuplicate, nil
	}

	// Dedupe tier 2: durable registry. Read faults are transient; let the
	// transport retry rather than risking a double apply.
	seen, err := p.processed.CheckProcessed(ctx, env.IdempotencyKey)
	if err != nil {
		return OutcomeNone, fmt.Errorf("check processed registry: %w", domain.ErrDBUnavailable(err.Error()))
	}
	if seen {
		p.cache.Add(env.IdempotencyKey)
		log.Debug().Str("source", "registry").Msg("duplicate event skipped")
		p.sink.Track(ctx, telemetry.EventDuplicate, map[string]any{
			"type":            string(env.Type),
			"idempotency_key": env.IdempotencyKey,
			"source":          "registry",
		})
		return OutcomeDuplicate, nil
	}

	handler, ok := p.registry.Lookup(env.Type)
	if !ok {
		// A valid type nobody handles is dropped, not dead-lettered;
		// flooding the dead-letter store with routine events would bury
		// real poison.
		log.Warn().Msg("no handler registered for event type")
		p.sink.Track(ctx, telemetry.EventUnhandled, map[string]any{"type": string(env.Type)})
		return OutcomeUnhandled, nil
	}

	if err := handler.Handle(ctx, &env); err != nil {
		if domain.IsRetryable(err) {
			log.Warn().Err(err).Int("attempt", del.Attempt).Msg("handler failed, retryable")
			return OutcomeNone, err
		}
		return p.deadLetter(ctx, body, &env, del, ErrCodeHandlerPermanent, err.Error())
	}

	// Best effort: losing the registry write means a rare double delivery
	// later, which handlers already tolerate. It must not fail the event.
	if err := p.processed.MarkProcessed(ctx, env.IdempotencyKey, env.EventID, p.clock.Now()); err != nil {
		log.Error().Err(err).Msg("processed registry write failed")
		p.sink.Track(ctx, telemetry.EventRegistryWriteFailed, map[string]any{
			"type":            string(env.Type),
			"idempotency_key": env.IdempotencyKey,
		})
	}
	p.cache.Add(env.IdempotencyKey)

	latency := p.clock.Now().Sub(started)
	log.Info().Int64("latency_ms", latency.Milliseconds()).Msg("event processed")
	p.sink.Track(ctx, telemetry.EventProcessed, map[string]any{
		"event_id":       env.EventID,
		"type":           string(env.Type),
		"correlation_id": env.CorrelationID,
		"latency_ms":     latency.Milliseconds(),
	})
	return OutcomeProcessed, nil
}

// DeadLetterExhausted records a delivery whose retry budget ran out. The
// transport calls this instead of redelivering forever.
func (p *Processor) DeadLetterExhausted(ctx context.Context, body []byte, del Delivery, cause error) (Outcome, error) {
	var env *worldevent.Envelope
	var parsed worldevent.Envelope
	if err := json.Unmarshal(body, &parsed); err == nil {
		env = &parsed
	}
	reason := "retry attempts exhausted"
	if cause != nil {
		reason = fmt.Sprintf("retry attempts exhausted: %v", cause)
	}
	return p.deadLetter(ctx, body, env, del, ErrCodeRetryExhausted, reason)
}

func (p *Processor) deadLetter(ctx context.Context, body []byte, env *worldevent.Envelope, del Delivery, code, reason string) (Outcome, error) {
	now := p.clock.Now().UTC()
	firstAttempt := del.FirstAttemptUtc
	if firstAttempt.IsZero() {
		firstAttempt = now
	}

	rec := DeadLetterRecord{
		ID:              uuid.NewString(),
		Body:            body,
		ErrorCode:       code,
		FailureReason:   reason,
		RetryCount:      del.Attempt,
		FirstAttemptUtc: firstAttempt,
		DeadLetteredUtc: now,
	}
	if env != nil {
		rec.EventID = env.EventID
		rec.EventType = string(env.Type)
		rec.CorrelationID = env.CorrelationID
	}

	// The record must land before the delivery is acked; a store fault is
	// transient, so surface it for redelivery.
	if err := p.deadLetters.Store(ctx, rec); err != nil {
		return OutcomeNone, fmt.Errorf("store dead letter: %w", domain.ErrDBUnavailable(err.Error()))
	}

	p.log.Error().
		Str("dead_letter_id", rec.ID).
		Str("error_code", code).
		Str("event_type", rec.EventType).
		Str("correlation_id", rec.CorrelationID).
		Int("retry_count", rec.RetryCount).
		Msg("event dead-lettered")
	p.sink.Track(ctx, telemetry.EventDeadLettered, map[string]any{
		"dead_letter_id": rec.ID,
		"type":           rec.EventType,
		"error_code":     code,
		"correlation_id": rec.CorrelationID,
	})
	return OutcomeDeadLettered, nil
}
