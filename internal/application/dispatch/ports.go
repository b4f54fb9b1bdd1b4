package dispatch

import (
	"context"
	"time"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
)

// Dead-letter error codes. The set is open ended; these are the ones the
// pipeline itself produces.
const (
	ErrCodeJSONParse        = "json-parse"
	ErrCodeSchemaValidation = "schema-validation"
	ErrCodeHandlerPermanent = "handler-permanent"
	ErrCodeRetryExhausted   = "retry-exhausted"
)

type Clock interface {
	Now() time.Time
}

// Handler applies one event type's world effects. A returned error is
// classified by domain.IsRetryable: retryable goes back to the transport,
// anything else dead-letters.
type Handler interface {
	Handle(ctx context.Context, env *worldevent.Envelope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env *worldevent.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env *worldevent.Envelope) error {
	return f(ctx, env)
}

// ProcessedEventRepository is the durable second dedupe tier, keyed by
// idempotency key.
type ProcessedEventRepository interface {
	CheckProcessed(ctx context.Context, idempotencyKey string) (bool, error)
	MarkProcessed(ctx context.Context, idempotencyKey, eventID string, processedAt time.Time) error
}

// DeadLetterRecord preserves a failed delivery with enough context to
// replay or diagnose it later.
type DeadLetterRecord struct {
	ID              string
	Body            []byte
	EventID         string
	EventType       string
	ErrorCode       string
	FailureReason   string
	CorrelationID   string
	RetryCount      int
	FirstAttemptUtc time.Time
	DeadLetteredUtc time.Time
}

// DeadLetterRepository stores poison deliveries durably and serves the
// operational query surface.
type DeadLetterRepository interface {
	Store(ctx context.Context, rec DeadLetterRecord) error
	QueryByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]DeadLetterRecord, error)
	GetByID(ctx context.Context, id string) (DeadLetterRecord, error)
}

// Publisher puts an envelope on the event stream. Implementations exist
// for RabbitMQ and for an ordered in-process queue.
type Publisher interface {
	Publish(ctx context.Context, env *worldevent.Envelope, props worldevent.MessageProperties) error
}
