package worldevent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Emit warnings.
const (
	WarnCorrelationGenerated = "correlation-id-generated"
	WarnIdempotencyGenerated = "idempotency-key-generated"
)

// EmitInput is what a producer must supply to put an event on the wire.
// CorrelationID and IdempotencyKey may be left blank; Emit fills them and
// reports a warning so sloppy producers are visible in telemetry.
type EmitInput struct {
	Type           EventType
	Actor          ActorRef
	Payload        any
	CorrelationID  string
	CausationID    string
	IdempotencyKey string

	// ScopeKey partitions the stream for consumers that care about
	// ordering per aggregate (usually the root location id).
	ScopeKey string
}

// MessageProperties are the transport-level attributes that ride next to
// the envelope body on the queue.
type MessageProperties struct {
	MessageID     string
	CorrelationID string
	EventType     string
	ScopeKey      string
}

type EmitResult struct {
	Envelope *Envelope
	Props    MessageProperties
	Warnings []string
}

// Emit builds a valid envelope plus its message properties. It fails only
// on an unknown type or an unencodable payload; recoverable gaps (missing
// correlation or idempotency key) are repaired and reported as warnings.
func Emit(in EmitInput, now time.Time) (EmitResult, error) {
	if !in.Type.Valid() {
		return EmitResult{}, fmt.Errorf("emit: unknown event type %q", in.Type)
	}
	if in.Payload == nil {
		return EmitResult{}, fmt.Errorf("emit: %s payload is required", in.Type)
	}
	body, err := json.Marshal(in.Payload)
	if err != nil {
		return EmitResult{}, fmt.Errorf("emit: encode %s payload: %w", in.Type, err)
	}

	var warnings []string
	correlationID := in.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
		warnings = append(warnings, WarnCorrelationGenerated)
	}
	idempotencyKey := in.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
		warnings = append(warnings, WarnIdempotencyGenerated)
	}

	env := &Envelope{
		EventID:        uuid.NewString(),
		Type:           in.Type,
		OccurredUtc:    now.UTC(),
		Actor:          in.Actor,
		CorrelationID:  correlationID,
		CausationID:    in.CausationID,
		IdempotencyKey: idempotencyKey,
		Version:        EnvelopeVersion,
		Payload:        body,
	}

	return EmitResult{
		Envelope: env,
		Props: MessageProperties{
			MessageID:     env.EventID,
			CorrelationID: correlationID,
			EventType:     string(in.Type),
			ScopeKey:      in.ScopeKey,
		},
		Warnings: warnings,
	}, nil
}
