// Package worldevent defines the wire contract every world event travels
// in: one envelope shape, a closed set of event types, and the validation
// the pipeline runs before anything is dispatched.
package worldevent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the only version this contract accepts.
const EnvelopeVersion = 1

type EventType string

const (
	TypePlayerMove         EventType = "Player.Move"
	TypePlayerLook         EventType = "Player.Look"
	TypeNPCTick            EventType = "NPC.Tick"
	TypeAmbienceGenerated  EventType = "World.Ambience.Generated"
	TypeLocationBatchGen   EventType = "World.Location.BatchGenerate"
	TypeExitCreate         EventType = "World.Exit.Create"
	TypeEnvironmentChanged EventType = "Location.Environment.Changed"
	TypeQuestProposed      EventType = "Quest.Proposed"
)

var knownTypes = map[EventType]bool{
	TypePlayerMove:         true,
	TypePlayerLook:         true,
	TypeNPCTick:            true,
	TypeAmbienceGenerated:  true,
	TypeLocationBatchGen:   true,
	TypeExitCreate:         true,
	TypeEnvironmentChanged: true,
	TypeQuestProposed:      true,
}

func (t EventType) Valid() bool { return knownTypes[t] }

type ActorKind string

const (
	ActorPlayer ActorKind = "player"
	ActorNPC    ActorKind = "npc"
	ActorSystem ActorKind = "system"
	ActorAI     ActorKind = "ai"
)

func (k ActorKind) Valid() bool {
	return k == ActorPlayer || k == ActorNPC || k == ActorSystem || k == ActorAI
}

type ActorRef struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

// Envelope is the uniform wrapper for every world event. Field names are
// the wire contract; payloads stay raw until a handler decodes them.
type Envelope struct {
	EventID        string          `json:"eventId"`
	Type           EventType       `json:"type"`
	OccurredUtc    time.Time       `json:"occurredUtc"`
	IngestedUtc    time.Time       `json:"ingestedUtc,omitzero"`
	Actor          ActorRef        `json:"actor"`
	CorrelationID  string          `json:"correlationId"`
	CausationID    string          `json:"causationId,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Version        int             `json:"version"`
	Payload        json.RawMessage `json:"payload"`
}

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError aggregates every field failure of one envelope so a
// dead-letter record can show the full picture, not just the first fault.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "invalid event envelope: " + strings.Join(parts, "; ")
}

func (e *ValidationError) ErrorCode() string { return "schema-validation" }

// Validate checks the envelope against the contract and returns a
// *ValidationError listing every violation, or nil.
func (env *Envelope) Validate() error {
	var fields []FieldError
	add := func(field, reason string) {
		fields = append(fields, FieldError{Field: field, Reason: reason})
	}

	if env.EventID == "" {
		add("eventId", "required")
	} else if _, err := uuid.Parse(env.EventID); err != nil {
		add("eventId", "must be a valid uuid")
	}
	if env.Type == "" {
		add("type", "required")
	} else if !env.Type.Valid() {
		add("type", fmt.Sprintf("unknown event type %q", env.Type))
	}
	if env.OccurredUtc.IsZero() {
		add("occurredUtc", "required")
	}
	if env.Actor.Kind == "" {
		add("actor.kind", "required")
	} else if !env.Actor.Kind.Valid() {
		add("actor.kind", fmt.Sprintf("unknown actor kind %q", env.Actor.Kind))
	}
	if env.Actor.ID == "" {
		add("actor.id", "required")
	}
	if env.CorrelationID == "" {
		add("correlationId", "required")
	}
	if env.IdempotencyKey == "" {
		add("idempotencyKey", "required")
	}
	if env.Version != EnvelopeVersion {
		add("version", fmt.Sprintf("must be %d", EnvelopeVersion))
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		add("payload", "required")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// DecodePayload unmarshals the raw payload into v.
func (env *Envelope) DecodePayload(v any) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}
