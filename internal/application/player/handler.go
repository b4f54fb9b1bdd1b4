package player

import (
	"context"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
	"github.com/mosswell/world-service/internal/telemetry"
)

// MoveHandler consumes Player.Move events off the stream. Moves change
// nothing in the world graph; the handler records the audit telemetry so
// movement shows up in dashboards exactly once, on the consumer side.
type MoveHandler struct {
	sink telemetry.Sink
	log  zerolog.Logger
}

func NewMoveHandler(sink telemetry.Sink) *MoveHandler {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &MoveHandler{
		sink: sink,
		log:  zlog.With().Str("component", "player.move").Logger(),
	}
}

func (h *MoveHandler) Handle(ctx context.Context, env *worldevent.Envelope) error {
	var p worldevent.PlayerMovePayload
	if err := env.DecodePayload(&p); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if p.FromLocationID == "" || p.ToLocationID == "" || p.Direction == "" {
		return domain.ErrValidation("fromLocationId, toLocationId and direction are required")
	}

	h.sink.Track(ctx, telemetry.PlayerMoved, map[string]any{
		"player_id":          env.Actor.ID,
		"from_location_id":   p.FromLocationID,
		"to_location_id":     p.ToLocationID,
		"direction":          p.Direction,
		"travel_duration_ms": p.TravelDurationMs,
		"correlation_id":     env.CorrelationID,
	})
	h.log.Debug().
		Str("player_id", env.Actor.ID).
		Str("from_location_id", p.FromLocationID).
		Str("to_location_id", p.ToLocationID).
		Msg("move recorded")
	return nil
}
