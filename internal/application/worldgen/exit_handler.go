package worldgen

import (
	"context"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
)

// ExitHandler applies World.Exit.Create events: it materializes the exit
// pair a batch promised. Reapplying a delivered event is a no-op, which
// is what makes at-least-once delivery safe here.
type ExitHandler struct {
	locations LocationRepository
	log       zerolog.Logger
}

func NewExitHandler(locations LocationRepository) *ExitHandler {
	return &ExitHandler{
		locations: locations,
		log:       zlog.With().Str("component", "worldgen.exit").Logger(),
	}
}

func (h *ExitHandler) Handle(ctx context.Context, env *worldevent.Envelope) error {
	var p worldevent.ExitCreatePayload
	if err := env.DecodePayload(&p); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if p.FromLocationID == "" || p.ToLocationID == "" {
		return domain.ErrValidation("fromLocationId and toLocationId are required")
	}
	if p.FromLocationID == p.ToLocationID {
		return domain.ErrValidation("exit cannot loop back to its own location")
	}
	dir, err := domain.ParseDirection(p.Direction)
	if err != nil {
		return domain.ErrValidationMeta("invalid direction", map[string]string{"direction": p.Direction})
	}

	var changed int
	if p.Reciprocal {
		changed, err = h.locations.EnsureExitBidirectional(ctx, p.FromLocationID, dir, p.ToLocationID, p.TravelDurationMs)
	} else {
		changed, err = h.ensureOneWay(ctx, p.FromLocationID, dir, p.ToLocationID, p.TravelDurationMs)
	}
	if err != nil {
		return err
	}

	h.log.Info().
		Str("from_location_id", p.FromLocationID).
		Str("to_location_id", p.ToLocationID).
		Str("direction", string(dir)).
		Bool("reciprocal", p.Reciprocal).
		Int("sides_changed", changed).
		Str("correlation_id", env.CorrelationID).
		Msg("exit ensured")
	return nil
}

func (h *ExitHandler) ensureOneWay(ctx context.Context, fromID string, dir domain.Direction, toID string, travelMs int64) (int, error) {
	from, err := h.locations.Get(ctx, fromID)
	if err != nil {
		return 0, err
	}
	if _, err := h.locations.Get(ctx, toID); err != nil {
		return 0, err
	}
	if !from.SetExit(domain.Exit{Direction: dir, ToLocationID: toID, TravelDurationMs: travelMs}) {
		return 0, nil
	}
	if err := h.locations.Upsert(ctx, from); err != nil {
		return 0, err
	}
	return 1, nil
}
