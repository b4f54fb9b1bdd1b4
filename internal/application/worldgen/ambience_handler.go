package worldgen

import (
	"context"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
)

// AmbienceHandler applies World.Ambience.Generated events by writing an
// ambient description layer. The layer id derives from the event's
// idempotency key, so redelivery rewrites instead of stacking layers.
type AmbienceHandler struct {
	locations LocationRepository
	layers    LayerRepository
	clock     Clock
	log       zerolog.Logger
}

func NewAmbienceHandler(locations LocationRepository, layers LayerRepository, clock Clock) *AmbienceHandler {
	return &AmbienceHandler{
		locations: locations,
		layers:    layers,
		clock:     clock,
		log:       zlog.With().Str("component", "worldgen.ambience").Logger(),
	}
}

func (h *AmbienceHandler) Handle(ctx context.Context, env *worldevent.Envelope) error {
	var p worldevent.AmbienceGeneratedPayload
	if err := env.DecodePayload(&p); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if p.LocationID == "" {
		return domain.ErrValidation("locationId is required")
	}
	if p.Content == "" {
		return domain.ErrValidation("content is required")
	}

	if _, err := h.locations.Get(ctx, p.LocationID); err != nil {
		return err
	}

	layer := domain.NewDescriptionLayer(p.LocationID, domain.LayerAmbient, p.Content, p.Priority, h.clock.Now())
	layer.ID = deterministicID(env.IdempotencyKey, "ambience")
	if p.WeatherType != "" {
		layer.Attributes["weatherType"] = p.WeatherType
	}
	if p.TimeBucket != "" {
		layer.Attributes["timeBucket"] = p.TimeBucket
	}
	if err := h.layers.AddLayer(ctx, layer); err != nil {
		return err
	}

	h.log.Debug().
		Str("location_id", p.LocationID).
		Str("weather_type", p.WeatherType).
		Str("time_bucket", p.TimeBucket).
		Msg("ambient layer written")
	return nil
}
