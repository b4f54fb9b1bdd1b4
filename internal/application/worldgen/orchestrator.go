package worldgen

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
	"github.com/mosswell/world-service/internal/telemetry"
)

// Request asks for one generation batch around an anchor. An empty
// AnchorLocationID targets the well-known starter location.
type Request struct {
	AnchorLocationID string
	Mode             Mode
	BudgetLocations  int
	IdempotencyKey   string
	RealmHints       []string

	CorrelationID string
	Actor         worldevent.ActorRef
}

// Receipt describes the batch event that was put on the stream.
type Receipt struct {
	EventID       string
	CorrelationID string
	AnchorID      string
	BatchSize     int
	Terrain       domain.Terrain
	Clamped       bool
}

// Orchestrator turns generation requests into World.Location.BatchGenerate
// events: it resolves the anchor, clamps the budget, picks terrain and
// arrival direction, then publishes.
type Orchestrator struct {
	locations LocationRepository
	realms    RealmRepository
	publisher Publisher
	sink      telemetry.Sink
	clock     Clock
	starterID string
	log       zerolog.Logger
}

func NewOrchestrator(locations LocationRepository, realms RealmRepository, publisher Publisher, sink telemetry.Sink, clock Clock, starterID string) *Orchestrator {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Orchestrator{
		locations: locations,
		realms:    realms,
		publisher: publisher,
		sink:      sink,
		clock:     clock,
		starterID: starterID,
		log:       zlog.With().Str("component", "worldgen.orchestrator").Logger(),
	}
}

func (o *Orchestrator) RequestAreaGeneration(ctx context.Context, req Request) (Receipt, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeAuto
	}
	if !mode.Valid() {
		return Receipt{}, domain.ErrValidationMeta("invalid mode", map[string]string{"mode": string(req.Mode)})
	}

	anchorID := req.AnchorLocationID
	if anchorID == "" {
		anchorID = o.starterID
	}
	anchor, err := o.locations.Get(ctx, anchorID)
	if err != nil {
		o.trackFailed(ctx, anchorID, req.CorrelationID, err)
		return Receipt{}, err
	}

	batchSize, clamped := ClampBatchSize(req.BudgetLocations)
	terrain := ResolveTerrain(ctx, "", mode, anchor, o.realms)

	// The way the traveler came in is the anchor's first hard exit; a
	// virgin anchor (the starter, usually) has no arrival side at all.
	arrival := ""
	if len(anchor.Exits) > 0 {
		arrival = string(anchor.Exits[0].Direction)
	}

	realmKey := ""
	for _, hint := range req.RealmHints {
		if anchor.InRealm(hint) {
			realmKey = hint
			break
		}
	}
	if realmKey == "" && len(req.RealmHints) > 0 {
		realmKey = req.RealmHints[0]
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = fmt.Sprintf("worldgen:%s:%s:%d:%s", anchor.ID, terrain, batchSize, uuid.NewString())
	}
	actor := req.Actor
	if actor.Kind == "" {
		actor = worldevent.ActorRef{Kind: worldevent.ActorSystem, ID: "world-service"}
	}

	res, err := worldevent.Emit(worldevent.EmitInput{
		Type:  worldevent.TypeLocationBatchGen,
		Actor: actor,
		Payload: worldevent.BatchGeneratePayload{
			RootLocationID:   anchor.ID,
			Terrain:          string(terrain),
			ArrivalDirection: arrival,
			ExpansionDepth:   1,
			BatchSize:        batchSize,
			RealmHints:       req.RealmHints,
			RealmKey:         realmKey,
		},
		CorrelationID:  req.CorrelationID,
		IdempotencyKey: idempotencyKey,
		ScopeKey:       anchor.ID,
	}, o.clock.Now())
	if err != nil {
		o.trackFailed(ctx, anchor.ID, req.CorrelationID, err)
		return Receipt{}, err
	}
	for _, w := range res.Warnings {
		o.log.Warn().Str("warning", w).Str("anchor_id", anchor.ID).Msg("emit repaired a missing field")
	}

	if err := o.publisher.Publish(ctx, res.Envelope, res.Props); err != nil {
		err = fmt.Errorf("publish batch generate: %w", err)
		o.trackFailed(ctx, anchor.ID, res.Props.CorrelationID, err)
		return Receipt{}, err
	}

	o.log.Info().
		Str("anchor_id", anchor.ID).
		Str("terrain", string(terrain)).
		Int("batch_size", batchSize).
		Bool("clamped", clamped).
		Str("correlation_id", res.Props.CorrelationID).
		Msg("area generation requested")
	o.sink.Track(ctx, telemetry.AreaGenerationStarted, map[string]any{
		"root_location_id": anchor.ID,
		"terrain":          string(terrain),
		"batch_size":       batchSize,
		"correlation_id":   res.Props.CorrelationID,
	})

	return Receipt{
		EventID:       res.Envelope.EventID,
		CorrelationID: res.Props.CorrelationID,
		AnchorID:      anchor.ID,
		BatchSize:     batchSize,
		Terrain:       terrain,
		Clamped:       clamped,
	}, nil
}

func (o *Orchestrator) trackFailed(ctx context.Context, anchorID, correlationID string, err error) {
	o.sink.Track(ctx, telemetry.AreaGenerationFailed, map[string]any{
		"root_location_id": anchorID,
		"error":            err.Error(),
		"error_code":       domain.CodeOf(err),
		"correlation_id":   correlationID,
	})
}
