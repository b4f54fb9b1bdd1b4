// Package worldgen grows the world graph: a batch handler that expands a
// root location in two reconnect phases plus stub creation, the exit
// materializer, and the orchestrator that requests batches.
package worldgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
	"github.com/mosswell/world-service/internal/telemetry"
)

// PendingSourceBatch marks exit hints written by batch generation.
const PendingSourceBatch = "batch-generate"

// BatchHandler applies World.Location.BatchGenerate events.
type BatchHandler struct {
	locations LocationRepository
	layers    LayerRepository
	realms    RealmRepository
	gen       Generator
	publisher Publisher
	sink      telemetry.Sink
	clock     Clock
	log       zerolog.Logger
}

func NewBatchHandler(locations LocationRepository, layers LayerRepository, realms RealmRepository, gen Generator, publisher Publisher, sink telemetry.Sink, clock Clock) *BatchHandler {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &BatchHandler{
		locations: locations,
		layers:    layers,
		realms:    realms,
		gen:       gen,
		publisher: publisher,
		sink:      sink,
		clock:     clock,
		log:       zlog.With().Str("component", "worldgen.batch").Logger(),
	}
}

func (h *BatchHandler) Handle(ctx context.Context, env *worldevent.Envelope) error {
	started := h.clock.Now()

	var p worldevent.BatchGeneratePayload
	if err := env.DecodePayload(&p); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if p.RootLocationID == "" {
		return domain.ErrValidation("rootLocationId is required")
	}
	if p.BatchSize < 1 {
		return domain.ErrValidation("batchSize must be >= 1")
	}

	var arrival domain.Direction
	if p.ArrivalDirection != "" {
		d, err := domain.ParseDirection(p.ArrivalDirection)
		if err != nil {
			return domain.ErrValidationMeta("invalid arrivalDirection", map[string]string{"arrivalDirection": p.ArrivalDirection})
		}
		arrival = d
	}

	root, err := h.locations.Get(ctx, p.RootLocationID)
	if err != nil {
		h.trackFailed(ctx, env, p.RootLocationID, err)
		return err
	}

	terrain := ResolveTerrain(ctx, domain.Terrain(p.Terrain), ModeAuto, root, h.realms)
	travelMs := p.TravelDurationMs
	if travelMs <= 0 {
		travelMs = DefaultTravelDurationMs
	}
	batchSize, _ := ClampBatchSize(p.BatchSize)
	candidates := CandidateDirections(terrain, arrival, batchSize)

	log := h.log.With().
		Str("root_location_id", root.ID).
		Str("terrain", string(terrain)).
		Str("correlation_id", env.CorrelationID).
		Logger()

	// Phase 1: directions already served by a hard exit are reconnections.
	var unresolved []domain.Direction
	reconnections := 0
	for _, d := range candidates {
		if _, ok := root.ExitIn(d); ok {
			reconnections++
			continue
		}
		unresolved = append(unresolved, d)
	}

	// Phase 2: fuzzy reconnection into nearby reachable locations.
	// Boundary roots grow outward only and skip this entirely.
	if len(unresolved) > 0 && !root.IsFrontierBoundary() {
		budget := 2 * travelMs
		found, err := findReconnectCandidates(ctx, h.locations, root, budget, p.RealmKey)
		if err != nil {
			h.trackFailed(ctx, env, root.ID, err)
			return err
		}
		matches := assignCandidates(unresolved, found)

		var still []domain.Direction
		for _, d := range unresolved {
			cand, ok := matches[d]
			if !ok {
				still = append(still, d)
				continue
			}
			if _, err := h.locations.EnsureExitBidirectional(ctx, root.ID, d, cand.LocationID, travelMs); err != nil {
				h.trackFailed(ctx, env, root.ID, err)
				return err
			}
			log.Info().
				Str("direction", string(d)).
				Str("to_location_id", cand.LocationID).
				Int("hops", cand.Hops).
				Int64("cumulative_travel_ms", cand.CumulativeTravel).
				Msg("fuzzy reconnection stitched")
			reconnections++
		}
		unresolved = still
	}

	// Phase 3: the rest of the frontier becomes stubs.
	locationsGenerated := 0
	aiCost := 0.0
	for _, d := range unresolved {
		cost, err := h.createStub(ctx, env, root, terrain, d, travelMs)
		if err != nil {
			h.trackFailed(ctx, env, root.ID, err)
			return err
		}
		aiCost += cost
		locationsGenerated++
	}

	exitsCreated := 2 * (locationsGenerated + reconnections)
	durationMs := h.clock.Now().Sub(started).Milliseconds()
	log.Info().
		Int("locations_generated", locationsGenerated).
		Int("reconnections_created", reconnections).
		Int("exits_created", exitsCreated).
		Msg("batch generation completed")
	h.sink.Track(ctx, telemetry.AreaGenerationCompleted, map[string]any{
		"root_location_id":      root.ID,
		"terrain":               string(terrain),
		"expansion_depth":       p.ExpansionDepth,
		"locations_generated":   locationsGenerated,
		"reconnections_created": reconnections,
		"exits_created":         exitsCreated,
		"ai_cost_units":         aiCost,
		"duration_ms":           durationMs,
		"correlation_id":        env.CorrelationID,
	})
	return nil
}

// createStub persists one unexplored location off root in direction d and
// enqueues the exit pair that will link them. Every identifier derives
// from the batch's idempotency key, so a replayed batch rewrites the same
// rows and re-emits the same events instead of minting twins.
func (h *BatchHandler) createStub(ctx context.Context, env *worldevent.Envelope, root *domain.Location, terrain domain.Terrain, d domain.Direction, travelMs int64) (float64, error) {
	now := h.clock.Now()
	back := d.Opposite()

	realmName := ""
	if h.realms != nil {
		for _, key := range root.RealmKeys() {
			if realm, err := h.realms.Get(ctx, key); err == nil {
				realmName = realm.Name
				break
			}
		}
	}

	desc, err := h.gen.GenerateStub(ctx, StubRequest{Terrain: terrain, ArrivedFrom: back, RealmName: realmName})
	if err != nil {
		// Flavor text must never sink a batch; fall back to the bare stub.
		h.log.Warn().Err(err).Str("direction", string(d)).Msg("description generator failed, using fallback")
		desc = StubDescription{Name: fmt.Sprintf("Unexplored %s", terrain)}
	}
	if desc.Name == "" {
		desc.Name = fmt.Sprintf("Unexplored %s", terrain)
	}
	arrivalSentence := fmt.Sprintf("You arrive from %s", back)
	content := desc.Content
	if !strings.Contains(content, arrivalSentence) {
		if content != "" {
			content = strings.TrimRight(content, " ") + " " + arrivalSentence + "."
		} else {
			content = arrivalSentence + "."
		}
	}

	stub := domain.NewLocation(desc.Name, terrain, now)
	stub.ID = deterministicID(env.IdempotencyKey, "stub", string(d))
	for _, key := range root.RealmKeys() {
		stub.AddTag(domain.RealmTag(key))
	}
	for _, pd := range terrain.DefaultDirections() {
		if pd == back {
			continue
		}
		stub.HintPending(pd, PendingSourceBatch, now)
	}
	if err := h.locations.Upsert(ctx, stub); err != nil {
		return 0, fmt.Errorf("persist stub %s of %s: %w", d, root.ID, err)
	}

	layer := domain.NewDescriptionLayer(stub.ID, domain.LayerBase, content, 0, now)
	layer.ID = deterministicID(env.IdempotencyKey, "layer", string(d))
	layer.Attributes["terrain"] = string(terrain)
	if err := h.layers.AddLayer(ctx, layer); err != nil {
		return 0, fmt.Errorf("persist base layer for stub %s: %w", stub.ID, err)
	}

	res, err := worldevent.Emit(worldevent.EmitInput{
		Type:  worldevent.TypeExitCreate,
		Actor: worldevent.ActorRef{Kind: worldevent.ActorSystem, ID: "worldgen"},
		Payload: worldevent.ExitCreatePayload{
			FromLocationID:   root.ID,
			ToLocationID:     stub.ID,
			Direction:        string(d),
			Reciprocal:       true,
			TravelDurationMs: travelMs,
		},
		CorrelationID:  env.CorrelationID,
		CausationID:    env.EventID,
		IdempotencyKey: deterministicID(env.IdempotencyKey, "exit", string(d)),
		ScopeKey:       root.ID,
	}, now)
	if err != nil {
		return 0, err
	}
	if err := h.publisher.Publish(ctx, res.Envelope, res.Props); err != nil {
		return 0, fmt.Errorf("publish exit create for %s: %w", stub.ID, err)
	}

	h.log.Info().
		Str("stub_location_id", stub.ID).
		Str("direction", string(d)).
		Str("terrain", string(terrain)).
		Msg("stub location created")
	return desc.CostUnits, nil
}

func (h *BatchHandler) trackFailed(ctx context.Context, env *worldevent.Envelope, rootID string, err error) {
	h.sink.Track(ctx, telemetry.AreaGenerationFailed, map[string]any{
		"root_location_id": rootID,
		"error":            err.Error(),
		"error_code":       domain.CodeOf(err),
		"correlation_id":   env.CorrelationID,
	})
}

// deterministicID derives a stable uuid from the batch idempotency key and
// a per-artifact qualifier.
func deterministicID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, ":"))).String()
}
