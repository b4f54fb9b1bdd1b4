// Package player implements the player-facing world operations: look
// (compose a location view) and move (edge-validated traversal that emits
// the audit event and, on a pending frontier, triggers generation).
package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/application/worldgen"
	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
	"github.com/mosswell/world-service/internal/telemetry"
)

// View is everything a player sees standing in a location. Base and
// Ambient may be nil when no layer has been written yet.
type View struct {
	Location *domain.Location         `json:"location"`
	Base     *domain.DescriptionLayer `json:"base,omitempty"`
	Ambient  *domain.DescriptionLayer `json:"ambient,omitempty"`
	Realms   []*domain.Realm          `json:"realms,omitempty"`
}

type MoveInput struct {
	PlayerID       string
	FromLocationID string
	Direction      string
	CorrelationID  string
}

// MoveResult is the successful outcome of a move. The core tracks no
// player positions; callers own what they do with the destination.
type MoveResult struct {
	Destination      *domain.Location
	Direction        domain.Direction
	TravelDurationMs int64
	EventID          string
}

type Service struct {
	locations LocationReader
	layers    LayerReader
	realms    RealmLister
	gen       AreaGenerator
	publisher Publisher
	sink      telemetry.Sink
	clock     Clock
	cache     Cache
	ttlView   time.Duration
	log       zerolog.Logger
}

func NewService(locations LocationReader, layers LayerReader, realms RealmLister, gen AreaGenerator, publisher Publisher, sink telemetry.Sink, clock Clock, cache Cache, ttlView time.Duration) *Service {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if ttlView == 0 {
		ttlView = DefaultViewTTL
	}
	return &Service{
		locations: locations,
		layers:    layers,
		realms:    realms,
		gen:       gen,
		publisher: publisher,
		sink:      sink,
		clock:     clock,
		cache:     cache,
		ttlView:   ttlView,
		log:       zlog.With().Str("component", "player").Logger(),
	}
}

// Look composes the view of one location: the location itself, its active
// base and ambient layers, and the realms it belongs to. Missing layers
// are normal for young stubs and come back nil.
func (s *Service) Look(ctx context.Context, locationID string) (*View, error) {
	if strings.TrimSpace(locationID) == "" {
		return nil, domain.ErrValidation("locationId is required")
	}

	key := ViewCacheKey(locationID)
	if s.cache != nil {
		var cached View
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		} else if found {
			return &cached, nil
		}
	}

	loc, err := s.locations.Get(ctx, locationID)
	if err != nil {
		return nil, err
	}

	view := &View{Location: loc}
	if view.Base, err = s.activeLayer(ctx, loc.ID, domain.LayerBase); err != nil {
		return nil, err
	}
	if view.Ambient, err = s.activeLayer(ctx, loc.ID, domain.LayerAmbient); err != nil {
		return nil, err
	}
	if view.Realms, err = s.realms.ListRealmsFor(ctx, loc.ID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view, s.ttlView); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return view, nil
}

func (s *Service) activeLayer(ctx context.Context, locationID string, t domain.LayerType) (*domain.DescriptionLayer, error) {
	layer, err := s.layers.GetActiveLayer(ctx, locationID, t, 0)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return layer, nil
}

// Move validates a traversal edge-first and in order: player identity,
// direction, origin, then the exit itself. A pending hint with no hard
// exit triggers a generation batch and fails with
// ExitGenerationRequested so the client can retry once the batch lands.
func (s *Service) Move(ctx context.Context, in MoveInput) (*MoveResult, error) {
	if strings.TrimSpace(in.PlayerID) == "" {
		return nil, moveErr(CodeMissingPlayerID, "playerId is required", nil)
	}
	if _, err := uuid.Parse(in.PlayerID); err != nil {
		return nil, moveErr(CodeInvalidPlayerID, "playerId must be a uuid", map[string]string{"playerId": in.PlayerID})
	}

	dir, err := domain.ParseDirection(in.Direction)
	if err != nil {
		var amb *domain.ErrAmbiguousDirection
		if errors.As(err, &amb) {
			return nil, moveErr(CodeAmbiguousDirection, amb.Error(), map[string]string{"direction": in.Direction})
		}
		return nil, moveErr(CodeInvalidDirection, "unknown direction", map[string]string{"direction": in.Direction})
	}

	from, err := s.locations.Get(ctx, in.FromLocationID)
	if err != nil {
		if isNotFound(err) {
			return nil, moveErr(CodeFromNotFound, "origin location not found", map[string]string{"fromLocationId": in.FromLocationID})
		}
		return nil, s.failed("load origin", err)
	}

	exit, ok := from.ExitIn(dir)
	if !ok {
		if from.HasPending(dir) {
			return nil, s.requestFrontier(ctx, in, from, dir)
		}
		return nil, moveErr(CodeNoExit, "no exit that way", map[string]string{"direction": string(dir)})
	}

	dest, err := s.locations.Get(ctx, exit.ToLocationID)
	if err != nil {
		if isNotFound(err) {
			// The batch that promised this stub hasn't landed yet.
			return nil, &domain.AppError{
				Code:      CodeMoveFailed,
				Message:   "destination is not materialized yet",
				Meta:      map[string]string{"toLocationId": exit.ToLocationID},
				Retryable: true,
			}
		}
		return nil, s.failed("load destination", err)
	}

	travelMs := exit.TravelDurationMs
	if travelMs <= 0 {
		travelMs = worldgen.DefaultTravelDurationMs
	}

	res, err := worldevent.Emit(worldevent.EmitInput{
		Type:  worldevent.TypePlayerMove,
		Actor: worldevent.ActorRef{Kind: worldevent.ActorPlayer, ID: in.PlayerID},
		Payload: worldevent.PlayerMovePayload{
			FromLocationID:   from.ID,
			ToLocationID:     dest.ID,
			Direction:        string(dir),
			TravelDurationMs: travelMs,
		},
		CorrelationID:  in.CorrelationID,
		IdempotencyKey: "move:" + uuid.NewString(),
		ScopeKey:       from.ID,
	}, s.clock.Now())
	if err != nil {
		return nil, s.failed("emit move", err)
	}
	if err := s.publisher.Publish(ctx, res.Envelope, res.Props); err != nil {
		return nil, s.failed("publish move", err)
	}

	s.log.Info().
		Str("player_id", in.PlayerID).
		Str("from_location_id", from.ID).
		Str("to_location_id", dest.ID).
		Str("direction", string(dir)).
		Int64("travel_duration_ms", travelMs).
		Msg("player moved")

	return &MoveResult{
		Destination:      dest,
		Direction:        dir,
		TravelDurationMs: travelMs,
		EventID:          res.Envelope.EventID,
	}, nil
}

// requestFrontier asks the orchestrator to grow the world where the
// player just pushed. The idempotency key is deterministic per frontier
// edge, so simultaneous pushes collapse into one batch downstream.
func (s *Service) requestFrontier(ctx context.Context, in MoveInput, from *domain.Location, dir domain.Direction) error {
	receipt, err := s.gen.RequestAreaGeneration(ctx, worldgen.Request{
		AnchorLocationID: from.ID,
		IdempotencyKey:   fmt.Sprintf("worldgen:%s:%s", from.ID, dir),
		RealmHints:       from.RealmKeys(),
		CorrelationID:    in.CorrelationID,
		Actor:            worldevent.ActorRef{Kind: worldevent.ActorPlayer, ID: in.PlayerID},
	})
	if err != nil {
		return s.failed("request generation", err)
	}
	s.log.Info().
		Str("from_location_id", from.ID).
		Str("direction", string(dir)).
		Str("correlation_id", receipt.CorrelationID).
		Msg("frontier push, generation requested")
	return moveErr(CodeExitGenerationRequested, "exit is being generated, retry shortly", map[string]string{
		"direction":     string(dir),
		"correlationId": receipt.CorrelationID,
		"eventId":       receipt.EventID,
	})
}

func (s *Service) failed(op string, err error) error {
	return &domain.AppError{
		Code:      CodeMoveFailed,
		Message:   op + " failed",
		Meta:      map[string]string{"cause": err.Error()},
		Retryable: domain.IsRetryable(err),
	}
}

func isNotFound(err error) bool {
	var app *domain.AppError
	return errors.As(err, &app) && app.Code == domain.CodeNotFound
}
