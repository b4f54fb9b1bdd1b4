package redis

import (
	"context"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/application/player"
	"github.com/mosswell/world-service/internal/application/worldgen"
	"github.com/mosswell/world-service/internal/domain"
)

// CachingLocationRepo decorates a location store with view invalidation:
// every write drops the cached look views of the locations it touched.
// Reads pass through untouched.
type CachingLocationRepo struct {
	worldgen.LocationRepository
	cache *Client
	log   zerolog.Logger
}

func NewCachingLocationRepo(inner worldgen.LocationRepository, cache *Client) *CachingLocationRepo {
	return &CachingLocationRepo{
		LocationRepository: inner,
		cache:              cache,
		log:                zlog.With().Str("component", "view-cache").Logger(),
	}
}

func (r *CachingLocationRepo) Upsert(ctx context.Context, loc *domain.Location) error {
	if err := r.LocationRepository.Upsert(ctx, loc); err != nil {
		return err
	}
	dropViews(ctx, r.cache, r.log, loc.ID)
	return nil
}

func (r *CachingLocationRepo) EnsureExitBidirectional(ctx context.Context, fromID string, dir domain.Direction, toID string, travelMs int64) (int, error) {
	changed, err := r.LocationRepository.EnsureExitBidirectional(ctx, fromID, dir, toID, travelMs)
	if err != nil {
		return changed, err
	}
	if changed > 0 {
		dropViews(ctx, r.cache, r.log, fromID, toID)
	}
	return changed, nil
}

// CachingLayerRepo decorates a layer store the same way: a new or rewritten
// layer drops its location's cached view.
type CachingLayerRepo struct {
	worldgen.LayerRepository
	cache *Client
	log   zerolog.Logger
}

func NewCachingLayerRepo(inner worldgen.LayerRepository, cache *Client) *CachingLayerRepo {
	return &CachingLayerRepo{
		LayerRepository: inner,
		cache:           cache,
		log:             zlog.With().Str("component", "view-cache").Logger(),
	}
}

func (r *CachingLayerRepo) AddLayer(ctx context.Context, layer *domain.DescriptionLayer) error {
	if err := r.LayerRepository.AddLayer(ctx, layer); err != nil {
		return err
	}
	dropViews(ctx, r.cache, r.log, layer.LocationID)
	return nil
}

// dropViews is best effort: a failed delete leaves a view that the TTL
// still bounds, so the write must not fail over it.
func dropViews(ctx context.Context, cache *Client, log zerolog.Logger, locationIDs ...string) {
	keys := make([]string, len(locationIDs))
	for i, id := range locationIDs {
		keys[i] = player.ViewCacheKey(id)
	}
	if err := cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("view invalidation failed")
	}
}
