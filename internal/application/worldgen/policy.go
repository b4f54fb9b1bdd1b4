package worldgen

import (
	"context"

	"github.com/mosswell/world-service/internal/domain"
)

const (
	// DefaultTravelDurationMs is the edge weight of an exit that doesn't
	// state its own, and the unit the fuzzy-reconnect budget and
	// displacement scaling are expressed in. One minute of travel.
	DefaultTravelDurationMs int64 = 60000

	// MaxBudgetLocations caps how many locations one batch may create.
	MaxBudgetLocations = 8

	// DefaultBatchSize is used when a request doesn't say.
	DefaultBatchSize = 4
)

type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeUrban      Mode = "urban"
	ModeWilderness Mode = "wilderness"
)

func (m Mode) Valid() bool {
	return m == ModeAuto || m == ModeUrban || m == ModeWilderness
}

// ClampBatchSize bounds a requested batch size to [1, MaxBudgetLocations]
// and reports whether it had to adjust. Zero or negative means "default".
func ClampBatchSize(requested int) (int, bool) {
	switch {
	case requested <= 0:
		return DefaultBatchSize, false
	case requested > MaxBudgetLocations:
		return MaxBudgetLocations, true
	default:
		return requested, false
	}
}

// ResolveTerrain picks the terrain for a batch. Explicit terrain wins,
// then the mode policy, then the anchor's own terrain, then inference
// from the anchor's realm name, then the open plain.
func ResolveTerrain(ctx context.Context, explicit domain.Terrain, mode Mode, anchor *domain.Location, realms RealmRepository) domain.Terrain {
	if explicit != "" {
		return explicit
	}
	switch mode {
	case ModeUrban:
		return domain.TerrainNarrowCorridor
	case ModeWilderness:
		return domain.TerrainOpenPlain
	}
	if anchor.Terrain != "" {
		return anchor.Terrain
	}
	if realms != nil {
		for _, key := range anchor.RealmKeys() {
			realm, err := realms.Get(ctx, key)
			if err != nil {
				continue
			}
			if t, ok := domain.InferTerrainFromRealmName(realm.Name); ok {
				return t
			}
		}
	}
	return domain.TerrainOpenPlain
}

// CandidateDirections computes the directions a batch will try to resolve:
// the terrain's defaults minus the way the traveler came in, truncated to
// the batch size, order preserved.
func CandidateDirections(terrain domain.Terrain, arrival domain.Direction, batchSize int) []domain.Direction {
	var out []domain.Direction
	for _, d := range terrain.DefaultDirections() {
		if arrival != "" && d == arrival {
			continue
		}
		out = append(out, d)
		if len(out) == batchSize {
			break
		}
	}
	return out
}
