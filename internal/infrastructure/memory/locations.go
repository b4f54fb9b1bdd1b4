package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mosswell/world-service/internal/domain"
)

// LocationRepo implements the world-graph store over the shared Store.
type LocationRepo struct {
	s *Store
}

func (r *LocationRepo) Get(ctx context.Context, id string) (*domain.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	loc, ok := r.s.locations[id]
	if !ok {
		return nil, domain.ErrLocationNotFound(id)
	}
	return cloneLocation(loc), nil
}

func (r *LocationRepo) Upsert(ctx context.Context, loc *domain.Location) error {
	if loc == nil || loc.ID == "" {
		return domain.ErrValidation("location id is required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := cloneLocation(loc)
	if prev, ok := r.s.locations[loc.ID]; ok && stored.CreatedAt.IsZero() {
		stored.CreatedAt = prev.CreatedAt
	}
	r.s.locations[loc.ID] = stored
	return nil
}

// ListAll returns every location ordered by id. Reserved for small worlds:
// seeding checks and test assertions, never the hot path.
func (r *LocationRepo) ListAll(ctx context.Context) ([]*domain.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Location, 0, len(r.s.locations))
	for _, loc := range r.s.locations {
		out = append(out, cloneLocation(loc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EnsureExitBidirectional materializes from→to in dir plus the reciprocal,
// atomically for the pair. Occupied directions keep their target; matching
// sides pick up a new travel duration when travelMs > 0. Returns the number
// of directed sides that changed.
func (r *LocationRepo) EnsureExitBidirectional(ctx context.Context, fromID string, dir domain.Direction, toID string, travelMs int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	from, ok := r.s.locations[fromID]
	if !ok {
		return 0, domain.ErrLocationNotFound(fromID)
	}
	to, ok := r.s.locations[toID]
	if !ok {
		return 0, domain.ErrLocationNotFound(toID)
	}

	now := time.Now().UTC()
	changed := 0
	if from.SetExit(domain.Exit{Direction: dir, ToLocationID: toID, TravelDurationMs: travelMs}) {
		from.Version++
		from.UpdatedAt = now
		changed++
	}
	if to.SetExit(domain.Exit{Direction: dir.Opposite(), ToLocationID: fromID, TravelDurationMs: travelMs}) {
		to.Version++
		to.UpdatedAt = now
		changed++
	}
	return changed, nil
}

// SetExitTravelDuration rewrites the travel duration of an existing exit
// and of its reciprocal when the far side points back, keeping the pair
// equal. Fails when the near side has no exit in dir.
func (r *LocationRepo) SetExitTravelDuration(ctx context.Context, locationID string, dir domain.Direction, travelMs int64) error {
	if travelMs <= 0 {
		return domain.ErrValidation("travelMs must be positive")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	loc, ok := r.s.locations[locationID]
	if !ok {
		return domain.ErrLocationNotFound(locationID)
	}
	exit, ok := loc.ExitIn(dir)
	if !ok {
		return domain.ErrNotFound("no exit " + string(dir) + " from " + locationID)
	}

	now := time.Now().UTC()
	if loc.SetExit(domain.Exit{Direction: dir, ToLocationID: exit.ToLocationID, TravelDurationMs: travelMs}) {
		loc.Version++
		loc.UpdatedAt = now
	}
	if far, ok := r.s.locations[exit.ToLocationID]; ok {
		back, ok := far.ExitIn(dir.Opposite())
		if ok && back.ToLocationID == locationID {
			if far.SetExit(domain.Exit{Direction: dir.Opposite(), ToLocationID: locationID, TravelDurationMs: travelMs}) {
				far.Version++
				far.UpdatedAt = now
			}
		}
	}
	return nil
}
