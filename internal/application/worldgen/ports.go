package worldgen

import (
	"context"
	"time"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
)

type Clock interface {
	Now() time.Time
}

// LocationRepository is the world graph store.
type LocationRepository interface {
	Get(ctx context.Context, id string) (*domain.Location, error)
	Upsert(ctx context.Context, loc *domain.Location) error

	// EnsureExitBidirectional materializes the exit from→to in dir and its
	// reciprocal, atomically for the pair. Existing exits in a direction
	// keep their target; same-target sides update travel duration when
	// travelMs > 0. Returns how many directed sides changed.
	EnsureExitBidirectional(ctx context.Context, fromID string, dir domain.Direction, toID string, travelMs int64) (int, error)
}

// LayerRepository stores description layers.
type LayerRepository interface {
	AddLayer(ctx context.Context, layer *domain.DescriptionLayer) error

	// GetActiveLayer returns the rendering layer for a location and type:
	// highest priority, newest authoredAt on ties. expansionDepth is a
	// composer hint reserved for layered render policies.
	GetActiveLayer(ctx context.Context, locationID string, t domain.LayerType, expansionDepth int) (*domain.DescriptionLayer, error)
}

type RealmRepository interface {
	Get(ctx context.Context, key string) (*domain.Realm, error)
	Upsert(ctx context.Context, realm *domain.Realm) error
}

// Publisher puts envelopes on the event stream.
type Publisher interface {
	Publish(ctx context.Context, env *worldevent.Envelope, props worldevent.MessageProperties) error
}

// StubRequest asks the description generator for one unexplored location.
type StubRequest struct {
	Terrain     domain.Terrain
	ArrivedFrom domain.Direction
	RealmName   string
}

// StubDescription is the generator's answer. CostUnits reports whatever
// budget the backing generator spent; the template generator spends none.
type StubDescription struct {
	Name      string
	Content   string
	CostUnits float64
}

// Generator produces stub names and base descriptions. Implementations
// range from deterministic templates to model-backed services; callers
// treat it as opaque and enforce their own content contracts on top.
type Generator interface {
	GenerateStub(ctx context.Context, req StubRequest) (StubDescription, error)
}
