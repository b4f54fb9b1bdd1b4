package player

import (
	"context"
	"time"

	"github.com/mosswell/world-service/internal/application/worldgen"
	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
)

type Clock interface {
	Now() time.Time
}

// LocationReader resolves locations. Moves read the graph; they never
// write it.
type LocationReader interface {
	Get(ctx context.Context, id string) (*domain.Location, error)
}

type LayerReader interface {
	GetActiveLayer(ctx context.Context, locationID string, t domain.LayerType, expansionDepth int) (*domain.DescriptionLayer, error)
}

type RealmLister interface {
	ListRealmsFor(ctx context.Context, locationID string) ([]*domain.Realm, error)
}

// AreaGenerator requests a generation batch when a move runs into a
// pending frontier direction.
type AreaGenerator interface {
	RequestAreaGeneration(ctx context.Context, req worldgen.Request) (worldgen.Receipt, error)
}

type Publisher interface {
	Publish(ctx context.Context, env *worldevent.Envelope, props worldevent.MessageProperties) error
}
