package memory

import (
	"context"

	"github.com/mosswell/world-service/internal/domain"
)

// LayerRepo implements the description-layer store over the shared Store.
type LayerRepo struct {
	s *Store
}

func (r *LayerRepo) AddLayer(ctx context.Context, layer *domain.DescriptionLayer) error {
	if layer == nil || layer.ID == "" {
		return domain.ErrValidation("layer id is required")
	}
	if layer.LocationID == "" {
		return domain.ErrValidation("layer locationId is required")
	}
	if !layer.LayerType.Valid() {
		return domain.ErrValidationMeta("invalid layer type", map[string]string{"layer_type": string(layer.LayerType)})
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := cloneLayer(layer)
	existing := r.s.layers[layer.LocationID]
	for i, cur := range existing {
		if cur.ID == layer.ID {
			existing[i] = stored
			return nil
		}
	}
	r.s.layers[layer.LocationID] = append(existing, stored)
	return nil
}

// GetActiveLayer picks the rendering layer for a location and type:
// highest priority, newest authoredAt on ties. expansionDepth is accepted
// for composer policies and does not affect selection.
func (r *LayerRepo) GetActiveLayer(ctx context.Context, locationID string, t domain.LayerType, expansionDepth int) (*domain.DescriptionLayer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *domain.DescriptionLayer
	for _, layer := range r.s.layers[locationID] {
		if layer.LayerType != t {
			continue
		}
		if layer.Supersedes(best) {
			best = layer
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound("no active " + string(t) + " layer for " + locationID)
	}
	return cloneLayer(best), nil
}
