package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mosswell/world-service/internal/domain"
)

// LayerRepo stores description layers. Replays upsert by id, so a redelivered
// authoring event rewrites its own layer instead of stacking a twin.
type LayerRepo struct {
	db *sql.DB
}

func NewLayerRepo(db *sql.DB) *LayerRepo { return &LayerRepo{db: db} }

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
	attrs, err := marshalAttributes(layer.Attributes)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, addLayerSQL,
		layer.ID, layer.LocationID, string(layer.LayerType),
		layer.Content, layer.Priority, layer.AuthoredAt, attrs,
	)
	return err
}

// GetActiveLayer picks the rendering layer for a location and type:
// highest priority, newest authoredAt on ties. expansionDepth is accepted
// for composer policies and does not affect selection.
func (r *LayerRepo) GetActiveLayer(ctx context.Context, locationID string, t domain.LayerType, expansionDepth int) (*domain.DescriptionLayer, error) {
	row := r.db.QueryRowContext(ctx, getActiveLayerSQL, locationID, string(t))

	var layer domain.DescriptionLayer
	var layerType string
	var attrs []byte
	err := row.Scan(
		&layer.ID, &layer.LocationID, &layerType,
		&layer.Content, &layer.Priority, &layer.AuthoredAt, &attrs,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("no active " + string(t) + " layer for " + locationID)
	}
	if err != nil {
		return nil, err
	}
	layer.LayerType = domain.LayerType(layerType)
	layer.Attributes, err = unmarshalAttributes(attrs)
	if err != nil {
		return nil, err
	}
	return &layer, nil
}

func marshalAttributes(attrs map[string]string) ([]byte, error) {
	if len(attrs) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(attrs)
}

func unmarshalAttributes(raw []byte) (map[string]string, error) {
	attrs := map[string]string{}
	if len(raw) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}
