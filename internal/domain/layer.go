package domain

import (
	"time"

	"github.com/google/uuid"
)

type LayerType string

const (
	LayerBase    LayerType = "base"
	LayerAmbient LayerType = "ambient"
	LayerDynamic LayerType = "dynamic"
)

func (t LayerType) Valid() bool {
	return t == LayerBase || t == LayerAmbient || t == LayerDynamic
}

// DescriptionLayer is one voice in a location's composed description.
// The composer renders, per layer type, the highest-priority layer,
// newest authored first on ties.
type DescriptionLayer struct {
	ID         string
	LocationID string
	LayerType  LayerType
	Content    string
	Priority   int
	AuthoredAt time.Time
	Attributes map[string]string
}

func NewDescriptionLayer(locationID string, t LayerType, content string, priority int, now time.Time) *DescriptionLayer {
	return &DescriptionLayer{
		ID:         uuid.NewString(),
		LocationID: locationID,
		LayerType:  t,
		Content:    content,
		Priority:   priority,
		AuthoredAt: now.UTC(),
		Attributes: map[string]string{},
	}
}

// Supersedes reports whether l wins over other at render time.
func (l *DescriptionLayer) Supersedes(other *DescriptionLayer) bool {
	if other == nil {
		return true
	}
	if l.Priority != other.Priority {
		return l.Priority > other.Priority
	}
	return l.AuthoredAt.After(other.AuthoredAt)
}
