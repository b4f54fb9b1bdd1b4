// Package memory backs every repository port with mutex-guarded maps. It
// serves dev mode without a database and the application test suites. The
// semantics mirror the postgres implementations: callers get value copies,
// never aliases into the store.
package memory

import (
	"sync"
	"time"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/domain"
)

// ProcessedEvent is one row of the durable dedupe registry.
type ProcessedEvent struct {
	IdempotencyKey string
	EventID        string
	ProcessedUtc   time.Time
}

// Store owns all in-memory world state under one lock, so cross-entity
// operations like bidirectional exit writes and realm membership edges
// stay atomic.
type Store struct {
	mu          sync.RWMutex
	locations   map[string]*domain.Location
	layers      map[string][]*domain.DescriptionLayer
	realms      map[string]*domain.Realm
	processed   map[string]ProcessedEvent
	deadLetters map[string]dispatch.DeadLetterRecord
}

func NewStore() *Store {
	return &Store{
		locations:   map[string]*domain.Location{},
		layers:      map[string][]*domain.DescriptionLayer{},
		realms:      map[string]*domain.Realm{},
		processed:   map[string]ProcessedEvent{},
		deadLetters: map[string]dispatch.DeadLetterRecord{},
	}
}

// Locations returns the location repository view of the store.
func (s *Store) Locations() *LocationRepo { return &LocationRepo{s: s} }

// Layers returns the description-layer repository view of the store.
func (s *Store) Layers() *LayerRepo { return &LayerRepo{s: s} }

// Realms returns the realm repository view of the store.
func (s *Store) Realms() *RealmRepo { return &RealmRepo{s: s} }

// ProcessedEvents returns the dedupe registry view of the store.
func (s *Store) ProcessedEvents() *ProcessedEventRepo { return &ProcessedEventRepo{s: s} }

// DeadLetters returns the dead-letter repository view of the store.
func (s *Store) DeadLetters() *DeadLetterRepo { return &DeadLetterRepo{s: s} }

func cloneLocation(l *domain.Location) *domain.Location {
	if l == nil {
		return nil
	}
	out := *l
	out.Exits = append([]domain.Exit(nil), l.Exits...)
	out.Tags = append([]string(nil), l.Tags...)
	out.Pending = make(map[domain.Direction]domain.PendingHint, len(l.Pending))
	for d, h := range l.Pending {
		out.Pending[d] = h
	}
	return &out
}

func cloneLayer(l *domain.DescriptionLayer) *domain.DescriptionLayer {
	if l == nil {
		return nil
	}
	out := *l
	out.Attributes = make(map[string]string, len(l.Attributes))
	for k, v := range l.Attributes {
		out.Attributes[k] = v
	}
	return &out
}

func cloneRealm(r *domain.Realm) *domain.Realm {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

func cloneDeadLetter(rec dispatch.DeadLetterRecord) dispatch.DeadLetterRecord {
	rec.Body = append([]byte(nil), rec.Body...)
	return rec
}
