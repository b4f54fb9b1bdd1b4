package memory

import (
	"context"
	"time"

	"github.com/mosswell/world-service/internal/domain"
)

// RealmRepo implements the realm store over the shared Store.
type RealmRepo struct {
	s *Store
}

func (r *RealmRepo) Get(ctx context.Context, key string) (*domain.Realm, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	realm, ok := r.s.realms[key]
	if !ok {
		return nil, domain.ErrNotFound("realm not found: " + key)
	}
	return cloneRealm(realm), nil
}

func (r *RealmRepo) Upsert(ctx context.Context, realm *domain.Realm) error {
	if realm == nil || realm.Key == "" {
		return domain.ErrValidation("realm key is required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.realms[realm.Key] = cloneRealm(realm)
	return nil
}

// AddWithinEdge records that a location belongs to a realm. Both sides must
// exist; membership lives on the location as a realm:<key> tag.
func (r *RealmRepo) AddWithinEdge(ctx context.Context, locationID, realmKey string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.realms[realmKey]; !ok {
		return domain.ErrNotFound("realm not found: " + realmKey)
	}
	loc, ok := r.s.locations[locationID]
	if !ok {
		return domain.ErrLocationNotFound(locationID)
	}
	tag := domain.RealmTag(realmKey)
	if loc.HasTag(tag) {
		return nil
	}
	loc.AddTag(tag)
	loc.Version++
	loc.UpdatedAt = time.Now().UTC()
	return nil
}

// ListRealmsFor resolves the realms a location belongs to, in tag order.
// Keys without a stored realm are skipped rather than failing the lookup.
func (r *RealmRepo) ListRealmsFor(ctx context.Context, locationID string) ([]*domain.Realm, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	loc, ok := r.s.locations[locationID]
	if !ok {
		return nil, domain.ErrLocationNotFound(locationID)
	}
	var out []*domain.Realm
	for _, key := range loc.RealmKeys() {
		if realm, ok := r.s.realms[key]; ok {
			out = append(out, cloneRealm(realm))
		}
	}
	return out, nil
}
