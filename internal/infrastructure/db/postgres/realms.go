package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/mosswell/world-service/internal/domain"
)

// RealmRepo stores realms. Membership lives on the location row as a
// realm:<key> tag, so WITHIN edges are tag writes, not join rows.
type RealmRepo struct {
	db *sql.DB
}

func NewRealmRepo(db *sql.DB) *RealmRepo { return &RealmRepo{db: db} }

func (r *RealmRepo) Get(ctx context.Context, key string) (*domain.Realm, error) {
	row := r.db.QueryRowContext(ctx, getRealmSQL, key)
	realm, err := scanRealm(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("realm not found: " + key)
	}
	if err != nil {
		return nil, err
	}
	return realm, nil
}

func (r *RealmRepo) Upsert(ctx context.Context, realm *domain.Realm) error {
	if realm == nil || realm.Key == "" {
		return domain.ErrValidation("realm key is required")
	}
	_, err := r.db.ExecContext(ctx, upsertRealmSQL,
		realm.Key, realm.Name, string(realm.RealmType), realm.Scope,
	)
	return err
}

// AddWithinEdge records that a location belongs to a realm. Both sides must
// exist; membership lives on the location as a realm:<key> tag.
func (r *RealmRepo) AddWithinEdge(ctx context.Context, locationID, realmKey string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, realmExistsSQL, realmKey).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound("realm not found: " + realmKey)
	}

	res, err := r.db.ExecContext(ctx, addLocationTagSQL,
		locationID, domain.RealmTag(realmKey), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// No row changed: either the location is already a member or it does
	// not exist at all.
	if err := r.db.QueryRowContext(ctx, locationExistsSQL, locationID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrLocationNotFound(locationID)
	}
	return nil
}

// ListRealmsFor resolves the realms a location belongs to, in tag order.
// Keys without a stored realm are skipped rather than failing the lookup.
func (r *RealmRepo) ListRealmsFor(ctx context.Context, locationID string) ([]*domain.Realm, error) {
	var tags pq.StringArray
	err := r.db.QueryRowContext(ctx, getLocationTagsSQL, locationID).Scan(&tags)
	if err == sql.ErrNoRows {
		return nil, domain.ErrLocationNotFound(locationID)
	}
	if err != nil {
		return nil, err
	}

	keys := (&domain.Location{Tags: tags}).RealmKeys()
	if len(keys) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, listRealmsByKeysSQL, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byKey := map[string]*domain.Realm{}
	for rows.Next() {
		realm, err := scanRealm(rows)
		if err != nil {
			return nil, err
		}
		byKey[realm.Key] = realm
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*domain.Realm
	for _, key := range keys {
		if realm, ok := byKey[key]; ok {
			out = append(out, realm)
		}
	}
	return out, nil
}

func scanRealm(row rowScanner) (*domain.Realm, error) {
	var realm domain.Realm
	var realmType string
	if err := row.Scan(&realm.Key, &realm.Name, &realmType, &realm.Scope); err != nil {
		return nil, err
	}
	realm.RealmType = domain.RealmType(realmType)
	return &realm, nil
}
