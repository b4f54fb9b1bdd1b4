package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/mosswell/world-service/internal/domain"
)

// LocationRepo stores the world graph: one locations row per node plus one
// location_exits row per directed edge, kept in insertion order by seq.
type LocationRepo struct {
	db *sql.DB
}

func NewLocationRepo(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

func (r *LocationRepo) Get(ctx context.Context, id string) (*domain.Location, error) {
	loc, err := scanLocation(r.db.QueryRowContext(ctx, getLocationSQL, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrLocationNotFound(id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, getExitsSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.Exit
		var dir string
		if err := rows.Scan(&dir, &e.ToLocationID, &e.TravelDurationMs); err != nil {
			return nil, err
		}
		e.Direction = domain.Direction(dir)
		loc.Exits = append(loc.Exits, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return loc, nil
}

// Upsert writes the full location row and replaces its exit rows in one
// transaction. created_at survives updates; callers own the version.
func (r *LocationRepo) Upsert(ctx context.Context, loc *domain.Location) error {
	if loc == nil || loc.ID == "" {
		return domain.ErrValidation("location id is required")
	}
	pending, err := marshalPending(loc.Pending)
	if err != nil {
		return err
	}
	tags := loc.Tags
	if tags == nil {
		tags = []string{}
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertLocationSQL,
			loc.ID, loc.Name, string(loc.Terrain), pq.Array(tags), pending,
			loc.Version, loc.CreatedAt, loc.UpdatedAt,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteExitsSQL, loc.ID); err != nil {
			return err
		}
		for _, e := range loc.Exits {
			if _, err := tx.ExecContext(ctx, insertExitSQL,
				loc.ID, string(e.Direction), e.ToLocationID, e.TravelDurationMs,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count reports the number of locations. Seeding uses it to decide whether
// the world is virgin.
func (r *LocationRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countLocationsSQL).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListAll returns every location ordered by id, exits loaded. Reserved for
// small worlds: seeding checks and test assertions, never the hot path.
func (r *LocationRepo) ListAll(ctx context.Context) ([]*domain.Location, error) {
	rows, err := r.db.QueryContext(ctx, listLocationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Location
	byID := map[string]*domain.Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
		byID[loc.ID] = loc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	exitRows, err := r.db.QueryContext(ctx, listAllExitsSQL)
	if err != nil {
		return nil, err
	}
	defer exitRows.Close()
	for exitRows.Next() {
		var locID, dir string
		var e domain.Exit
		if err := exitRows.Scan(&locID, &dir, &e.ToLocationID, &e.TravelDurationMs); err != nil {
			return nil, err
		}
		e.Direction = domain.Direction(dir)
		if loc, ok := byID[locID]; ok {
			loc.Exits = append(loc.Exits, e)
		}
	}
	if err := exitRows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureExitBidirectional materializes from→to in dir plus the reciprocal,
// atomically for the pair. Occupied directions keep their target; matching
// sides pick up a new travel duration when travelMs > 0. Returns the number
// of directed sides that changed.
func (r *LocationRepo) EnsureExitBidirectional(ctx context.Context, fromID string, dir domain.Direction, toID string, travelMs int64) (int, error) {
	changed := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockLocations(ctx, tx, fromID, toID); err != nil {
			return err
		}
		now := time.Now().UTC()
		n, err := ensureExitSide(ctx, tx, fromID, dir, toID, travelMs, now)
		if err != nil {
			return err
		}
		changed += n
		n, err = ensureExitSide(ctx, tx, toID, dir.Opposite(), fromID, travelMs, now)
		if err != nil {
			return err
		}
		changed += n
		return nil
	})
	if err != nil {
		return 0, err
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

	// Peek at the far side outside any lock so both rows can be locked in
	// id order below.
	var farID string
	var cur int64
	err := r.db.QueryRowContext(ctx, `
SELECT to_location_id, travel_duration_ms
FROM location_exits WHERE location_id = $1 AND direction = $2
`, locationID, string(dir)).Scan(&farID, &cur)
	if err == sql.ErrNoRows {
		if exists, eerr := r.locationExists(ctx, locationID); eerr != nil {
			return eerr
		} else if !exists {
			return domain.ErrLocationNotFound(locationID)
		}
		return domain.ErrNotFound("no exit " + string(dir) + " from " + locationID)
	}
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockLocations(ctx, tx, locationID, farID); err != nil {
			return err
		}
		now := time.Now().UTC()

		var target string
		err := tx.QueryRowContext(ctx, getExitForUpdateSQL, locationID, string(dir)).Scan(&target, &cur)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound("no exit " + string(dir) + " from " + locationID)
		}
		if err != nil {
			return err
		}
		if cur != travelMs {
			if _, err := tx.ExecContext(ctx, updateExitTravelSQL, locationID, string(dir), travelMs); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, bumpLocationVersionSQL, locationID, now); err != nil {
				return err
			}
		}

		var backTravel int64
		var backTarget string
		err = tx.QueryRowContext(ctx, getExitForUpdateSQL, target, string(dir.Opposite())).Scan(&backTarget, &backTravel)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if backTarget == locationID && backTravel != travelMs {
			if _, err := tx.ExecContext(ctx, updateExitTravelSQL, target, string(dir.Opposite()), travelMs); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, bumpLocationVersionSQL, target, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *LocationRepo) locationExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, locationExistsSQL, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ensureExitSide upserts one directed edge under the row locks taken by the
// caller. A fresh direction inserts the exit and clears the pending hint; a
// matching target refreshes a differing travel duration; a foreign target is
// a first-wins no-op. Returns 1 when the side changed.
func ensureExitSide(ctx context.Context, tx *sql.Tx, locID string, dir domain.Direction, toID string, travelMs int64, now time.Time) (int, error) {
	var target string
	var cur int64
	err := tx.QueryRowContext(ctx, getExitForUpdateSQL, locID, string(dir)).Scan(&target, &cur)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, insertExitSQL, locID, string(dir), toID, travelMs); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, clearPendingSQL, locID, string(dir), now); err != nil {
			return 0, err
		}
		return 1, nil
	case err != nil:
		return 0, err
	case target != toID:
		// Direction already occupied by another target; first wins.
		return 0, nil
	case travelMs != 0 && cur != travelMs:
		if _, err := tx.ExecContext(ctx, updateExitTravelSQL, locID, string(dir), travelMs); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, bumpLocationVersionSQL, locID, now); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		return 0, nil
	}
}

// lockLocations takes FOR UPDATE locks on both rows in id order so
// concurrent pair writes cannot deadlock. Missing rows surface as not-found.
func lockLocations(ctx context.Context, tx *sql.Tx, a, b string) error {
	ids := []string{a, b}
	if b < a {
		ids = []string{b, a}
	}
	if ids[0] == ids[1] {
		ids = ids[:1]
	}
	for _, id := range ids {
		var got string
		err := tx.QueryRowContext(ctx, lockLocationSQL, id).Scan(&got)
		if err == sql.ErrNoRows {
			return domain.ErrLocationNotFound(id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*domain.Location, error) {
	var loc domain.Location
	var terrain string
	var tags pq.StringArray
	var pending []byte
	if err := row.Scan(
		&loc.ID, &loc.Name, &terrain, &tags, &pending,
		&loc.Version, &loc.CreatedAt, &loc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	loc.Terrain = domain.Terrain(terrain)
	loc.Tags = []string(tags)
	hints, err := unmarshalPending(pending)
	if err != nil {
		return nil, err
	}
	loc.Pending = hints
	return &loc, nil
}

func marshalPending(hints map[domain.Direction]domain.PendingHint) ([]byte, error) {
	if len(hints) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(hints)
}

func unmarshalPending(raw []byte) (map[domain.Direction]domain.PendingHint, error) {
	hints := map[domain.Direction]domain.PendingHint{}
	if len(raw) == 0 {
		return hints, nil
	}
	if err := json.Unmarshal(raw, &hints); err != nil {
		return nil, err
	}
	return hints, nil
}
