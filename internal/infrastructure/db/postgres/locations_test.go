package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/mosswell/world-service/internal/domain"
)

func TestLocationRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewLocationRepo(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("success_mapping", func(t *testing.T) {
		locRows := sqlmock.NewRows([]string{
			"id", "name", "terrain", "tags", "pending", "version", "created_at", "updated_at",
		}).AddRow(
			"loc-1", "Mosswell Square", "open-plain",
			"{realm:mosswell,frontier:boundary}",
			[]byte(`{"west":{"Source":"area-generation","HintedAt":"2025-06-01T12:00:00Z"}}`),
			3, now, now,
		)
		mock.ExpectQuery("SELECT (.+) FROM locations WHERE id").
			WithArgs("loc-1").
			WillReturnRows(locRows)

		exitRows := sqlmock.NewRows([]string{"direction", "to_location_id", "travel_duration_ms"}).
			AddRow("north", "loc-2", int64(90000)).
			AddRow("east", "loc-3", int64(0))
		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("loc-1").
			WillReturnRows(exitRows)

		loc, err := repo.Get(context.Background(), "loc-1")
		assert.NoError(t, err)
		assert.Equal(t, "loc-1", loc.ID)
		assert.Equal(t, domain.TerrainOpenPlain, loc.Terrain)
		assert.Equal(t, []string{"realm:mosswell", "frontier:boundary"}, loc.Tags)
		assert.True(t, loc.HasPending(domain.West))
		assert.Equal(t, "area-generation", loc.Pending[domain.West].Source)

		assert.Len(t, loc.Exits, 2)
		assert.Equal(t, domain.North, loc.Exits[0].Direction)
		assert.Equal(t, int64(90000), loc.Exits[0].TravelDurationMs)
		assert.Equal(t, "loc-3", loc.Exits[1].ToLocationID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not_found_mapping", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM locations WHERE id").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		loc, err := repo.Get(context.Background(), "ghost")
		assert.Error(t, err)
		assert.Nil(t, loc)
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLocationRepo_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewLocationRepo(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	loc := &domain.Location{
		ID:      "loc-1",
		Name:    "Mosswell Square",
		Terrain: domain.TerrainOpenPlain,
		Exits: []domain.Exit{
			{Direction: domain.North, ToLocationID: "loc-2", TravelDurationMs: 90000},
			{Direction: domain.East, ToLocationID: "loc-3"},
		},
		Tags:      []string{"realm:mosswell"},
		Version:   2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO locations").
		WithArgs("loc-1", "Mosswell Square", "open-plain", pq.Array(loc.Tags), []byte("{}"),
			2, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM location_exits").
		WithArgs("loc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO location_exits").
		WithArgs("loc-1", "north", "loc-2", int64(90000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO location_exits").
		WithArgs("loc-1", "east", "loc-3", int64(0)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Upsert(context.Background(), loc))
	assert.NoError(t, mock.ExpectationsWereMet())

	t.Run("rejects_missing_id", func(t *testing.T) {
		err := repo.Upsert(context.Background(), &domain.Location{})
		assert.Equal(t, string(domain.CodeValidation), domain.CodeOf(err))
	})
}

func TestLocationRepo_EnsureExitBidirectional(t *testing.T) {
	t.Run("fresh_pair_locks_in_id_order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		repo := NewLocationRepo(db)

		// from=zulu sorts after to=alpha, so alpha locks first.
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM locations WHERE id").
			WithArgs("alpha").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("alpha"))
		mock.ExpectQuery("SELECT id FROM locations WHERE id").
			WithArgs("zulu").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("zulu"))

		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("zulu", "north").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO location_exits").
			WithArgs("zulu", "north", "alpha", int64(45000)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE locations").
			WithArgs("zulu", "north", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("alpha", "south").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO location_exits").
			WithArgs("alpha", "south", "zulu", int64(45000)).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec("UPDATE locations").
			WithArgs("alpha", "south", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		changed, err := repo.EnsureExitBidirectional(context.Background(), "zulu", domain.North, "alpha", 45000)
		assert.NoError(t, err)
		assert.Equal(t, 2, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("occupied_direction_first_wins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		repo := NewLocationRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM locations WHERE id").
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a"))
		mock.ExpectQuery("SELECT id FROM locations WHERE id").
			WithArgs("b").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("b"))

		// a→north already points at c; the side stays untouched.
		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("a", "north").
			WillReturnRows(sqlmock.NewRows([]string{"to_location_id", "travel_duration_ms"}).
				AddRow("c", int64(60000)))

		// b→south exists with the matching target; only travel refreshes.
		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("b", "south").
			WillReturnRows(sqlmock.NewRows([]string{"to_location_id", "travel_duration_ms"}).
				AddRow("a", int64(60000)))
		mock.ExpectExec("UPDATE location_exits SET travel_duration_ms").
			WithArgs("b", "south", int64(45000)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE locations SET version").
			WithArgs("b", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		changed, err := repo.EnsureExitBidirectional(context.Background(), "a", domain.North, "b", 45000)
		assert.NoError(t, err)
		assert.Equal(t, 1, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing_location_rolls_back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		repo := NewLocationRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM locations WHERE id").
			WithArgs("a").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		changed, err := repo.EnsureExitBidirectional(context.Background(), "a", domain.North, "b", 0)
		assert.Equal(t, 0, changed)
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLocationRepo_SetExitTravelDuration(t *testing.T) {
	t.Run("updates_both_sides", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		repo := NewLocationRepo(db)

		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("a", "south").
			WillReturnRows(sqlmock.NewRows([]string{"to_location_id", "travel_duration_ms"}).
				AddRow("b", int64(60000)))

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM locations WHERE id").
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a"))
		mock.ExpectQuery("SELECT id FROM locations WHERE id").
			WithArgs("b").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("b"))

		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("a", "south").
			WillReturnRows(sqlmock.NewRows([]string{"to_location_id", "travel_duration_ms"}).
				AddRow("b", int64(60000)))
		mock.ExpectExec("UPDATE location_exits SET travel_duration_ms").
			WithArgs("a", "south", int64(300000)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE locations SET version").
			WithArgs("a", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("b", "north").
			WillReturnRows(sqlmock.NewRows([]string{"to_location_id", "travel_duration_ms"}).
				AddRow("a", int64(60000)))
		mock.ExpectExec("UPDATE location_exits SET travel_duration_ms").
			WithArgs("b", "north", int64(300000)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE locations SET version").
			WithArgs("b", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = repo.SetExitTravelDuration(context.Background(), "a", domain.South, 300000)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no_exit_maps_to_not_found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		repo := NewLocationRepo(db)

		mock.ExpectQuery("FROM location_exits WHERE location_id").
			WithArgs("a", "up").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err = repo.SetExitTravelDuration(context.Background(), "a", domain.Up, 300000)
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects_non_positive_travel", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		repo := NewLocationRepo(db)

		err = repo.SetExitTravelDuration(context.Background(), "a", domain.South, 0)
		assert.Equal(t, string(domain.CodeValidation), domain.CodeOf(err))
	})
}

func TestLocationRepo_ListAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := NewLocationRepo(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	locRows := sqlmock.NewRows([]string{
		"id", "name", "terrain", "tags", "pending", "version", "created_at", "updated_at",
	}).
		AddRow("loc-1", "Square", "open-plain", "{}", []byte("{}"), 1, now, now).
		AddRow("loc-2", "Mill", "open-plain", "{}", []byte("{}"), 1, now, now)
	mock.ExpectQuery("FROM locations ORDER BY id").
		WillReturnRows(locRows)

	exitRows := sqlmock.NewRows([]string{"location_id", "direction", "to_location_id", "travel_duration_ms"}).
		AddRow("loc-1", "east", "loc-2", int64(60000)).
		AddRow("loc-2", "west", "loc-1", int64(60000))
	mock.ExpectQuery("FROM location_exits ORDER BY location_id").
		WillReturnRows(exitRows)

	all, err := repo.ListAll(context.Background())
	assert.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "loc-1", all[0].ID)
	assert.Len(t, all[0].Exits, 1)
	assert.Equal(t, "loc-2", all[0].Exits[0].ToLocationID)
	assert.Len(t, all[1].Exits, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := NewLocationRepo(db)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
