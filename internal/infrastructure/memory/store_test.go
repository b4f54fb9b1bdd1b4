package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/domain"
)

func newLocation(t *testing.T, id, name string, terrain domain.Terrain) *domain.Location {
	t.Helper()
	loc := domain.NewLocation(name, terrain, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	loc.ID = id
	return loc
}

func TestLocationRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("get unknown id is not found", func(t *testing.T) {
		repo := NewStore().Locations()
		_, err := repo.Get(ctx, "nope")
		require.Error(t, err)
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
	})

	t.Run("get returns a copy", func(t *testing.T) {
		repo := NewStore().Locations()
		loc := newLocation(t, "loc-1", "Town Gate", domain.TerrainOpenPlain)
		loc.HintPending(domain.North, "seed", time.Now())
		require.NoError(t, repo.Upsert(ctx, loc))

		got, err := repo.Get(ctx, "loc-1")
		require.NoError(t, err)
		got.Name = "Mutated"
		got.SetExit(domain.Exit{Direction: domain.East, ToLocationID: "x"})
		delete(got.Pending, domain.North)

		again, err := repo.Get(ctx, "loc-1")
		require.NoError(t, err)
		assert.Equal(t, "Town Gate", again.Name)
		assert.Empty(t, again.Exits)
		assert.True(t, again.HasPending(domain.North))
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		repo := NewStore().Locations()
		require.NoError(t, repo.Upsert(ctx, newLocation(t, "loc-1", "Old Name", domain.TerrainOpenPlain)))

		updated := newLocation(t, "loc-1", "New Name", domain.TerrainHilltop)
		updated.Version = 2
		require.NoError(t, repo.Upsert(ctx, updated))

		got, err := repo.Get(ctx, "loc-1")
		require.NoError(t, err)
		assert.Equal(t, "New Name", got.Name)
		assert.Equal(t, domain.TerrainHilltop, got.Terrain)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("upsert without id fails", func(t *testing.T) {
		repo := NewStore().Locations()
		loc := newLocation(t, "", "Nameless", domain.TerrainOpenPlain)
		err := repo.Upsert(ctx, loc)
		assert.Equal(t, string(domain.CodeValidation), domain.CodeOf(err))
	})

	t.Run("list all is ordered by id", func(t *testing.T) {
		repo := NewStore().Locations()
		for _, id := range []string{"loc-c", "loc-a", "loc-b"} {
			require.NoError(t, repo.Upsert(ctx, newLocation(t, id, id, domain.TerrainOpenPlain)))
		}
		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "loc-a", all[0].ID)
		assert.Equal(t, "loc-b", all[1].ID)
		assert.Equal(t, "loc-c", all[2].ID)
	})
}

func TestEnsureExitBidirectional(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *LocationRepo {
		t.Helper()
		repo := NewStore().Locations()
		require.NoError(t, repo.Upsert(ctx, newLocation(t, "gate", "Town Gate", domain.TerrainOpenPlain)))
		require.NoError(t, repo.Upsert(ctx, newLocation(t, "field", "Windy Field", domain.TerrainOpenPlain)))
		return repo
	}

	t.Run("creates both sides and clears pending", func(t *testing.T) {
		repo := setup(t)
		gate, _ := repo.Get(ctx, "gate")
		gate.HintPending(domain.North, "seed", time.Now())
		require.NoError(t, repo.Upsert(ctx, gate))

		changed, err := repo.EnsureExitBidirectional(ctx, "gate", domain.North, "field", 45000)
		require.NoError(t, err)
		assert.Equal(t, 2, changed)

		gate, err = repo.Get(ctx, "gate")
		require.NoError(t, err)
		exit, ok := gate.ExitIn(domain.North)
		require.True(t, ok)
		assert.Equal(t, "field", exit.ToLocationID)
		assert.Equal(t, int64(45000), exit.TravelDurationMs)
		assert.False(t, gate.HasPending(domain.North))

		field, err := repo.Get(ctx, "field")
		require.NoError(t, err)
		back, ok := field.ExitIn(domain.South)
		require.True(t, ok)
		assert.Equal(t, "gate", back.ToLocationID)
		assert.Equal(t, int64(45000), back.TravelDurationMs)
	})

	t.Run("replay changes nothing", func(t *testing.T) {
		repo := setup(t)
		_, err := repo.EnsureExitBidirectional(ctx, "gate", domain.North, "field", 45000)
		require.NoError(t, err)
		gate, _ := repo.Get(ctx, "gate")
		versionBefore := gate.Version

		changed, err := repo.EnsureExitBidirectional(ctx, "gate", domain.North, "field", 45000)
		require.NoError(t, err)
		assert.Zero(t, changed)
		gate, _ = repo.Get(ctx, "gate")
		assert.Equal(t, versionBefore, gate.Version)
	})

	t.Run("occupied direction keeps its target", func(t *testing.T) {
		repo := setup(t)
		require.NoError(t, repo.Upsert(ctx, newLocation(t, "brook", "Brook", domain.TerrainOpenPlain)))
		_, err := repo.EnsureExitBidirectional(ctx, "gate", domain.North, "field", 0)
		require.NoError(t, err)

		changed, err := repo.EnsureExitBidirectional(ctx, "gate", domain.North, "brook", 0)
		require.NoError(t, err)
		assert.Equal(t, 1, changed) // only brook's south side is new

		gate, _ := repo.Get(ctx, "gate")
		exit, _ := gate.ExitIn(domain.North)
		assert.Equal(t, "field", exit.ToLocationID)
	})

	t.Run("missing endpoint fails", func(t *testing.T) {
		repo := setup(t)
		_, err := repo.EnsureExitBidirectional(ctx, "gate", domain.North, "nowhere", 0)
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
	})
}

func TestSetExitTravelDuration(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Locations()
	require.NoError(t, repo.Upsert(ctx, newLocation(t, "gate", "Town Gate", domain.TerrainOpenPlain)))
	require.NoError(t, repo.Upsert(ctx, newLocation(t, "tor", "High Tor", domain.TerrainHilltop)))
	_, err := repo.EnsureExitBidirectional(ctx, "gate", domain.East, "tor", 60000)
	require.NoError(t, err)

	t.Run("updates both sides", func(t *testing.T) {
		require.NoError(t, repo.SetExitTravelDuration(ctx, "gate", domain.East, 300000))

		gate, _ := repo.Get(ctx, "gate")
		exit, _ := gate.ExitIn(domain.East)
		assert.Equal(t, int64(300000), exit.TravelDurationMs)

		tor, _ := repo.Get(ctx, "tor")
		back, _ := tor.ExitIn(domain.West)
		assert.Equal(t, int64(300000), back.TravelDurationMs)
	})

	t.Run("missing exit fails", func(t *testing.T) {
		err := repo.SetExitTravelDuration(ctx, "gate", domain.North, 1000)
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
	})

	t.Run("non-positive duration is rejected", func(t *testing.T) {
		err := repo.SetExitTravelDuration(ctx, "gate", domain.East, 0)
		assert.Equal(t, string(domain.CodeValidation), domain.CodeOf(err))
	})
}

func TestLayerRepo(t *testing.T) {
	ctx := context.Background()
	at := func(offset time.Duration) time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	}

	t.Run("active layer is highest priority then newest", func(t *testing.T) {
		repo := NewStore().Layers()
		older := domain.NewDescriptionLayer("loc-1", domain.LayerAmbient, "A light rain falls.", 5, at(0))
		newer := domain.NewDescriptionLayer("loc-1", domain.LayerAmbient, "The rain has stopped.", 5, at(time.Hour))
		stronger := domain.NewDescriptionLayer("loc-1", domain.LayerAmbient, "A storm rages.", 9, at(0))
		base := domain.NewDescriptionLayer("loc-1", domain.LayerBase, "A muddy crossroads.", 0, at(0))
		for _, l := range []*domain.DescriptionLayer{older, newer, stronger, base} {
			require.NoError(t, repo.AddLayer(ctx, l))
		}

		active, err := repo.GetActiveLayer(ctx, "loc-1", domain.LayerAmbient, 1)
		require.NoError(t, err)
		assert.Equal(t, "A storm rages.", active.Content)

		activeBase, err := repo.GetActiveLayer(ctx, "loc-1", domain.LayerBase, 1)
		require.NoError(t, err)
		assert.Equal(t, "A muddy crossroads.", activeBase.Content)
	})

	t.Run("same priority prefers newest", func(t *testing.T) {
		repo := NewStore().Layers()
		require.NoError(t, repo.AddLayer(ctx, domain.NewDescriptionLayer("loc-1", domain.LayerAmbient, "first", 3, at(0))))
		require.NoError(t, repo.AddLayer(ctx, domain.NewDescriptionLayer("loc-1", domain.LayerAmbient, "second", 3, at(time.Minute))))

		active, err := repo.GetActiveLayer(ctx, "loc-1", domain.LayerAmbient, 1)
		require.NoError(t, err)
		assert.Equal(t, "second", active.Content)
	})

	t.Run("no layer is not found", func(t *testing.T) {
		repo := NewStore().Layers()
		_, err := repo.GetActiveLayer(ctx, "loc-1", domain.LayerBase, 1)
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
	})

	t.Run("add with same id replaces", func(t *testing.T) {
		repo := NewStore().Layers()
		layer := domain.NewDescriptionLayer("loc-1", domain.LayerBase, "v1", 0, at(0))
		require.NoError(t, repo.AddLayer(ctx, layer))
		layer.Content = "v2"
		require.NoError(t, repo.AddLayer(ctx, layer))

		active, err := repo.GetActiveLayer(ctx, "loc-1", domain.LayerBase, 0)
		require.NoError(t, err)
		assert.Equal(t, "v2", active.Content)
	})

	t.Run("invalid layer type is rejected", func(t *testing.T) {
		repo := NewStore().Layers()
		bad := domain.NewDescriptionLayer("loc-1", domain.LayerType("mood"), "x", 0, at(0))
		err := repo.AddLayer(ctx, bad)
		assert.Equal(t, string(domain.CodeValidation), domain.CodeOf(err))
	})
}

func TestRealmRepo(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *Store {
		t.Helper()
		store := NewStore()
		require.NoError(t, store.Locations().Upsert(ctx, newLocation(t, "gate", "Town Gate", domain.TerrainOpenPlain)))
		require.NoError(t, store.Realms().Upsert(ctx, &domain.Realm{Key: "mosswell", Name: "Mosswell", RealmType: domain.RealmUrban}))
		require.NoError(t, store.Realms().Upsert(ctx, &domain.Realm{Key: "mirewood", Name: "Mirewood Forest", RealmType: domain.RealmWilderness}))
		return store
	}

	t.Run("within edge tags the location once", func(t *testing.T) {
		store := setup(t)
		require.NoError(t, store.Realms().AddWithinEdge(ctx, "gate", "mosswell"))
		require.NoError(t, store.Realms().AddWithinEdge(ctx, "gate", "mosswell"))

		gate, err := store.Locations().Get(ctx, "gate")
		require.NoError(t, err)
		assert.Equal(t, []string{"mosswell"}, gate.RealmKeys())
		assert.Equal(t, 2, gate.Version) // one bump, not two
	})

	t.Run("within edge requires both sides", func(t *testing.T) {
		realms := setup(t).Realms()
		err := realms.AddWithinEdge(ctx, "gate", "ghost-realm")
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
		err = realms.AddWithinEdge(ctx, "nowhere", "mosswell")
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
	})

	t.Run("list realms follows tag order", func(t *testing.T) {
		realms := setup(t).Realms()
		require.NoError(t, realms.AddWithinEdge(ctx, "gate", "mirewood"))
		require.NoError(t, realms.AddWithinEdge(ctx, "gate", "mosswell"))

		got, err := realms.ListRealmsFor(ctx, "gate")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Mirewood Forest", got[0].Name)
		assert.Equal(t, "Mosswell", got[1].Name)
	})

	t.Run("get unknown realm is not found", func(t *testing.T) {
		realms := setup(t).Realms()
		_, err := realms.Get(ctx, "ghost-realm")
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
	})
}

func TestProcessedEventRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("mark then check", func(t *testing.T) {
		repo := NewStore().ProcessedEvents()
		seen, err := repo.CheckProcessed(ctx, "key-1")
		require.NoError(t, err)
		assert.False(t, seen)

		require.NoError(t, repo.MarkProcessed(ctx, "key-1", "event-1", time.Now()))
		seen, err = repo.CheckProcessed(ctx, "key-1")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("first mark wins", func(t *testing.T) {
		repo := NewStore().ProcessedEvents()
		require.NoError(t, repo.MarkProcessed(ctx, "key-1", "event-1", time.Now()))
		require.NoError(t, repo.MarkProcessed(ctx, "key-1", "event-2", time.Now()))

		rec, err := repo.GetByKey(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, "event-1", rec.EventID)
	})

	t.Run("get unknown key is not found", func(t *testing.T) {
		repo := NewStore().ProcessedEvents()
		_, err := repo.GetByKey(ctx, "missing")
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
	})
}

func TestDeadLetterRepo(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	record := func(id string, offset time.Duration) dispatch.DeadLetterRecord {
		return dispatch.DeadLetterRecord{
			ID:              id,
			Body:            []byte(`{"broken":`),
			ErrorCode:       dispatch.ErrCodeJSONParse,
			FailureReason:   "malformed envelope",
			RetryCount:      1,
			FirstAttemptUtc: base.Add(offset),
			DeadLetteredUtc: base.Add(offset),
		}
	}

	t.Run("store and get by id", func(t *testing.T) {
		repo := NewStore().DeadLetters()
		require.NoError(t, repo.Store(ctx, record("dl-1", 0)))

		got, err := repo.GetByID(ctx, "dl-1")
		require.NoError(t, err)
		assert.Equal(t, dispatch.ErrCodeJSONParse, got.ErrorCode)
		assert.Equal(t, []byte(`{"broken":`), got.Body)

		_, err = repo.GetByID(ctx, "dl-2")
		assert.Equal(t, string(domain.CodeNotFound), domain.CodeOf(err))
	})

	t.Run("time range query is ordered and bounded", func(t *testing.T) {
		repo := NewStore().DeadLetters()
		require.NoError(t, repo.Store(ctx, record("dl-late", 2*time.Hour)))
		require.NoError(t, repo.Store(ctx, record("dl-early", 0)))
		require.NoError(t, repo.Store(ctx, record("dl-mid", time.Hour)))
		require.NoError(t, repo.Store(ctx, record("dl-out", 48*time.Hour)))

		got, err := repo.QueryByTimeRange(ctx, base, base.Add(3*time.Hour), 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "dl-early", got[0].ID)
		assert.Equal(t, "dl-mid", got[1].ID)
		assert.Equal(t, "dl-late", got[2].ID)

		limited, err := repo.QueryByTimeRange(ctx, base, base.Add(3*time.Hour), 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, "dl-early", limited[0].ID)
	})
}
