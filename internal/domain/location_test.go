package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocation_SetExit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("adds_exit_and_clears_pending", func(t *testing.T) {
		l := NewLocation("Mosswell Square", TerrainOpenPlain, now)
		l.HintPending(North, "batch-generate", now)
		assert.True(t, l.HasPending(North))

		changed := l.SetExit(Exit{Direction: North, ToLocationID: "loc-n", TravelDurationMs: 60000})
		assert.True(t, changed)
		assert.False(t, l.HasPending(North))

		e, ok := l.ExitIn(North)
		assert.True(t, ok)
		assert.Equal(t, "loc-n", e.ToLocationID)
	})

	t.Run("same_target_is_noop", func(t *testing.T) {
		l := NewLocation("sq", TerrainOpenPlain, now)
		l.SetExit(Exit{Direction: East, ToLocationID: "loc-e"})
		changed := l.SetExit(Exit{Direction: East, ToLocationID: "loc-e"})
		assert.False(t, changed)
		assert.Len(t, l.Exits, 1)
	})

	t.Run("occupied_direction_keeps_first_target", func(t *testing.T) {
		l := NewLocation("sq", TerrainOpenPlain, now)
		l.SetExit(Exit{Direction: East, ToLocationID: "loc-e"})
		changed := l.SetExit(Exit{Direction: East, ToLocationID: "loc-other"})
		assert.False(t, changed)
		e, _ := l.ExitIn(East)
		assert.Equal(t, "loc-e", e.ToLocationID)
	})

	t.Run("updates_travel_duration_for_same_target", func(t *testing.T) {
		l := NewLocation("sq", TerrainOpenPlain, now)
		l.SetExit(Exit{Direction: East, ToLocationID: "loc-e", TravelDurationMs: 60000})
		changed := l.SetExit(Exit{Direction: East, ToLocationID: "loc-e", TravelDurationMs: 90000})
		assert.True(t, changed)
		e, _ := l.ExitIn(East)
		assert.Equal(t, int64(90000), e.TravelDurationMs)
	})
}

func TestLocation_PendingHints(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocation("sq", TerrainOpenPlain, now)

	l.SetExit(Exit{Direction: North, ToLocationID: "loc-n"})
	l.HintPending(North, "batch-generate", now)
	assert.False(t, l.HasPending(North), "hard exit wins over hint")

	l.HintPending(West, "batch-generate", now)
	assert.True(t, l.HasPending(West))
	assert.Equal(t, "batch-generate", l.Pending[West].Source)
}

func TestLocation_Tags(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocation("sq", TerrainOpenPlain, now)

	l.AddTag(RealmTag("mirewood"))
	l.AddTag(RealmTag("mirewood")) // set semantics
	l.AddTag(TagFrontierBoundary)
	l.AddTag("  ")

	assert.Equal(t, []string{"realm:mirewood", TagFrontierBoundary}, l.Tags)
	assert.True(t, l.InRealm("mirewood"))
	assert.False(t, l.InRealm("gloomfen"))
	assert.True(t, l.IsFrontierBoundary())
	assert.Equal(t, []string{"mirewood"}, l.RealmKeys())
}

func TestLocation_AdjacentIDs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocation("sq", TerrainOpenPlain, now)
	l.SetExit(Exit{Direction: North, ToLocationID: "a"})
	l.SetExit(Exit{Direction: East, ToLocationID: "b"})
	l.SetExit(Exit{Direction: Up, ToLocationID: "a"})

	assert.Equal(t, []string{"a", "b"}, l.AdjacentIDs())
}
