package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TagFrontierBoundary marks a location whose expansion must never
	// stitch back into the existing graph (fuzzy reconnection disabled).
	TagFrontierBoundary = "frontier:boundary"

	realmTagPrefix = "realm:"
)

// Exit is a directed edge of the world graph. A zero TravelDurationMs means
// the world default applies.
type Exit struct {
	Direction        Direction
	ToLocationID     string
	TravelDurationMs int64
}

// PendingHint records that an exit could be generated in a direction,
// without committing to it. Hard exits always win over hints.
type PendingHint struct {
	Source   string
	HintedAt time.Time
}

type Location struct {
	ID      string
	Name    string
	Terrain Terrain

	// Exits keeps insertion order; at most one exit per direction.
	Exits []Exit

	// Pending holds soft exit-availability hints keyed by direction.
	Pending map[Direction]PendingHint

	// Tags have set semantics: realm membership (realm:<key>) plus
	// free-form markers such as frontier:boundary.
	Tags []string

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewLocation(name string, terrain Terrain, now time.Time) *Location {
	return &Location{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Terrain:   terrain,
		Pending:   map[Direction]PendingHint{},
		Version:   1,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// ExitIn returns the exit in direction d, if any.
func (l *Location) ExitIn(d Direction) (Exit, bool) {
	for _, e := range l.Exits {
		if e.Direction == d {
			return e, true
		}
	}
	return Exit{}, false
}

// SetExit adds or replaces the exit in e.Direction and clears any pending
// hint for that direction. It reports whether the exit set changed.
func (l *Location) SetExit(e Exit) bool {
	delete(l.Pending, e.Direction)
	for i, cur := range l.Exits {
		if cur.Direction != e.Direction {
			continue
		}
		if cur.ToLocationID != e.ToLocationID {
			// Direction already occupied by another target; first wins.
			return false
		}
		if e.TravelDurationMs != 0 && cur.TravelDurationMs != e.TravelDurationMs {
			l.Exits[i].TravelDurationMs = e.TravelDurationMs
			return true
		}
		return false
	}
	l.Exits = append(l.Exits, e)
	return true
}

// AdjacentIDs returns the targets of all exits, deduplicated, in exit order.
func (l *Location) AdjacentIDs() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range l.Exits {
		if !seen[e.ToLocationID] {
			seen[e.ToLocationID] = true
			out = append(out, e.ToLocationID)
		}
	}
	return out
}

// HintPending records a soft exit hint unless a hard exit already occupies
// the direction.
func (l *Location) HintPending(d Direction, source string, now time.Time) {
	if _, occupied := l.ExitIn(d); occupied {
		return
	}
	if l.Pending == nil {
		l.Pending = map[Direction]PendingHint{}
	}
	l.Pending[d] = PendingHint{Source: source, HintedAt: now.UTC()}
}

func (l *Location) HasPending(d Direction) bool {
	_, ok := l.Pending[d]
	return ok
}

func (l *Location) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag inserts tag with set semantics.
func (l *Location) AddTag(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" || l.HasTag(tag) {
		return
	}
	l.Tags = append(l.Tags, tag)
}

// RealmKeys extracts the realm memberships from the tag set, in tag order.
func (l *Location) RealmKeys() []string {
	var keys []string
	for _, t := range l.Tags {
		if strings.HasPrefix(t, realmTagPrefix) {
			keys = append(keys, strings.TrimPrefix(t, realmTagPrefix))
		}
	}
	return keys
}

// InRealm reports membership of the realm identified by key.
func (l *Location) InRealm(key string) bool {
	return l.HasTag(RealmTag(key))
}

func (l *Location) IsFrontierBoundary() bool {
	return l.HasTag(TagFrontierBoundary)
}

// RealmTag builds the membership tag for a realm key.
func RealmTag(key string) string { return realmTagPrefix + key }
