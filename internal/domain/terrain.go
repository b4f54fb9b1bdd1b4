package domain

import "strings"

type Terrain string

const (
	TerrainOpenPlain      Terrain = "open-plain"
	TerrainDenseForest    Terrain = "dense-forest"
	TerrainHilltop        Terrain = "hilltop"
	TerrainNarrowCorridor Terrain = "narrow-corridor"
)

// terrainDirections maps each terrain to its ordered default expansion
// directions. Every set is closed under Opposite so that a stub's pending
// set is always the defaults minus the single way back.
var terrainDirections = map[Terrain][]Direction{
	TerrainOpenPlain:      {North, East, South, West},
	TerrainDenseForest:    {North, East, South, West},
	TerrainHilltop:        {North, East, South, West},
	TerrainNarrowCorridor: {North, South},
}

// fallbackDirections serves unknown terrains.
var fallbackDirections = []Direction{North, East, South, West}

func (t Terrain) Valid() bool {
	_, ok := terrainDirections[t]
	return ok
}

// DefaultDirections returns a copy of the terrain's expansion directions.
func (t Terrain) DefaultDirections() []Direction {
	dirs, ok := terrainDirections[t]
	if !ok {
		dirs = fallbackDirections
	}
	out := make([]Direction, len(dirs))
	copy(out, dirs)
	return out
}

// realmNameTerrains maps substrings of realm names to terrains, checked in
// order. Data lives here rather than in code paths so worlds can grow the
// table without touching the generation logic.
var realmNameTerrains = []struct {
	needle  string
	terrain Terrain
}{
	{"forest", TerrainDenseForest},
	{"hill", TerrainHilltop},
}

// InferTerrainFromRealmName guesses a terrain from a realm's display name,
// e.g. "Mirewood Forest" implies dense-forest. Returns false when nothing
// in the table matches.
func InferTerrainFromRealmName(name string) (Terrain, bool) {
	lower := strings.ToLower(name)
	for _, row := range realmNameTerrains {
		if strings.Contains(lower, row.needle) {
			return row.terrain, true
		}
	}
	return "", false
}
