// Package description implements the stub description generator with
// deterministic templates. Prose varies by terrain, arrival side and realm
// but never costs a model call, so batch generation stays cheap and every
// replay produces identical text.
package description

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/mosswell/world-service/internal/application/worldgen"
	"github.com/mosswell/world-service/internal/domain"
)

var stubNames = map[domain.Terrain][]string{
	domain.TerrainOpenPlain:      {"Windswept Meadow", "Rolling Grassland", "Open Heath", "Tall-Grass Plain"},
	domain.TerrainDenseForest:    {"Shadowed Thicket", "Mossy Understory", "Tangled Pines", "Fern Hollow"},
	domain.TerrainHilltop:        {"Stony Rise", "Bare Knoll", "Heather Crown", "Windy Crest"},
	domain.TerrainNarrowCorridor: {"Cramped Passage", "Low Tunnel", "Winding Defile", "Squeeze of Stone"},
}

var stubLeads = map[domain.Terrain][]string{
	domain.TerrainOpenPlain: {
		"Grass bends in long waves under a wide sky.",
		"The ground levels out into open country, silent except for wind.",
	},
	domain.TerrainDenseForest: {
		"Trunks crowd close here, and the canopy swallows most of the light.",
		"Roots knot the path between trees too thick to see past.",
	},
	domain.TerrainHilltop: {
		"The land climbs to a bald crown of rock and thin soil.",
		"From this rise the country below spreads out in patches of green.",
	},
	domain.TerrainNarrowCorridor: {
		"Walls of stone press in on either side of a cramped path.",
		"The way ahead tightens until two people could not walk abreast.",
	},
}

// TemplateGenerator is the zero-cost Generator used by default. A
// model-backed generator can replace it behind the same port without the
// batch handler noticing.
type TemplateGenerator struct{}

func NewTemplateGenerator() TemplateGenerator { return TemplateGenerator{} }

func (TemplateGenerator) GenerateStub(_ context.Context, req worldgen.StubRequest) (worldgen.StubDescription, error) {
	names := stubNames[req.Terrain]
	leads := stubLeads[req.Terrain]
	if len(names) == 0 {
		names = []string{fmt.Sprintf("Unexplored %s", req.Terrain)}
	}
	if len(leads) == 0 {
		leads = []string{"Nothing here has a name yet."}
	}

	seed := pick(string(req.Terrain) + "|" + string(req.ArrivedFrom) + "|" + req.RealmName)
	content := leads[seed%uint32(len(leads))]
	if req.RealmName != "" {
		content += fmt.Sprintf(" This is still %s.", req.RealmName)
	}
	content += fmt.Sprintf(" You arrive from %s.", req.ArrivedFrom)

	return worldgen.StubDescription{
		Name:      names[seed%uint32(len(names))],
		Content:   content,
		CostUnits: 0,
	}, nil
}

func pick(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}
