package worldgen

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/mosswell/world-service/internal/domain"
)

// reconnectCandidate is a location reachable from the root within the
// fuzzy-reconnect budget, with the path metrics that rank it and the
// accumulated displacement that decides which direction it can serve.
type reconnectCandidate struct {
	LocationID       string
	Hops             int
	CumulativeTravel int64
	DX, DY           float64
}

// alignmentScore is the dot product of the displacement with d's vector
// normalized to unit Manhattan length. A diagonal therefore scores the
// exact average of its two cardinals: it ties them on a perfect diagonal
// path and beats a cardinal only when the displacement leans away from
// that cardinal. Up, down, in and out always score zero.
func (c reconnectCandidate) alignmentScore(d domain.Direction) float64 {
	x, y := d.Vector()
	if x == 0 && y == 0 {
		return 0
	}
	l1 := math.Abs(float64(x)) + math.Abs(float64(y))
	return (c.DX*float64(x) + c.DY*float64(y)) / l1
}

// EligibleFor reports whether d is a best-aligned direction of the
// candidate's displacement: d scores positive and no direction scores
// strictly higher. Ties are inclusive; the greedy assignment order
// decides which tied direction actually claims the candidate. A zero
// displacement aligns with nothing.
func (c reconnectCandidate) EligibleFor(d domain.Direction) bool {
	score := c.alignmentScore(d)
	if score <= 0 {
		return false
	}
	for _, other := range domain.AllDirections {
		if c.alignmentScore(other) > score {
			return false
		}
	}
	return true
}

// findReconnectCandidates walks the world graph outward from root,
// breadth first, spending at most budgetMs of cumulative travel. Exits
// without a travel duration weigh DefaultTravelDurationMs; a node at
// exactly the budget is reachable but expands no further. Displacement
// accumulates each step's direction vector scaled by weight/default.
//
// Candidacy excludes the root, anything already adjacent to it, and,
// when realmKey is set, anything outside that realm. Excluded locations
// still relay the walk. Exits pointing at locations that don't exist yet
// are skipped; batches in flight leave those dangling on purpose.
//
// Results come back ordered by (hops, cumulative travel, id) so greedy
// assignment is deterministic.
func findReconnectCandidates(ctx context.Context, repo LocationRepository, root *domain.Location, budgetMs int64, realmKey string) ([]reconnectCandidate, error) {
	excluded := map[string]bool{root.ID: true}
	for _, id := range root.AdjacentIDs() {
		excluded[id] = true
	}

	type node struct {
		reconnectCandidate
		loc *domain.Location
	}

	visited := map[string]bool{root.ID: true}
	frontier := []node{{
		reconnectCandidate: reconnectCandidate{LocationID: root.ID},
		loc:                root,
	}}

	var found []reconnectCandidate

	for len(frontier) > 0 {
		// Deterministic discovery: cheapest (then lexically first) paths
		// claim shared children first.
		sort.Slice(frontier, func(i, j int) bool {
			if frontier[i].CumulativeTravel != frontier[j].CumulativeTravel {
				return frontier[i].CumulativeTravel < frontier[j].CumulativeTravel
			}
			return frontier[i].LocationID < frontier[j].LocationID
		})

		var next []node
		for _, cur := range frontier {
			if cur.CumulativeTravel >= budgetMs {
				continue
			}
			for _, exit := range cur.loc.Exits {
				weight := exit.TravelDurationMs
				if weight <= 0 {
					weight = DefaultTravelDurationMs
				}
				cum := cur.CumulativeTravel + weight
				if cum > budgetMs || visited[exit.ToLocationID] {
					continue
				}

				child, err := repo.Get(ctx, exit.ToLocationID)
				if err != nil {
					if isNotFound(err) {
						continue
					}
					return nil, err
				}
				visited[exit.ToLocationID] = true

				vx, vy := exit.Direction.Vector()
				scale := float64(weight) / float64(DefaultTravelDurationMs)
				cand := reconnectCandidate{
					LocationID:       exit.ToLocationID,
					Hops:             cur.Hops + 1,
					CumulativeTravel: cum,
					DX:               cur.DX + float64(vx)*scale,
					DY:               cur.DY + float64(vy)*scale,
				}
				next = append(next, node{reconnectCandidate: cand, loc: child})

				if excluded[exit.ToLocationID] {
					continue
				}
				if realmKey != "" && !child.InRealm(realmKey) {
					continue
				}
				found = append(found, cand)
			}
		}
		frontier = next
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Hops != found[j].Hops {
			return found[i].Hops < found[j].Hops
		}
		if found[i].CumulativeTravel != found[j].CumulativeTravel {
			return found[i].CumulativeTravel < found[j].CumulativeTravel
		}
		return found[i].LocationID < found[j].LocationID
	})
	return found, nil
}

func isNotFound(err error) bool {
	var app *domain.AppError
	return errors.As(err, &app) && app.Code == domain.CodeNotFound
}

// assignCandidates pairs each unresolved direction with the first unused
// candidate whose displacement is best aligned to it, in candidate rank
// order. One candidate serves at most one direction.
func assignCandidates(directions []domain.Direction, candidates []reconnectCandidate) map[domain.Direction]reconnectCandidate {
	used := map[string]bool{}
	out := map[domain.Direction]reconnectCandidate{}
	for _, d := range directions {
		for _, c := range candidates {
			if used[c.LocationID] {
				continue
			}
			if !c.EligibleFor(d) {
				continue
			}
			out[d] = c
			used[c.LocationID] = true
			break
		}
	}
	return out
}
