package domain

import (
	"fmt"
	"strings"
)

type Direction string

const (
	North     Direction = "north"
	South     Direction = "south"
	East      Direction = "east"
	West      Direction = "west"
	Northeast Direction = "northeast"
	Northwest Direction = "northwest"
	Southeast Direction = "southeast"
	Southwest Direction = "southwest"
	Up        Direction = "up"
	Down      Direction = "down"
	In        Direction = "in"
	Out       Direction = "out"
)

// AllDirections is the canonical enum order. Tie-breaks in alignment
// scoring and deterministic iteration both rely on this order.
var AllDirections = []Direction{
	North, South, East, West,
	Northeast, Northwest, Southeast, Southwest,
	Up, Down, In, Out,
}

var opposites = map[Direction]Direction{
	North:     South,
	South:     North,
	East:      West,
	West:      East,
	Northeast: Southwest,
	Southwest: Northeast,
	Northwest: Southeast,
	Southeast: Northwest,
	Up:        Down,
	Down:      Up,
	In:        Out,
	Out:       In,
}

func (d Direction) Valid() bool {
	_, ok := opposites[d]
	return ok
}

// Opposite is total over the enum: every direction has exactly one opposite.
func (d Direction) Opposite() Direction {
	return opposites[d]
}

// Vector returns the planar displacement of one step in d. The grid runs
// x east, y south; diagonals keep integer components (northeast = (1,-1)).
// Up, down, in and out have no planar displacement.
func (d Direction) Vector() (x, y int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return 1, 0
	case West:
		return -1, 0
	case Northeast:
		return 1, -1
	case Northwest:
		return -1, -1
	case Southeast:
		return 1, 1
	case Southwest:
		return -1, 1
	default:
		return 0, 0
	}
}

// shortforms are exact aliases resolved before prefix matching, so "n"
// means north even though "northeast" and "northwest" share the prefix.
var shortforms = map[string]Direction{
	"n":  North,
	"s":  South,
	"e":  East,
	"w":  West,
	"ne": Northeast,
	"nw": Northwest,
	"se": Southeast,
	"sw": Southwest,
	"u":  Up,
	"d":  Down,
}

// ErrAmbiguousDirection reports an input that prefixes more than one
// direction, e.g. "nor". Callers distinguish it from a plain invalid input.
type ErrAmbiguousDirection struct {
	Input   string
	Matches []Direction
}

func (e *ErrAmbiguousDirection) Error() string {
	names := make([]string, len(e.Matches))
	for i, d := range e.Matches {
		names[i] = string(d)
	}
	return fmt.Sprintf("direction %q is ambiguous: %s", e.Input, strings.Join(names, ", "))
}

// ParseDirection resolves player-style direction input: canonical names,
// the usual single and double letter shortforms, and unambiguous prefixes.
func ParseDirection(s string) (Direction, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if in == "" {
		return "", ErrValidation("direction is required")
	}
	if d, ok := shortforms[in]; ok {
		return d, nil
	}
	if d := Direction(in); d.Valid() {
		return d, nil
	}

	var matches []Direction
	for _, d := range AllDirections {
		if strings.HasPrefix(string(d), in) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", ErrValidationMeta("unknown direction", map[string]string{"direction": in})
	default:
		return "", &ErrAmbiguousDirection{Input: in, Matches: matches}
	}
}
