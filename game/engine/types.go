package engine

import "fmt"

// Marker is one of the items a grid cell can hold
type Marker string

const (
	Wall Marker = "wall"
	Food Marker = "food"

	// Layout characters
	WallChar = '#'
	FreeChar = ' '
	FoodChar = '.'

	// Validation constants
	DefaultNumberTeams = 2
	MinLayoutSize      = 3
	MaxLayoutSize      = 64
	MaxNumberBots      = 10
	MinMaxRounds       = 1
	MaxMaxRounds       = 100000
)

// Cell holds the markers placed on one grid position. A nil or empty cell is free.
type Cell []Marker

// Has reports whether the cell carries the marker
func (c Cell) Has(m Marker) bool {
	for _, got := range c {
		if got == m {
			return true
		}
	}
	return false
}

// Position represents x,y coordinates. y grows downwards.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Add returns p displaced by the direction's offset
func (p Position) Add(d Direction) Position {
	dx, dy := d.Offset()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Direction is a move request for a single bot
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
	Stop  Direction = "stop"
)

// Directions lists every direction in a fixed order
var Directions = []Direction{North, South, East, West, Stop}

var offsets = map[Direction][2]int{
	North: {0, -1},
	South: {0, 1},
	East:  {1, 0},
	West:  {-1, 0},
	Stop:  {0, 0},
}

// Valid reports whether d is one of the five known directions
func (d Direction) Valid() bool {
	_, ok := offsets[d]
	return ok
}

// Offset returns the displacement of d. Unknown directions have no displacement.
func (d Direction) Offset() (dx, dy int) {
	o := offsets[d]
	return o[0], o[1]
}

// DirectionFromOffset converts a displacement pair into a direction
func DirectionFromOffset(dx, dy int) (Direction, bool) {
	for _, d := range Directions {
		o := offsets[d]
		if o[0] == dx && o[1] == dy {
			return d, true
		}
	}
	return "", false
}

// DirectionBetween returns the direction leading from one position to an adjacent one
func DirectionBetween(from, to Position) (Direction, bool) {
	return DirectionFromOffset(to.X-from.X, to.Y-from.Y)
}

// ParseDirection accepts the direction names plus a few common aliases
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "north", "up", "n":
		return North, nil
	case "south", "down", "s":
		return South, nil
	case "east", "right", "e":
		return East, nil
	case "west", "left", "w":
		return West, nil
	case "stop", "x":
		return Stop, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Zone is an inclusive range of x coordinates owned by a team
type Zone struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether column x lies within the zone
func (z Zone) Contains(x int) bool {
	return x >= z.Min && x <= z.Max
}
