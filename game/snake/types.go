package snake

import (
	"errors"
	"fmt"
	"strings"
)

// Orientation is the heading of a snake or the steering input of a player.
type Orientation string

const (
	Up    Orientation = "up"
	Down  Orientation = "down"
	Left  Orientation = "left"
	Right Orientation = "right"
)

// Board defaults used when a new snake is placed for a player.
const (
	DefaultWidth  = 30
	DefaultHeight = 16
	DefaultLength = 5
)

var ErrInvalidOrientation = errors.New("invalid orientation")

// Orientations lists every valid orientation.
var Orientations = []Orientation{Up, Down, Left, Right}

// ParseOrientation parses a case-insensitive orientation name.
func ParseOrientation(s string) (Orientation, error) {
	o := Orientation(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrientation, s)
	}
	return o, nil
}

// Valid reports whether o is one of the four headings.
func (o Orientation) Valid() bool {
	switch o {
	case Up, Down, Left, Right:
		return true
	}
	return false
}

// Delta returns the offset of one step in direction o.
func (o Orientation) Delta() Point {
	switch o {
	case Up:
		return Point{X: 0, Y: -1}
	case Down:
		return Point{X: 0, Y: 1}
	case Left:
		return Point{X: -1, Y: 0}
	case Right:
		return Point{X: 1, Y: 0}
	}
	return Point{}
}

// Opposite returns the reverse heading.
func (o Orientation) Opposite() Orientation {
	switch o {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return o
}

// Point represents x,y board coordinates
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p moved by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Snake is the positional state of one player's snake.
type Snake struct {
	Body        []Point     `json:"body"` // head first
	Orientation Orientation `json:"orientation"`
}

// Head returns the first body segment.
func (s Snake) Head() (Point, bool) {
	if len(s.Body) == 0 {
		return Point{}, false
	}
	return s.Body[0], true
}

// Len returns the number of body segments.
func (s Snake) Len() int {
	return len(s.Body)
}

// Clone returns a deep copy of s.
func (s Snake) Clone() Snake {
	out := Snake{Orientation: s.Orientation}
	if s.Body != nil {
		out.Body = make([]Point, len(s.Body))
		copy(out.Body, s.Body)
	}
	return out
}

// Bite is a single consumable item on the board.
type Bite struct {
	Position Point `json:"position"`
}

// Food is the full set of bites on the board.
type Food struct {
	Bites []Bite `json:"bites"`
}

// EmptyFood returns a food snapshot with no bites.
func EmptyFood() Food {
	return Food{Bites: []Bite{}}
}

// Clone returns a deep copy of f. A nil bite list becomes empty.
func (f Food) Clone() Food {
	out := Food{Bites: make([]Bite, len(f.Bites))}
	copy(out.Bites, f.Bites)
	return out
}

// PlayerState is the movement state the tick driver computed for one player.
type PlayerState struct {
	Name  string `json:"name"`
	Snake Snake  `json:"snake"`
}
