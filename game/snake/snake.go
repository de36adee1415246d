package snake

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrBoardTooSmall = errors.New("board too small for snake")

// Rand is the randomness RandomSnake needs. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the goroutine-safe top-level math/rand/v2 source.
var DefaultRand Rand = globalRand{}

// Factory builds the initial snake for a player joining a game.
type Factory func() (Snake, error)

// NewFactory returns a Factory placing snakes at random on a width x height
// board.
func NewFactory(width, height, length int, rng Rand) Factory {
	if rng == nil {
		rng = DefaultRand
	}
	return func() (Snake, error) {
		return RandomSnake(width, height, length, rng)
	}
}

// RandomSnake places a straight snake of the given length at a random position
// and heading, fully inside the board.
func RandomSnake(width, height, length int, rng Rand) (Snake, error) {
	if width <= 0 || height <= 0 || length <= 0 {
		return Snake{}, fmt.Errorf("%w: %dx%d board, length %d", ErrBoardTooSmall, width, height, length)
	}
	if rng == nil {
		rng = DefaultRand
	}

	candidates := make([]Orientation, 0, len(Orientations))
	for _, o := range Orientations {
		if fits(o, width, height, length) {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return Snake{}, fmt.Errorf("%w: %dx%d board, length %d", ErrBoardTooSmall, width, height, length)
	}

	o := candidates[rng.IntN(len(candidates))]
	d := o.Delta()
	minX, maxX := headRange(d.X, width, length)
	minY, maxY := headRange(d.Y, height, length)
	head := Point{
		X: minX + rng.IntN(maxX-minX+1),
		Y: minY + rng.IntN(maxY-minY+1),
	}

	body := make([]Point, length)
	for i := range body {
		body[i] = Point{X: head.X - i*d.X, Y: head.Y - i*d.Y}
	}
	return Snake{Body: body, Orientation: o}, nil
}

// InBounds reports whether every segment of s lies on a width x height board.
func (s Snake) InBounds(width, height int) bool {
	for _, p := range s.Body {
		if p.X < 0 || p.Y < 0 || p.X >= width || p.Y >= height {
			return false
		}
	}
	return true
}

func fits(o Orientation, width, height, length int) bool {
	d := o.Delta()
	if d.X != 0 {
		return length <= width
	}
	return length <= height
}

// headRange returns the inclusive range of head coordinates along one axis so
// the trailing body stays on the board.
func headRange(step, size, length int) (int, int) {
	switch {
	case step > 0:
		return length - 1, size - 1
	case step < 0:
		return 0, size - length
	}
	return 0, size - 1
}
