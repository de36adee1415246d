package session

import (
	"errors"
	"time"

	"github.com/wricardo/snake-party/game/snake"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNameConflict    = errors.New("player name already taken")
	ErrEmptyPlayerName = errors.New("empty player name")

	// ErrInvalidOrientation matches snake.ErrInvalidOrientation.
	ErrInvalidOrientation = snake.ErrInvalidOrientation
)

// Player is one roster entry.
type Player struct {
	Name        string            `json:"name"`
	Ready       bool              `json:"ready"`
	Orientation snake.Orientation `json:"orientation"`
	Snake       snake.Snake       `json:"snake"`
}

func (p Player) clone() Player {
	p.Snake = p.Snake.Clone()
	return p
}

// GameSnapshot is a point-in-time copy of a session.
type GameSnapshot struct {
	Code      string     `json:"code"`
	SessionID string     `json:"session_id"`
	Active    bool       `json:"active"`
	Ready     bool       `json:"ready"`
	Players   []Player   `json:"players"`
	Food      snake.Food `json:"food"`
	CreatedAt time.Time  `json:"created_at"`
}

// Player returns the named player from the snapshot.
func (g GameSnapshot) Player(name string) (Player, bool) {
	for _, p := range g.Players {
		if p.Name == name {
			return p, true
		}
	}
	return Player{}, false
}

// Summary describes a session that has closed.
type Summary struct {
	Code          string
	SessionID     string
	Host          string
	PlayersJoined int
	CreatedAt     time.Time
	EndedAt       time.Time
}
