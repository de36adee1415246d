package service

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/wricardo/snake-party/game/history"
	"github.com/wricardo/snake-party/game/snake"
)

// DefaultMaxNameLength is the longest accepted player name in runes.
const DefaultMaxNameLength = 24

// GameInfo identifies the game a player just created or joined
type GameInfo struct {
	Code       string `json:"code"`
	SessionID  string `json:"session_id"`
	PlayerName string `json:"player_name"`
}

// Options configures a GameService. Zero values select defaults.
type Options struct {
	MaxNameLength  int
	Snakes         snake.Factory
	Events         EventPublisher
	History        HistoryRecorder
	TracerProvider trace.TracerProvider
}

type noHistory struct{}

func (noHistory) Record(context.Context, history.Match) error { return nil }
func (noHistory) Recent(context.Context, int) ([]history.Match, error) {
	return []history.Match{}, nil
}
