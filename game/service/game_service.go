package service

import (
	"context"
	"errors"

	"github.com/wricardo/snake-party/game/catalog"
	"github.com/wricardo/snake-party/game/history"
	"github.com/wricardo/snake-party/game/session"
	"github.com/wricardo/snake-party/game/snake"
	"github.com/wricardo/snake-party/transport/events"
)

var (
	ErrNameInvalid = errors.New("invalid player name")

	// Re-exported so transports only need this package.
	ErrGameNotFound       = catalog.ErrGameNotFound
	ErrCodeSpaceExhausted = catalog.ErrCodeSpaceExhausted
	ErrPlayerNotFound     = session.ErrPlayerNotFound
	ErrNameConflict       = session.ErrNameConflict
	ErrInvalidOrientation = session.ErrInvalidOrientation
)

// GameService defines all game-related operations
type GameService interface {
	// Lobby
	CreateGame(ctx context.Context, hostName string) (*GameInfo, error)
	// JoinGame reports an unknown code as ErrGameNotFound: the game is
	// absent and the caller may retry another code or create a new game.
	JoinGame(ctx context.Context, code, playerName string) (*GameInfo, error)
	ReadyPlayer(ctx context.Context, code, playerName string) error
	// AbandonPlayer is idempotent. closed reports that this call removed the
	// last player and tore the game down.
	AbandonPlayer(ctx context.Context, code, playerName string) (closed bool, err error)

	// Game State
	ListActiveGames(ctx context.Context) ([]session.GameSnapshot, error)
	GetGame(ctx context.Context, code string) (*session.GameSnapshot, error)
	GetPlayerOrientation(ctx context.Context, code, playerName string, fallback snake.Orientation) snake.Orientation
	SetPlayerOrientation(ctx context.Context, code, playerName string, orientation snake.Orientation) error

	// Tick driver
	UpdatePlayerStates(ctx context.Context, code string, states []snake.PlayerState) error
	UpdateFood(ctx context.Context, code string, food snake.Food) error

	// Archive
	ListHistory(ctx context.Context, limit int) ([]history.Match, error)
}

// GameCatalog is the code to session table
type GameCatalog interface {
	CreateGame(ctx context.Context, host session.Player) (*session.Session, error)
	GetGame(code string) (*session.Session, bool)
	ListActiveGames(ctx context.Context) []session.GameSnapshot
	AbandonPlayer(ctx context.Context, code, name string) (catalog.Abandonment, error)
}

// EventPublisher receives lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// HistoryRecorder archives finished games
type HistoryRecorder interface {
	Record(ctx context.Context, m history.Match) error
	Recent(ctx context.Context, limit int) ([]history.Match, error)
}
