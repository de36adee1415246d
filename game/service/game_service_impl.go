package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	log "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/wricardo/snake-party/game/history"
	"github.com/wricardo/snake-party/game/session"
	"github.com/wricardo/snake-party/game/snake"
	"github.com/wricardo/snake-party/transport/events"
)

const tracerName = "github.com/wricardo/snake-party/game/service"

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	games         GameCatalog
	snakes        snake.Factory
	events        EventPublisher
	history       HistoryRecorder
	tracer        trace.Tracer
	maxNameLength int
}

// NewGameService creates a new game service instance
func NewGameService(games GameCatalog, opts Options) GameService {
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = DefaultMaxNameLength
	}
	if opts.Snakes == nil {
		opts.Snakes = snake.NewFactory(snake.DefaultWidth, snake.DefaultHeight, snake.DefaultLength, nil)
	}
	if opts.Events == nil {
		opts.Events = events.Discard{}
	}
	if opts.History == nil {
		opts.History = noHistory{}
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &gameServiceImpl{
		games:         games,
		snakes:        opts.Snakes,
		events:        opts.Events,
		history:       opts.History,
		tracer:        opts.TracerProvider.Tracer(tracerName),
		maxNameLength: opts.MaxNameLength,
	}
}

// canonicalName is the form names are stored and looked up in: trimmed and
// NFC-normalized, so composed and decomposed accents name the same player.
func canonicalName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateName canonicalizes name and checks it against the player name rules.
func ValidateName(name string, maxLength int) (string, error) {
	name = canonicalName(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrNameInvalid)
	}
	if n := utf8.RuneCountInString(name); n > maxLength {
		return "", fmt.Errorf("%w: name has %d characters, at most %d allowed", ErrNameInvalid, n, maxLength)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: name is not valid UTF-8", ErrNameInvalid)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: name contains control characters", ErrNameInvalid)
		}
	}
	// names are path segments in the player routes
	if strings.ContainsRune(name, '/') {
		return "", fmt.Errorf("%w: name must not contain '/'", ErrNameInvalid)
	}
	return name, nil
}

func (s *gameServiceImpl) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "GameService."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *gameServiceImpl) publish(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.WARN.Printf("[Events] failed to publish %s for game %s: %v", ev.Type, ev.Code, err)
	}
}

// lookup returns the live session for code.
func (s *gameServiceImpl) lookup(code string) (*session.Session, error) {
	sess, ok := s.games.GetGame(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, code)
	}
	return sess, nil
}

// goneAsNotFound reports a session that tore down mid-request as a missing
// game.
func goneAsNotFound(code string, err error) error {
	if errors.Is(err, session.ErrSessionClosed) {
		return fmt.Errorf("%w: %s", ErrGameNotFound, code)
	}
	return err
}

// CreateGame registers a new game with hostName as its first player
func (s *gameServiceImpl) CreateGame(ctx context.Context, hostName string) (info *GameInfo, err error) {
	ctx, span := s.start(ctx, "CreateGame")
	defer func() { finish(span, err) }()

	name, err := ValidateName(hostName, s.maxNameLength)
	if err != nil {
		return nil, err
	}
	body, err := s.snakes()
	if err != nil {
		return nil, fmt.Errorf("failed to place snake: %w", err)
	}

	sess, err := s.games.CreateGame(ctx, session.Player{Name: name, Snake: body})
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	span.SetAttributes(attribute.String("game.code", sess.Code()))
	log.INFO.Printf("[GameService] game %s created by %s", sess.Code(), name)
	s.publish(ctx, events.Event{Type: events.GameCreated, Code: sess.Code(), SessionID: sess.ID(), Player: name})

	return &GameInfo{Code: sess.Code(), SessionID: sess.ID(), PlayerName: name}, nil
}

// JoinGame adds playerName to the game registered under code
func (s *gameServiceImpl) JoinGame(ctx context.Context, code, playerName string) (info *GameInfo, err error) {
	ctx, span := s.start(ctx, "JoinGame", attribute.String("game.code", code))
	defer func() { finish(span, err) }()

	name, err := ValidateName(playerName, s.maxNameLength)
	if err != nil {
		return nil, err
	}
	sess, err := s.lookup(code)
	if err != nil {
		return nil, err
	}
	body, err := s.snakes()
	if err != nil {
		return nil, fmt.Errorf("failed to place snake: %w", err)
	}

	if err := sess.AddPlayer(ctx, session.Player{Name: name, Snake: body}); err != nil {
		err = goneAsNotFound(sess.Code(), err)
		if errors.Is(err, ErrNameConflict) {
			return nil, fmt.Errorf("%w: %q in game %s", ErrNameConflict, name, sess.Code())
		}
		return nil, err
	}

	log.INFO.Printf("[GameService] %s joined game %s", name, sess.Code())
	s.publish(ctx, events.Event{Type: events.PlayerJoined, Code: sess.Code(), SessionID: sess.ID(), Player: name})

	return &GameInfo{Code: sess.Code(), SessionID: sess.ID(), PlayerName: name}, nil
}

// ReadyPlayer marks playerName ready in the game registered under code
func (s *gameServiceImpl) ReadyPlayer(ctx context.Context, code, playerName string) (err error) {
	ctx, span := s.start(ctx, "ReadyPlayer", attribute.String("game.code", code))
	defer func() { finish(span, err) }()

	sess, err := s.lookup(code)
	if err != nil {
		return err
	}
	name := canonicalName(playerName)
	if err := sess.ReadyPlayer(ctx, name); err != nil {
		err = goneAsNotFound(sess.Code(), err)
		if errors.Is(err, ErrPlayerNotFound) {
			return fmt.Errorf("%w: %q in game %s", ErrPlayerNotFound, name, sess.Code())
		}
		return err
	}

	log.DEBUG.Printf("[GameService] %s is ready in game %s", name, sess.Code())
	s.publish(ctx, events.Event{Type: events.PlayerReady, Code: sess.Code(), SessionID: sess.ID(), Player: name})
	return nil
}

// AbandonPlayer removes playerName from the game. Missing games and players
// are not errors.
func (s *gameServiceImpl) AbandonPlayer(ctx context.Context, code, playerName string) (closed bool, err error) {
	ctx, span := s.start(ctx, "AbandonPlayer", attribute.String("game.code", code))
	defer func() { finish(span, err) }()

	name := canonicalName(playerName)
	res, err := s.games.AbandonPlayer(ctx, code, name)
	if err != nil {
		return false, fmt.Errorf("failed to abandon game: %w", err)
	}
	span.SetAttributes(attribute.Bool("game.closed", res.Closed))
	if !res.Removed {
		return false, nil
	}

	log.INFO.Printf("[GameService] %s left game %s", name, res.Code)
	s.publish(ctx, events.Event{Type: events.PlayerAbandoned, Code: res.Code, SessionID: res.SessionID, Player: name})

	if res.Closed {
		log.INFO.Printf("[GameService] game %s closed after its last player left", res.Code)
		s.publish(ctx, events.Event{Type: events.GameClosed, Code: res.Code, SessionID: res.SessionID})
		s.archive(ctx, res.Summary)
	}
	return res.Closed, nil
}

func (s *gameServiceImpl) archive(ctx context.Context, sum session.Summary) {
	err := s.history.Record(ctx, history.Match{
		SessionID:     sum.SessionID,
		Code:          sum.Code,
		Host:          sum.Host,
		PlayersJoined: sum.PlayersJoined,
		CreatedAt:     sum.CreatedAt,
		EndedAt:       sum.EndedAt,
	})
	if err != nil {
		log.WARN.Printf("[History] failed to archive game %s: %v", sum.Code, err)
	}
}

// ListActiveGames returns a snapshot of every live game
func (s *gameServiceImpl) ListActiveGames(ctx context.Context) (games []session.GameSnapshot, err error) {
	ctx, span := s.start(ctx, "ListActiveGames")
	defer func() { finish(span, err) }()

	games = s.games.ListActiveGames(ctx)
	span.SetAttributes(attribute.Int("game.count", len(games)))
	return games, nil
}

// GetGame returns a snapshot of the game registered under code
func (s *gameServiceImpl) GetGame(ctx context.Context, code string) (snap *session.GameSnapshot, err error) {
	ctx, span := s.start(ctx, "GetGame", attribute.String("game.code", code))
	defer func() { finish(span, err) }()

	sess, err := s.lookup(code)
	if err != nil {
		return nil, err
	}
	got, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, goneAsNotFound(sess.Code(), err)
	}
	return &got, nil
}

// GetPlayerOrientation returns the player's steering input, or fallback when
// the game or the player is gone.
func (s *gameServiceImpl) GetPlayerOrientation(ctx context.Context, code, playerName string, fallback snake.Orientation) snake.Orientation {
	ctx, span := s.start(ctx, "GetPlayerOrientation", attribute.String("game.code", code))
	defer span.End()

	sess, ok := s.games.GetGame(code)
	if !ok {
		span.SetAttributes(attribute.Bool("orientation.fallback", true))
		return fallback
	}
	o, ok := sess.GetPlayerOrientation(ctx, canonicalName(playerName))
	if !ok {
		span.SetAttributes(attribute.Bool("orientation.fallback", true))
		return fallback
	}
	return o
}

// SetPlayerOrientation records the player's steering input
func (s *gameServiceImpl) SetPlayerOrientation(ctx context.Context, code, playerName string, orientation snake.Orientation) (err error) {
	ctx, span := s.start(ctx, "SetPlayerOrientation",
		attribute.String("game.code", code),
		attribute.String("orientation", string(orientation)),
	)
	defer func() { finish(span, err) }()

	if !orientation.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, orientation)
	}
	sess, err := s.lookup(code)
	if err != nil {
		return err
	}
	name := canonicalName(playerName)
	if err := sess.SetPlayerOrientation(ctx, name, orientation); err != nil {
		err = goneAsNotFound(sess.Code(), err)
		if errors.Is(err, ErrPlayerNotFound) {
			return fmt.Errorf("%w: %q in game %s", ErrPlayerNotFound, name, sess.Code())
		}
		return err
	}
	return nil
}

// UpdatePlayerStates replaces the snakes of the listed players in one step
func (s *gameServiceImpl) UpdatePlayerStates(ctx context.Context, code string, states []snake.PlayerState) (err error) {
	ctx, span := s.start(ctx, "UpdatePlayerStates",
		attribute.String("game.code", code),
		attribute.Int("states", len(states)),
	)
	defer func() { finish(span, err) }()

	sess, err := s.lookup(code)
	if err != nil {
		return err
	}
	return goneAsNotFound(sess.Code(), sess.UpdatePlayerStates(ctx, states))
}

// UpdateFood replaces the food on the board
func (s *gameServiceImpl) UpdateFood(ctx context.Context, code string, food snake.Food) (err error) {
	ctx, span := s.start(ctx, "UpdateFood",
		attribute.String("game.code", code),
		attribute.Int("bites", len(food.Bites)),
	)
	defer func() { finish(span, err) }()

	sess, err := s.lookup(code)
	if err != nil {
		return err
	}
	return goneAsNotFound(sess.Code(), sess.UpdateFood(ctx, food))
}

// ListHistory returns recently finished games, newest first
func (s *gameServiceImpl) ListHistory(ctx context.Context, limit int) (matches []history.Match, err error) {
	ctx, span := s.start(ctx, "ListHistory", attribute.Int("limit", limit))
	defer func() { finish(span, err) }()

	matches, err = s.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return matches, nil
}
