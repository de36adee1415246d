package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wricardo/snake-party/game/catalog"
	"github.com/wricardo/snake-party/game/codegen"
	"github.com/wricardo/snake-party/game/history"
	"github.com/wricardo/snake-party/game/service"
	"github.com/wricardo/snake-party/game/snake"
	"github.com/wricardo/snake-party/transport/events"
)

// recordingPublisher implements service.EventPublisher for testing
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// memoryHistory implements service.HistoryRecorder for testing
type memoryHistory struct {
	mu      sync.Mutex
	matches []history.Match
	err     error
}

func (h *memoryHistory) Record(_ context.Context, m history.Match) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.matches = append([]history.Match{m}, h.matches...)
	return nil
}

func (h *memoryHistory) Recent(_ context.Context, limit int) ([]history.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	if limit > len(h.matches) || limit <= 0 {
		limit = len(h.matches)
	}
	return append([]history.Match(nil), h.matches[:limit]...), nil
}

type fixture struct {
	svc     service.GameService
	games   *catalog.Catalog
	events  *recordingPublisher
	history *memoryHistory
	spans   *tracetest.SpanRecorder
}

func fixedSnake() (snake.Snake, error) {
	return snake.Snake{
		Body:        []snake.Point{{X: 4, Y: 2}, {X: 3, Y: 2}, {X: 2, Y: 2}},
		Orientation: snake.Right,
	}, nil
}

func setup(t *testing.T, gen codegen.Generator) *fixture {
	t.Helper()
	if gen == nil {
		gen = codegen.New(codegen.DefaultLength)
	}
	f := &fixture{
		games:   catalog.New(gen, 0),
		events:  &recordingPublisher{},
		history: &memoryHistory{},
		spans:   tracetest.NewSpanRecorder(),
	}
	t.Cleanup(f.games.Close)
	f.svc = service.NewGameService(f.games, service.Options{
		MaxNameLength:  10,
		Snakes:         fixedSnake,
		Events:         f.events,
		History:        f.history,
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans)),
	})
	return f
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "Ann", "Ann", false},
		{"trimmed", "  Bob\t", "Bob", false},
		{"unicode counts runes", "ÉlodieÉlo", "ÉlodieÉlo", false},
		{"decomposed accent normalized", "Jose\u0301", "Jos\u00e9", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"too long", strings.Repeat("x", 11), "", true},
		{"control character", "A\x07B", "", true},
		{"inner newline", "A\nB", "", true},
		{"slash", "AC/DC", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.ValidateName(tt.input, 10)
			if tt.wantErr {
				assert.True(t, errors.Is(err, service.ErrNameInvalid), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGameService_CreateGame(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("K7QX"))

	info, err := f.svc.CreateGame(ctx, " Ann ")
	require.NoError(t, err)
	assert.Equal(t, "K7QX", info.Code)
	assert.Equal(t, "Ann", info.PlayerName)
	assert.NotEmpty(t, info.SessionID)

	snap, err := f.svc.GetGame(ctx, "k7qx")
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Ann", snap.Players[0].Name)
	assert.Equal(t, snake.Right, snap.Players[0].Orientation)

	assert.Equal(t, []events.Type{events.GameCreated}, f.events.types())

	_, err = f.svc.CreateGame(ctx, "")
	assert.True(t, errors.Is(err, service.ErrNameInvalid))
}

func TestGameService_CreateGame_Exhausted(t *testing.T) {
	ctx := context.Background()
	games := catalog.New(codegen.Sequence("SAME"), 2)
	t.Cleanup(games.Close)
	svc := service.NewGameService(games, service.Options{})

	_, err := svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)

	_, err = svc.CreateGame(ctx, "Bob")
	assert.True(t, errors.Is(err, service.ErrCodeSpaceExhausted))
}

func TestGameService_JoinGame(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("ROOM"))
	_, err := f.svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)

	t.Run("join existing", func(t *testing.T) {
		info, err := f.svc.JoinGame(ctx, "room", "Bob")
		require.NoError(t, err)
		assert.Equal(t, "ROOM", info.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := f.svc.JoinGame(ctx, "NOPE", "Cy")
		assert.True(t, errors.Is(err, service.ErrGameNotFound))
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := f.svc.JoinGame(ctx, "ROOM", "Bob")
		assert.True(t, errors.Is(err, service.ErrNameConflict))
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := f.svc.JoinGame(ctx, "ROOM", "way too long a name")
		assert.True(t, errors.Is(err, service.ErrNameInvalid))
	})

	t.Run("accent forms collide", func(t *testing.T) {
		_, err := f.svc.JoinGame(ctx, "ROOM", "Jos\u00e9")
		require.NoError(t, err)
		_, err = f.svc.JoinGame(ctx, "ROOM", "Jose\u0301")
		assert.True(t, errors.Is(err, service.ErrNameConflict))
	})

	snap, err := f.svc.GetGame(ctx, "ROOM")
	require.NoError(t, err)
	assert.Len(t, snap.Players, 3)
}

func TestGameService_ReadyPlayer(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("RDY1"))
	_, err := f.svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)

	require.NoError(t, f.svc.ReadyPlayer(ctx, "RDY1", "Ann"))
	snap, _ := f.svc.GetGame(ctx, "RDY1")
	assert.True(t, snap.Ready)

	err = f.svc.ReadyPlayer(ctx, "RDY1", "Zed")
	assert.True(t, errors.Is(err, service.ErrPlayerNotFound))

	err = f.svc.ReadyPlayer(ctx, "GONE", "Ann")
	assert.True(t, errors.Is(err, service.ErrGameNotFound))

	assert.Contains(t, f.events.types(), events.PlayerReady)
}

func TestGameService_Orientation(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("TURN"))
	_, err := f.svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)

	assert.Equal(t, snake.Right, f.svc.GetPlayerOrientation(ctx, "TURN", "Ann", snake.Up))

	require.NoError(t, f.svc.SetPlayerOrientation(ctx, "TURN", "Ann", snake.Down))
	assert.Equal(t, snake.Down, f.svc.GetPlayerOrientation(ctx, "TURN", "Ann", snake.Up))

	// fallbacks never fail
	assert.Equal(t, snake.Left, f.svc.GetPlayerOrientation(ctx, "TURN", "Zed", snake.Left))
	assert.Equal(t, snake.Left, f.svc.GetPlayerOrientation(ctx, "NONE", "Ann", snake.Left))

	assert.True(t, errors.Is(f.svc.SetPlayerOrientation(ctx, "TURN", "Ann", "diagonal"), service.ErrInvalidOrientation))
	assert.True(t, errors.Is(f.svc.SetPlayerOrientation(ctx, "TURN", "Zed", snake.Up), service.ErrPlayerNotFound))
	assert.True(t, errors.Is(f.svc.SetPlayerOrientation(ctx, "NONE", "Ann", snake.Up), service.ErrGameNotFound))
}

func TestGameService_TickUpdates(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("TICK"))
	_, err := f.svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)

	moved := snake.Snake{Body: []snake.Point{{X: 5, Y: 2}, {X: 4, Y: 2}, {X: 3, Y: 2}}, Orientation: snake.Right}
	require.NoError(t, f.svc.UpdatePlayerStates(ctx, "TICK", []snake.PlayerState{{Name: "Ann", Snake: moved}}))

	food := snake.Food{Bites: []snake.Bite{{Position: snake.Point{X: 9, Y: 9}}}}
	require.NoError(t, f.svc.UpdateFood(ctx, "TICK", food))

	snap, err := f.svc.GetGame(ctx, "TICK")
	require.NoError(t, err)
	assert.Equal(t, moved, snap.Players[0].Snake)
	assert.Equal(t, food, snap.Food)

	assert.True(t, errors.Is(f.svc.UpdateFood(ctx, "NONE", food), service.ErrGameNotFound))
	assert.True(t, errors.Is(f.svc.UpdatePlayerStates(ctx, "NONE", nil), service.ErrGameNotFound))
}

func TestGameService_AbandonPlayer(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("BYE1", "BYE1"))
	_, err := f.svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)
	_, err = f.svc.JoinGame(ctx, "BYE1", "Bob")
	require.NoError(t, err)

	closed, err := f.svc.AbandonPlayer(ctx, "BYE1", "Ann")
	require.NoError(t, err)
	assert.False(t, closed)
	_, err = f.svc.GetGame(ctx, "BYE1")
	require.NoError(t, err, "game survives while a player remains")

	closed, err = f.svc.AbandonPlayer(ctx, "BYE1", "Bob")
	require.NoError(t, err)
	assert.True(t, closed)
	_, err = f.svc.GetGame(ctx, "BYE1")
	assert.True(t, errors.Is(err, service.ErrGameNotFound))

	// idempotent
	closed, err = f.svc.AbandonPlayer(ctx, "BYE1", "Bob")
	require.NoError(t, err)
	assert.False(t, closed)
	_, err = f.svc.AbandonPlayer(ctx, "NONE", "Bob")
	require.NoError(t, err)

	// closed game is archived
	matches, err := f.svc.ListHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "BYE1", matches[0].Code)
	assert.Equal(t, "Ann", matches[0].Host)
	assert.Equal(t, 2, matches[0].PlayersJoined)

	assert.Equal(t, []events.Type{
		events.GameCreated,
		events.PlayerJoined,
		events.PlayerAbandoned,
		events.PlayerAbandoned,
		events.GameClosed,
	}, f.events.types())

	// the freed code can be claimed again
	info, err := f.svc.CreateGame(ctx, "Cy")
	require.NoError(t, err)
	assert.Equal(t, "BYE1", info.Code)
}

func TestGameService_SinkFailuresDoNotFail(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("SINK"))
	f.events.err = errors.New("nats down")
	f.history.err = errors.New("disk full")

	_, err := f.svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)
	closed, err := f.svc.AbandonPlayer(ctx, "SINK", "Ann")
	require.NoError(t, err)
	assert.True(t, closed)

	_, err = f.svc.ListHistory(ctx, 5)
	assert.Error(t, err)
}

func TestGameService_ListActiveGames(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("BBBB", "AAAA"))

	games, err := f.svc.ListActiveGames(ctx)
	require.NoError(t, err)
	assert.Empty(t, games)

	_, err = f.svc.CreateGame(ctx, "Bob")
	require.NoError(t, err)
	_, err = f.svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)

	games, err = f.svc.ListActiveGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "AAAA", games[0].Code)
	assert.Equal(t, "BBBB", games[1].Code)
}

func TestGameService_ListHistory_Disabled(t *testing.T) {
	games := catalog.New(nil, 0)
	t.Cleanup(games.Close)
	svc := service.NewGameService(games, service.Options{})

	matches, err := svc.ListHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGameService_Spans(t *testing.T) {
	ctx := context.Background()
	f := setup(t, codegen.Sequence("SPAN"))

	_, err := f.svc.CreateGame(ctx, "Ann")
	require.NoError(t, err)
	_, err = f.svc.JoinGame(ctx, "NONE", "Bob")
	require.Error(t, err)

	ended := f.spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "GameService.CreateGame", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, "GameService.JoinGame", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestGameService_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	const n = 40
	var wg sync.WaitGroup
	got := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := f.svc.CreateGame(ctx, "Host")
			if assert.NoError(t, err) {
				got <- info.Code
			}
		}()
	}
	wg.Wait()
	close(got)

	seen := make(map[string]bool)
	for code := range got {
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, f.games.Count())
}
