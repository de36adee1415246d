package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/snake-party/game/codegen"
	"github.com/wricardo/snake-party/game/session"
	"github.com/wricardo/snake-party/game/snake"
)

func host(name string) session.Player {
	return session.Player{
		Name:  name,
		Snake: snake.Snake{Body: []snake.Point{{X: 1, Y: 1}}, Orientation: snake.Up},
	}
}

func newTestCatalog(t *testing.T, gen codegen.Generator, maxAttempts int) *Catalog {
	t.Helper()
	c := New(gen, maxAttempts)
	t.Cleanup(c.Close)
	return c
}

func TestCatalog_CreateGame(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, codegen.Sequence("ABCD"), 0)

	s, err := c.CreateGame(ctx, host("Ann"))
	require.NoError(t, err)
	assert.Equal(t, "ABCD", s.Code())
	assert.True(t, c.CodeExists("ABCD"))
	assert.Equal(t, 1, c.Count())

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Ann", snap.Players[0].Name)
}

func TestCatalog_CreateGame_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	c := newTestCatalog(t, codegen.Sequence("AAAA", "AAAA", "AAAA", "BBBB"), 0)

	first, err := c.CreateGame(ctx, host("Ann"))
	require.NoError(t, err)
	assert.Equal(t, "AAAA", first.Code())

	counting := func() string {
		calls.Add(1)
		return c.generate()
	}
	c.generate = counting

	second, err := c.CreateGame(ctx, host("Bob"))
	require.NoError(t, err)
	assert.Equal(t, "BBBB", second.Code())
	assert.Equal(t, int32(3), calls.Load())
	assert.NotSame(t, first, second)
}

func TestCatalog_CreateGame_MaxAttempts(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, codegen.Sequence("ZZZZ"), 3)

	_, err := c.CreateGame(ctx, host("Ann"))
	require.NoError(t, err)

	_, err = c.CreateGame(ctx, host("Bob"))
	assert.True(t, errors.Is(err, ErrCodeSpaceExhausted))
	assert.Equal(t, 1, c.Count())
}

func TestCatalog_CreateGame_ContextCancelled(t *testing.T) {
	c := newTestCatalog(t, codegen.Sequence("ZZZZ"), 0)
	_, err := c.CreateGame(context.Background(), host("Ann"))
	require.NoError(t, err)

	// the only code is taken, so the unbounded loop spins until cancelled
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	c.generate = func() string {
		if calls.Add(1) == 10 {
			cancel()
		}
		return "ZZZZ"
	}
	_, err = c.CreateGame(ctx, host("Bob"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCatalog_CreateGame_Invalid(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, codegen.Sequence(""), 0)

	_, err := c.CreateGame(ctx, host(""))
	assert.True(t, errors.Is(err, session.ErrEmptyPlayerName))

	_, err = c.CreateGame(ctx, host("Ann"))
	assert.True(t, errors.Is(err, ErrInvalidCode))
}

func TestCatalog_ConcurrentCreateUniqueCodes(t *testing.T) {
	ctx := context.Background()
	// a four-code space forces heavy collisions
	codes := []string{"AAAA", "BBBB", "CCCC", "DDDD"}
	var next atomic.Int32
	gen := func() string {
		return codes[int(next.Add(1))%len(codes)]
	}
	c := newTestCatalog(t, gen, 0)

	var wg sync.WaitGroup
	results := make(chan string, len(codes))
	for i := 0; i < len(codes); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.CreateGame(ctx, host(fmt.Sprintf("host%d", i)))
			if !assert.NoError(t, err) {
				return
			}
			results <- s.Code()
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for code := range results {
		assert.False(t, seen[code], "code %s handed out twice", code)
		seen[code] = true
	}
	assert.Len(t, seen, len(codes))
	assert.Equal(t, len(codes), c.Count())
}

func TestCatalog_GetGame(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, codegen.Sequence("K7QX"), 0)
	created, err := c.CreateGame(ctx, host("Ann"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		code  string
		found bool
	}{
		{"exact", "K7QX", true},
		{"lower case", "k7qx", true},
		{"padded", "  K7QX ", true},
		{"unknown", "NOPE", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := c.GetGame(tt.code)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Same(t, created, s)
			}
			assert.Equal(t, tt.found, c.CodeExists(tt.code))
		})
	}
}

func TestCatalog_ClosedSessionIsAbsent(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, codegen.Sequence("DEAD", "DEAD"), 0)
	s, err := c.CreateGame(ctx, host("Ann"))
	require.NoError(t, err)

	// closed but not yet deregistered
	s.Close()
	assert.False(t, c.CodeExists("DEAD"))
	assert.Equal(t, 0, c.Count())
	assert.Empty(t, c.ListActiveGames(ctx))

	// the code can be claimed again
	fresh, err := c.CreateGame(ctx, host("Bob"))
	require.NoError(t, err)
	assert.Equal(t, "DEAD", fresh.Code())
	assert.NotEqual(t, s.ID(), fresh.ID())
}

func TestCatalog_ListActiveGames(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, codegen.Sequence("CCCC", "AAAA", "BBBB"), 0)

	assert.Empty(t, c.ListActiveGames(ctx))

	for _, name := range []string{"Cat", "Ann", "Bob"} {
		_, err := c.CreateGame(ctx, host(name))
		require.NoError(t, err)
	}

	games := c.ListActiveGames(ctx)
	require.Len(t, games, 3)
	assert.Equal(t, "AAAA", games[0].Code)
	assert.Equal(t, "BBBB", games[1].Code)
	assert.Equal(t, "CCCC", games[2].Code)
	assert.Equal(t, "Ann", games[0].Players[0].Name)
}

func TestCatalog_AbandonPlayer(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, codegen.Sequence("ROOM", "ROOM"), 0)
	s, err := c.CreateGame(ctx, host("Ann"))
	require.NoError(t, err)
	require.NoError(t, s.AddPlayer(ctx, session.Player{Name: "Bob"}))

	t.Run("unknown game is a no-op", func(t *testing.T) {
		res, err := c.AbandonPlayer(ctx, "NONE", "Ann")
		require.NoError(t, err)
		assert.False(t, res.Removed)
	})

	t.Run("unknown player is a no-op", func(t *testing.T) {
		res, err := c.AbandonPlayer(ctx, "ROOM", "Zed")
		require.NoError(t, err)
		assert.False(t, res.Removed)
		assert.True(t, c.CodeExists("ROOM"))
	})

	t.Run("game survives while players remain", func(t *testing.T) {
		res, err := c.AbandonPlayer(ctx, "room", "Ann")
		require.NoError(t, err)
		assert.True(t, res.Removed)
		assert.False(t, res.Closed)
		assert.True(t, c.CodeExists("ROOM"))
	})

	t.Run("last player tears the game down", func(t *testing.T) {
		res, err := c.AbandonPlayer(ctx, "ROOM", "Bob")
		require.NoError(t, err)
		assert.True(t, res.Removed)
		assert.True(t, res.Closed)
		assert.Equal(t, "Ann", res.Summary.Host)
		assert.Equal(t, 2, res.Summary.PlayersJoined)
		assert.False(t, c.CodeExists("ROOM"))
		assert.Equal(t, 0, c.Count())
		assert.True(t, s.Closed())
	})

	t.Run("repeat abandon is a no-op", func(t *testing.T) {
		res, err := c.AbandonPlayer(ctx, "ROOM", "Bob")
		require.NoError(t, err)
		assert.False(t, res.Removed)
	})

	t.Run("freed code is reusable", func(t *testing.T) {
		fresh, err := c.CreateGame(ctx, host("Cy"))
		require.NoError(t, err)
		assert.Equal(t, "ROOM", fresh.Code())
	})
}

func TestCatalog_StaleDeregisterKeepsNewSession(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, codegen.Sequence("SAME", "SAME"), 0)

	old, err := c.CreateGame(ctx, host("Ann"))
	require.NoError(t, err)
	old.Close()

	fresh, err := c.CreateGame(ctx, host("Bob"))
	require.NoError(t, err)

	c.deregister("SAME", old)
	got, ok := c.GetGame("SAME")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestCatalog_Close(t *testing.T) {
	ctx := context.Background()
	c := New(codegen.Sequence("AAAA", "BBBB"), 0)
	a, _ := c.CreateGame(ctx, host("Ann"))
	b, _ := c.CreateGame(ctx, host("Bob"))

	c.Close()
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, c.Count())
}
