package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/spf13/jwalterweatherman"

	"github.com/wricardo/snake-party/game/codegen"
	"github.com/wricardo/snake-party/game/session"
)

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrCodeSpaceExhausted = errors.New("no free game code found")
	ErrInvalidCode        = errors.New("invalid game code")
)

// Catalog is the process-wide code to session table.
type Catalog struct {
	generate    codegen.Generator
	maxAttempts int

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New creates a catalog drawing candidate codes from gen. maxAttempts bounds
// the create loop; zero or less retries until a free code is found.
func New(gen codegen.Generator, maxAttempts int) *Catalog {
	if gen == nil {
		gen = codegen.New(codegen.DefaultLength)
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Catalog{
		generate:    gen,
		maxAttempts: maxAttempts,
		sessions:    make(map[string]*session.Session),
	}
}

// NormalizeCode canonicalizes a typed code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CodeExists reports whether a live session owns code.
func (c *Catalog) CodeExists(code string) bool {
	_, ok := c.GetGame(code)
	return ok
}

// GetGame returns the live session registered under code.
func (c *Catalog) GetGame(code string) (*session.Session, bool) {
	c.mu.RLock()
	s, ok := c.sessions[NormalizeCode(code)]
	c.mu.RUnlock()
	if !ok || s.Closed() {
		return nil, false
	}
	return s, true
}

// register starts a session for host under code unless a live session
// already owns it. Check and insert share one critical section.
func (c *Catalog) register(code string, host session.Player) (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sessions[code]; ok && !existing.Closed() {
		return nil, false
	}
	s := session.New(code, host)
	c.sessions[code] = s
	return s, true
}

// CreateGame registers a new session with host as its only player under the
// first free generated code.
func (c *Catalog) CreateGame(ctx context.Context, host session.Player) (*session.Session, error) {
	if host.Name == "" {
		return nil, session.ErrEmptyPlayerName
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code := NormalizeCode(c.generate())
		if code == "" {
			return nil, fmt.Errorf("%w: generator returned an empty code", ErrInvalidCode)
		}
		if s, ok := c.register(code, host); ok {
			if attempt > 1 {
				log.DEBUG.Printf("[Catalog] code %s claimed after %d attempts", code, attempt)
			}
			return s, nil
		}

		if c.maxAttempts > 0 && attempt >= c.maxAttempts {
			return nil, fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, attempt)
		}
	}
}

// ListActiveGames snapshots every live session, sorted by code. Each entry
// is consistent on its own; entries are not taken at one instant.
func (c *Catalog) ListActiveGames(ctx context.Context) []session.GameSnapshot {
	c.mu.RLock()
	sessions := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.RUnlock()

	games := make([]session.GameSnapshot, 0, len(sessions))
	for _, s := range sessions {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			// closed between listing and snapshot
			continue
		}
		games = append(games, snap)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Code < games[j].Code })
	return games
}

// Abandonment reports the outcome of AbandonPlayer.
type Abandonment struct {
	Code      string
	SessionID string
	Removed   bool
	Closed    bool
	// Summary is set when Closed is true.
	Summary session.Summary
}

// AbandonPlayer removes name from the game registered under code. When the
// roster empties the session is deregistered. Missing games and players are
// no-ops.
func (c *Catalog) AbandonPlayer(ctx context.Context, code, name string) (Abandonment, error) {
	code = NormalizeCode(code)
	result := Abandonment{Code: code}

	s, ok := c.GetGame(code)
	if !ok {
		return result, nil
	}
	result.SessionID = s.ID()

	removed, closed, err := s.RemovePlayer(ctx, name)
	if errors.Is(err, session.ErrSessionClosed) {
		c.deregister(code, s)
		return result, nil
	}
	if err != nil {
		return result, err
	}

	result.Removed = removed
	if closed {
		c.deregister(code, s)
		result.Closed = true
		result.Summary = s.Summary()
	}
	return result, nil
}

// deregister removes code only while it still maps to s.
func (c *Catalog) deregister(code string, s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.sessions[code]; ok && current == s {
		delete(c.sessions, code)
		log.DEBUG.Printf("[Catalog] code %s released", code)
	}
}

// Count returns the number of live sessions.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, s := range c.sessions {
		if !s.Closed() {
			n++
		}
	}
	return n
}

// Close stops every session and empties the catalog.
func (c *Catalog) Close() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*session.Session)
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	log.INFO.Printf("[Catalog] closed %d sessions", len(sessions))
}
