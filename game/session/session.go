package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/spf13/jwalterweatherman"

	"github.com/wricardo/snake-party/game/snake"
)

// Session owns one game's roster and food. All state below requests is
// touched only by the worker goroutine.
type Session struct {
	code      string
	id        string
	host      string
	createdAt time.Time

	requests  chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	players []*Player
	food    snake.Food
	joined  int
	endedAt time.Time
}

// New starts a session for code with host as its first player.
func New(code string, host Player) *Session {
	host = host.clone()
	if host.Orientation == "" {
		host.Orientation = host.Snake.Orientation
	}
	s := &Session{
		code:      code,
		id:        uuid.NewString(),
		host:      host.Name,
		createdAt: time.Now().UTC(),
		requests:  make(chan func()),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		players:   []*Player{&host},
		food:      snake.EmptyFood(),
		joined:    1,
	}
	go s.run()
	log.DEBUG.Printf("[Session %s] started (id=%s, host=%s)", code, s.id, host.Name)
	return s
}

// Code returns the game code the session was registered under.
func (s *Session) Code() string { return s.code }

// ID returns the unique instance id of the session.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session started.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Done is closed once the session has torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Closed reports whether the session has torn down.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close stops the worker. Pending and later requests fail with
// ErrSessionClosed.
func (s *Session) Close() {
	s.shutdown()
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.endedAt = time.Now().UTC()
		close(s.done)
	})
}

func (s *Session) run() {
	defer func() {
		close(s.stopped)
		log.DEBUG.Printf("[Session %s] worker stopped", s.code)
	}()
	for {
		select {
		case fn := <-s.requests:
			fn()
		case <-s.done:
			return
		}
	}
}

// do runs fn on the worker and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func() error) error {
	var err error
	finished := make(chan struct{})
	req := func() {
		defer close(finished)
		if s.Closed() {
			err = ErrSessionClosed
			return
		}
		err = fn()
	}

	select {
	case s.requests <- req:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return err
}

func (s *Session) find(name string) (int, *Player) {
	for i, p := range s.players {
		if p.Name == name {
			return i, p
		}
	}
	return -1, nil
}

// AddPlayer appends p to the roster. Names are compared exactly.
func (s *Session) AddPlayer(ctx context.Context, p Player) error {
	if p.Name == "" {
		return ErrEmptyPlayerName
	}
	p = p.clone()
	p.Ready = false
	if p.Orientation == "" {
		p.Orientation = p.Snake.Orientation
	}
	return s.do(ctx, func() error {
		if _, existing := s.find(p.Name); existing != nil {
			return ErrNameConflict
		}
		s.players = append(s.players, &p)
		s.joined++
		return nil
	})
}

// ReadyPlayer marks the named player ready.
func (s *Session) ReadyPlayer(ctx context.Context, name string) error {
	return s.do(ctx, func() error {
		_, p := s.find(name)
		if p == nil {
			return ErrPlayerNotFound
		}
		p.Ready = true
		return nil
	})
}

// GetPlayerOrientation returns the named player's steering input. It reports
// false when the player or the session is gone.
func (s *Session) GetPlayerOrientation(ctx context.Context, name string) (snake.Orientation, bool) {
	var (
		o     snake.Orientation
		found bool
	)
	err := s.do(ctx, func() error {
		if _, p := s.find(name); p != nil {
			o, found = p.Orientation, true
		}
		return nil
	})
	if err != nil {
		return "", false
	}
	return o, found
}

// SetPlayerOrientation records the named player's steering input.
func (s *Session) SetPlayerOrientation(ctx context.Context, name string, o snake.Orientation) error {
	if !o.Valid() {
		return ErrInvalidOrientation
	}
	return s.do(ctx, func() error {
		_, p := s.find(name)
		if p == nil {
			return ErrPlayerNotFound
		}
		p.Orientation = o
		return nil
	})
}

// UpdatePlayerStates replaces the snakes of the named players in one step.
// States for players not on the roster are ignored.
func (s *Session) UpdatePlayerStates(ctx context.Context, states []snake.PlayerState) error {
	updates := make([]snake.PlayerState, len(states))
	for i, st := range states {
		updates[i] = snake.PlayerState{Name: st.Name, Snake: st.Snake.Clone()}
	}
	return s.do(ctx, func() error {
		for _, st := range updates {
			if _, p := s.find(st.Name); p != nil {
				p.Snake = st.Snake
			}
		}
		return nil
	})
}

// UpdateFood replaces the food on the board.
func (s *Session) UpdateFood(ctx context.Context, food snake.Food) error {
	food = food.Clone()
	return s.do(ctx, func() error {
		s.food = food
		return nil
	})
}

// RemovePlayer takes the named player off the roster. When the roster becomes
// empty the session closes in the same step and closed is true.
func (s *Session) RemovePlayer(ctx context.Context, name string) (removed, closed bool, err error) {
	err = s.do(ctx, func() error {
		i, p := s.find(name)
		if p == nil {
			return nil
		}
		s.players = append(s.players[:i], s.players[i+1:]...)
		removed = true
		if len(s.players) == 0 {
			s.shutdown()
			closed = true
		}
		return nil
	})
	return removed, closed, err
}

// Snapshot returns a copy of the session's state.
func (s *Session) Snapshot(ctx context.Context) (GameSnapshot, error) {
	var snap GameSnapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

func (s *Session) snapshot() GameSnapshot {
	snap := GameSnapshot{
		Code:      s.code,
		SessionID: s.id,
		Active:    true,
		Ready:     len(s.players) > 0,
		Players:   make([]Player, 0, len(s.players)),
		Food:      s.food.Clone(),
		CreatedAt: s.createdAt,
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, p.clone())
		if !p.Ready {
			snap.Ready = false
		}
	}
	return snap
}

// Summary describes the session once its worker has stopped. It blocks
// until then.
func (s *Session) Summary() Summary {
	<-s.stopped
	return Summary{
		Code:          s.code,
		SessionID:     s.id,
		Host:          s.host,
		PlayersJoined: s.joined,
		CreatedAt:     s.createdAt,
		EndedAt:       s.endedAt,
	}
}
