// Package session provides the per-game worker that owns a game's roster and
// board state.
//
// The session package implements:
//   - One serial worker goroutine per live game code
//   - Roster operations (add, ready, steer, remove)
//   - Tick-driver updates of snakes and food
//   - Self-teardown when the last player leaves
//
// Core Types:
//
// Session is the single writer of one game's state. Every exported method
// sends a closure to the session's worker and waits for it to finish, so
// operations on one session run one at a time in arrival order while
// operations on different sessions never block each other.
//
// Player is a roster entry. GameSnapshot is an immutable copy of the whole
// session handed to readers.
//
// Lifecycle:
//
// A session is created with its host player already on the roster. When a
// removal empties the roster the worker marks itself closed inside that same
// step. Any request that reaches the worker afterwards fails with
// ErrSessionClosed, so a join racing with teardown either lands before the
// last player leaves or is refused.
//
// Context:
//
// Methods honor ctx only while waiting to hand a request to the worker. Once
// the worker has accepted a request it runs to completion.
//
// Usage:
//
//	s := session.New("K7QX", session.Player{Name: "Ann", Snake: body})
//	if err := s.AddPlayer(ctx, session.Player{Name: "Bob", Snake: other}); err != nil {
//		return err
//	}
//	snap, _ := s.Snapshot(ctx)
package session
