// Package catalog maps human-shareable game codes to live game sessions.
//
// The catalog package implements:
//   - Atomic insert-if-absent registration of new games
//   - The create loop that retries generated codes until one is free
//   - Case-insensitive lookup of codes typed by players
//   - Listing of active games as snapshots
//   - Player abandonment with deregistration of emptied games
//
// Core Types:
//
// Catalog is the only state shared across games. It holds one mutex-guarded
// map from code to *session.Session. The existence check and the
// registration of a new session happen under a single lock acquisition, so
// two concurrent creators can never both claim the same code.
//
// Closed Sessions:
//
// A session whose roster emptied closes itself before the catalog removes it.
// The catalog treats such sessions as absent in every lookup, and removes
// them with a compare-and-delete so a newer session reusing the code is never
// evicted by a stale teardown.
//
// Usage:
//
//	cat := catalog.New(codegen.New(4), 0)
//	code, err := cat.CreateGame(ctx, session.Player{Name: "Ann", Snake: s})
//	if err != nil {
//		return err
//	}
//	sess, ok := cat.GetGame(code)
package catalog
