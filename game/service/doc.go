// Package service provides the boundary operations of the snake party
// server.
//
// The service package implements:
//   - Game creation and joining with player name validation
//   - Roster operations routed to the addressed session
//   - Tick-driver updates of snakes and food
//   - Lifecycle events and the finished-game archive
//
// Core Interfaces:
//
// GameService is the interface every transport (HTTP, WebSocket, MCP) calls.
// GameCatalog is the code to session table it routes through. EventPublisher
// and HistoryRecorder are optional sinks; nil sinks are replaced by no-ops.
//
// Architecture:
//
// The service layer sits between the transports and the catalog. It owns no
// game state itself: creation goes through the catalog's create loop, and
// everything addressed to a code is forwarded to that code's session, which
// serializes it. A session that tore down while a request was in flight is
// reported as ErrGameNotFound, the same as a code that never existed.
//
// Each operation runs inside an OpenTelemetry span. Sink failures are logged
// and never fail the operation.
//
// Usage:
//
//	games := catalog.New(codegen.New(4), 0)
//	svc := service.NewGameService(games, service.Options{})
//
//	info, err := svc.CreateGame(ctx, "Ann")
//	if err != nil {
//		log.Fatal(err)
//	}
//	_, err = svc.JoinGame(ctx, info.Code, "Bob")
package service
