// Package api provides HTTP REST API handlers for the snake party server.
//
// The api package implements:
//   - Lobby endpoints (create, join, ready, abandon)
//   - Game reads (list, single snapshot, player orientation)
//   - Tick-driver endpoints for snakes and food
//   - The finished-game archive
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Lobby:
//   - POST /api/games - Create a game, body {"host_name": "Ann"}
//   - POST /api/games/{code}/players - Join, body {"player_name": "Bob"}
//   - POST /api/games/{code}/players/{name}/ready - Mark a player ready
//   - DELETE /api/games/{code}/players/{name} - Abandon a game
//
// Game State:
//   - GET /api/games - List active games
//   - GET /api/games/{code} - Get one game
//   - GET /api/games/{code}/players/{name}/orientation?fallback=up - Steering input
//   - PUT /api/games/{code}/players/{name}/orientation - Steer, body {"orientation": "left"}
//
// Tick Driver:
//   - PUT /api/games/{code}/states - Replace snakes, body [{"name": ..., "snake": ...}]
//   - PUT /api/games/{code}/food - Replace food, body {"bites": [...]}
//
// Other:
//   - GET /api/history?limit=20 - Recently finished games
//   - GET /health - Liveness
//   - GET /ws?game={code} - WebSocket snapshot stream
//
// Errors:
//
// Errors are returned as {"error": "message"} with a status derived from the
// service error: 400 for invalid input, 404 for unknown games or players,
// 409 for a taken player name, 503 when no free game code could be found and
// 500 otherwise.
//
// Every successful change to a game is followed by a snapshot broadcast to the
// game's WebSocket subscribers.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	server := api.NewServer(gameService, hub)
//	http.ListenAndServe(":8080", server)
package api
