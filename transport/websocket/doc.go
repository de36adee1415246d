// Package websocket provides the WebSocket transport for the snake party
// server.
//
// The websocket package implements:
//   - Game-scoped subscriptions keyed by game code
//   - Snapshot broadcasting after every change to a game
//   - Steering and ready messages sent by players over the socket
//   - Connection lifecycle management with ping/pong keepalive
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. The hub's Run loop is the only goroutine that
// touches the subscription table or closes a client's send channel; every
// other goroutine talks to it through channels. Each client connection has
// a read pump and a write pump.
//
// Message Protocol:
//
// Messages are JSON-encoded, one message per frame:
//   - Incoming: {"action": "steer", "player": "Ann", "orientation": "up"}
//   - Incoming: {"action": "ready", "player": "Ann"}
//   - Outgoing: {"game_code": "K7QX", "event": "game_update", "game": {...}}
//   - Outgoing: {"game_code": "K7QX", "event": "error", "data": "..."}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//
//	hub.SetMessageHandler(func(ctx context.Context, code string, msg websocket.ClientMessage) error {
//		return nil
//	})
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("game"))
//	})
package websocket
