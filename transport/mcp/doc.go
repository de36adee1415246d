// Package mcp exposes the snake party lobby to AI agents over the Model
// Context Protocol.
//
// The mcp package implements:
//   - A thin MCP server that proxies every tool call to the REST API
//   - Tool definitions for the lobby and steering operations
//   - Plain-text formatting of game snapshots for agents
//
// MCP Tools:
//
// The package exposes the following tools:
//   - create_game: Create a game hosted by a named player
//   - join_game: Join an existing game by its code
//   - ready_player: Mark a player ready
//   - abandon_player: Remove a player from a game
//   - list_games: List all active games
//   - get_game: Get a snapshot of one game
//   - set_orientation: Steer a player's snake
//   - match_history: List recently finished games
//   - game_instructions: Describe the lobby flow
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: The /mcp endpoint of the API server
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
