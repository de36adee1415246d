package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/snake-party/game/history"
	"github.com/wricardo/snake-party/game/service"
	"github.com/wricardo/snake-party/game/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Snake Party",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Snake Party - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Games are identified by a short code (for example K7QX). A host creates a game,
other players join with the code, and every player marks itself ready.

AVAILABLE TOOLS:
- create_game: Create a game and become its host
- join_game: Join a game by code
- ready_player: Mark a player ready
- abandon_player: Leave a game (the game closes when the last player leaves)
- list_games: List active games
- get_game: Show players, readiness, snakes and food of a game
- set_orientation: Steer a snake (up/down/left/right)
- match_history: List recently finished games
- game_instructions: Explain the lobby flow`),
	)

	c.registerTools()
}

func codeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Game code (case-insensitive)",
	}
}

func playerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Lobby
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Create a new game hosted by the given player",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"host_name": playerProperty("Display name of the host"),
			},
			Required: []string{"host_name"},
		},
	}, c.handleCreateGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Join an existing game by its code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code":        codeProperty(),
				"player_name": playerProperty("Display name, unique within the game"),
			},
			Required: []string{"code", "player_name"},
		},
	}, c.handleJoinGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "ready_player",
		Description: "Mark a player as ready",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code":        codeProperty(),
				"player_name": playerProperty("Player to mark ready"),
			},
			Required: []string{"code", "player_name"},
		},
	}, c.handleReadyPlayer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "abandon_player",
		Description: "Remove a player from a game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code":        codeProperty(),
				"player_name": playerProperty("Player leaving the game"),
			},
			Required: []string{"code", "player_name"},
		},
	}, c.handleAbandonPlayer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List all active games",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game",
		Description: "Get a snapshot of a game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": codeProperty(),
			},
			Required: []string{"code"},
		},
	}, c.handleGetGame)

	// Steering
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_orientation",
		Description: "Steer a player's snake",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code":        codeProperty(),
				"player_name": playerProperty("Player steering"),
				"orientation": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"up", "down", "left", "right"},
					"description": "New heading",
				},
			},
			Required: []string{"code", "player_name", "orientation"},
		},
	}, c.handleSetOrientation)

	// Archive
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "match_history",
		Description: "List recently finished games",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of games (default 20)",
				},
			},
		},
	}, c.handleMatchHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Explain how games are created, joined and played",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func gamePath(code string, parts ...string) string {
	p := "/api/games/" + url.PathEscape(strings.TrimSpace(code))
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func stringArg(request mcp.CallToolRequest, key string) string {
	v, _ := request.GetArguments()[key].(string)
	return v
}

// Tool handlers

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{"host_name": stringArg(request, "host_name")}

	var info service.GameInfo
	if err := c.apiCall(ctx, "POST", "/api/games", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created game: %s\nHost: %s\nSession: %s\nShare the code so others can join.\n",
		info.Code, info.PlayerName, info.SessionID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := stringArg(request, "code")
	body := map[string]string{"player_name": stringArg(request, "player_name")}

	var info service.GameInfo
	if err := c.apiCall(ctx, "POST", gamePath(code, "players"), body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s joined game %s\n", info.PlayerName, info.Code)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleReadyPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := stringArg(request, "code")
	name := stringArg(request, "player_name")

	if err := c.apiCall(ctx, "POST", gamePath(code, "players", name, "ready"), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s is ready in game %s\n", name, strings.ToUpper(code))), nil
}

func (c *Client) handleAbandonPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := stringArg(request, "code")
	name := stringArg(request, "player_name")

	if err := c.apiCall(ctx, "DELETE", gamePath(code, "players", name), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s left game %s\n", name, strings.ToUpper(code))), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int                    `json:"count"`
		Games []session.GameSnapshot `json:"games"`
	}

	if err := c.apiCall(ctx, "GET", "/api/games", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Games (%d):\n\n", response.Count)
	for _, g := range response.Games {
		status := "waiting"
		if g.Ready {
			status = "all ready"
		}
		result += fmt.Sprintf("- %s (%d players, %s, created %s)\n",
			g.Code, len(g.Players), status, g.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := stringArg(request, "code")

	var game session.GameSnapshot
	if err := c.apiCall(ctx, "GET", gamePath(code), nil, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGame(&game)), nil
}

func (c *Client) handleSetOrientation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := stringArg(request, "code")
	name := stringArg(request, "player_name")
	body := map[string]string{"orientation": stringArg(request, "orientation")}

	var response struct {
		Orientation string `json:"orientation"`
	}
	if err := c.apiCall(ctx, "PUT", gamePath(code, "players", name, "orientation"), body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s now heading %s\n", name, response.Orientation)), nil
}

func (c *Client) handleMatchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/history"
	if limit, ok := request.GetArguments()["limit"].(float64); ok && limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, int(limit))
	}

	var response struct {
		Count   int             `json:"count"`
		Matches []history.Match `json:"matches"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(response.Matches)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `SNAKE PARTY

LOBBY FLOW:
1. create_game with a host_name. The reply contains the game code.
2. Other players call join_game with the code and a unique player_name.
   Names are 1-24 characters; codes are case-insensitive.
3. Each player calls ready_player. The game reports "all ready" once every
   player in it is ready.
4. A player leaves with abandon_player. When the last player leaves the game
   is closed and its code may be reused.

STEERING:
set_orientation changes the heading of your snake: up, down, left or right.
The board origin is the top-left corner; "up" moves towards row 0.

OBSERVING:
get_game shows every player's readiness, snake and heading plus the food on
the board. match_history lists games that have already ended.`

	return mcp.NewToolResultText(instructions), nil
}

func formatGame(game *session.GameSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game %s (session %s)\n", game.Code, game.SessionID)
	if game.Ready {
		b.WriteString("Status: all players ready\n")
	} else {
		b.WriteString("Status: waiting for players\n")
	}

	fmt.Fprintf(&b, "\nPlayers (%d):\n", len(game.Players))
	for _, p := range game.Players {
		ready := " "
		if p.Ready {
			ready = "x"
		}
		fmt.Fprintf(&b, "  [%s] %s heading %s", ready, p.Name, p.Orientation)
		if head, ok := p.Snake.Head(); ok {
			fmt.Fprintf(&b, ", head (%d,%d), length %d", head.X, head.Y, p.Snake.Len())
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nFood (%d bites):", len(game.Food.Bites))
	for _, bite := range game.Food.Bites {
		fmt.Fprintf(&b, " (%d,%d)", bite.Position.X, bite.Position.Y)
	}
	b.WriteString("\n")
	return b.String()
}

func formatHistory(matches []history.Match) string {
	if len(matches) == 0 {
		return "No finished games recorded.\n"
	}
	result := fmt.Sprintf("Finished Games (%d):\n\n", len(matches))
	for _, m := range matches {
		result += fmt.Sprintf("- %s hosted by %s, %d players, %s\n",
			m.Code, m.Host, m.PlayersJoined, m.EndedAt.Sub(m.CreatedAt).Round(time.Second))
	}
	return result
}
