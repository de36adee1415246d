// Command lobbybot drives lobby traffic against a running snake party server.
//
// Every bot hosts a game, fills it with joiners, readies and steers each
// player, then abandons the game until it closes. Bots run concurrently so the
// catalog sees overlapping creates and teardowns.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/spf13/jwalterweatherman"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/snake-party/game/service"
	"github.com/wricardo/snake-party/game/session"
	"github.com/wricardo/snake-party/game/snake"
)

var errGameStillOpen = errors.New("game still listed after every player left")

// Client calls the lobby REST API
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
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

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, errResp["error"])
	}
	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func playerPath(code, name string, parts ...string) string {
	p := "/api/games/" + url.PathEscape(code) + "/players/" + url.PathEscape(name)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (c *Client) CreateGame(ctx context.Context, host string) (*service.GameInfo, error) {
	var info service.GameInfo
	if err := c.do(ctx, "POST", "/api/games", map[string]string{"host_name": host}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) JoinGame(ctx context.Context, code, name string) (*service.GameInfo, error) {
	var info service.GameInfo
	path := "/api/games/" + url.PathEscape(code) + "/players"
	if err := c.do(ctx, "POST", path, map[string]string{"player_name": name}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Ready(ctx context.Context, code, name string) error {
	return c.do(ctx, "POST", playerPath(code, name, "ready"), nil, nil)
}

func (c *Client) Steer(ctx context.Context, code, name string, o snake.Orientation) error {
	return c.do(ctx, "PUT", playerPath(code, name, "orientation"), map[string]snake.Orientation{"orientation": o}, nil)
}

func (c *Client) Abandon(ctx context.Context, code, name string) error {
	return c.do(ctx, "DELETE", playerPath(code, name), nil, nil)
}

func (c *Client) GetGame(ctx context.Context, code string) (*session.GameSnapshot, error) {
	var game session.GameSnapshot
	if err := c.do(ctx, "GET", "/api/games/"+url.PathEscape(code), nil, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (c *Client) ListGames(ctx context.Context) ([]session.GameSnapshot, error) {
	var resp struct {
		Games []session.GameSnapshot `json:"games"`
	}
	if err := c.do(ctx, "GET", "/api/games", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Games, nil
}

// Stats counts what the bots did.
type Stats struct {
	Games  atomic.Int64
	Joins  atomic.Int64
	Closed atomic.Int64
	Errors atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("games=%d joins=%d closed=%d errors=%d",
		s.Games.Load(), s.Joins.Load(), s.Closed.Load(), s.Errors.Load())
}

func botName() string {
	return "bot-" + uuid.NewString()[:8]
}

// playRound hosts one game with the given number of players and tears it down.
func playRound(ctx context.Context, c *Client, players int, stats *Stats) error {
	host := botName()
	info, err := c.CreateGame(ctx, host)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	stats.Games.Add(1)
	log.DEBUG.Printf("[Bot %s] hosting %s", host, info.Code)

	names := []string{host}
	for i := 1; i < players; i++ {
		name := botName()
		if _, err := c.JoinGame(ctx, info.Code, name); err != nil {
			return fmt.Errorf("join %s: %w", info.Code, err)
		}
		stats.Joins.Add(1)
		names = append(names, name)
	}

	for i, name := range names {
		if err := c.Ready(ctx, info.Code, name); err != nil {
			return fmt.Errorf("ready %s/%s: %w", info.Code, name, err)
		}
		o := snake.Orientations[i%len(snake.Orientations)]
		if err := c.Steer(ctx, info.Code, name, o); err != nil {
			return fmt.Errorf("steer %s/%s: %w", info.Code, name, err)
		}
	}

	game, err := c.GetGame(ctx, info.Code)
	if err != nil {
		return fmt.Errorf("get %s: %w", info.Code, err)
	}
	if !game.Ready || len(game.Players) != players {
		return fmt.Errorf("game %s: ready=%t players=%d, want ready with %d", info.Code, game.Ready, len(game.Players), players)
	}

	for _, name := range names {
		if err := c.Abandon(ctx, info.Code, name); err != nil {
			return fmt.Errorf("abandon %s/%s: %w", info.Code, name, err)
		}
	}

	// the code may already belong to a new game, so compare session IDs
	if game, err := c.GetGame(ctx, info.Code); err == nil && game.SessionID == info.SessionID {
		return fmt.Errorf("%w: %s", errGameStillOpen, info.Code)
	}
	stats.Closed.Add(1)
	return nil
}

// Options controls a lobbybot run.
type Options struct {
	URL     string
	Bots    int
	Rounds  int
	Players int
}

// Run starts opts.Bots concurrent bots, each playing opts.Rounds rounds.
func Run(ctx context.Context, opts Options) (*Stats, error) {
	if opts.Bots <= 0 || opts.Rounds <= 0 || opts.Players <= 0 {
		return nil, fmt.Errorf("bots, rounds and players must be positive")
	}

	c := NewClient(opts.URL)
	stats := &Stats{}

	var wg sync.WaitGroup
	for b := 0; b < opts.Bots; b++ {
		wg.Add(1)
		go func(bot int) {
			defer wg.Done()
			for r := 0; r < opts.Rounds; r++ {
				if ctx.Err() != nil {
					return
				}
				if err := playRound(ctx, c, opts.Players, stats); err != nil {
					stats.Errors.Add(1)
					log.WARN.Printf("[Bot %d] round %d: %v", bot, r, err)
				}
			}
		}(b)
	}
	wg.Wait()

	return stats, ctx.Err()
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "lobbybot",
		Usage: "Drive concurrent create/join/ready/abandon traffic against a lobby server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "Base URL of the server",
				Sources: cli.EnvVars("LOBBYBOT_URL"),
			},
			&cli.IntFlag{Name: "bots", Value: 4, Usage: "Concurrent bots"},
			&cli.IntFlag{Name: "rounds", Value: 10, Usage: "Games hosted per bot"},
			&cli.IntFlag{Name: "players", Value: 3, Usage: "Players per game, host included"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("debug") {
				log.SetStdoutThreshold(log.LevelDebug)
			}

			start := time.Now()
			stats, err := Run(ctx, Options{
				URL:     cmd.String("url"),
				Bots:    int(cmd.Int("bots")),
				Rounds:  int(cmd.Int("rounds")),
				Players: int(cmd.Int("players")),
			})
			if stats != nil {
				log.INFO.Printf("[Lobbybot] %s in %s", stats, time.Since(start).Round(time.Millisecond))
				if n := stats.Errors.Load(); n > 0 && err == nil {
					err = fmt.Errorf("%d rounds failed", n)
				}
			}
			return err
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.ERROR.Printf("[Lobbybot] %v", err)
		os.Exit(1)
	}
}
