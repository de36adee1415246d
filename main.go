// Command snake-party starts the multiplayer snake lobby server.
//
// It supports two modes:
//  1. "serve" (default): runs the HTTP server exposing the REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp": runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, debug logging, and optional ngrok tunneling for
// easy external access during development. Game tunables come from the
// environment (see package config).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/spf13/jwalterweatherman"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/snake-party/api"
	"github.com/wricardo/snake-party/game/catalog"
	"github.com/wricardo/snake-party/game/codegen"
	"github.com/wricardo/snake-party/game/config"
	"github.com/wricardo/snake-party/game/history"
	"github.com/wricardo/snake-party/game/service"
	"github.com/wricardo/snake-party/game/snake"
	"github.com/wricardo/snake-party/telemetry"
	"github.com/wricardo/snake-party/transport/events"
	"github.com/wricardo/snake-party/transport/mcp"
	"github.com/wricardo/snake-party/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Snake Party Server"
)

// main loads .env, then runs the command line until a signal arrives.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.WARN.Printf("[Main] error loading .env file: %v", err)
		}
	} else {
		log.INFO.Println("[Main] loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.ERROR.Printf("[Main] %v", err)
		os.Exit(1)
	}
}

// newCommand builds the command tree. The root action runs the HTTP server.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "snake-party",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			setupLogging(cmd.Bool("debug"), os.Stdout)
			return serve(ctx, cmd)
		},
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					setupLogging(cmd.Bool("debug"), os.Stdout)
					return serve(ctx, cmd)
				},
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					// stdout carries the MCP protocol
					setupLogging(cmd.Bool("debug"), os.Stderr)
					return runStdioMCP(ctx, cmd)
				},
			},
		},
	}
}

func setupLogging(debug bool, out io.Writer) {
	log.SetStdoutOutput(out)
	if debug {
		log.SetLogThreshold(log.LevelDebug)
		log.SetStdoutThreshold(log.LevelDebug)
		return
	}
	log.SetLogThreshold(log.LevelInfo)
	log.SetStdoutThreshold(log.LevelInfo)
}

// services bundles everything the servers share so it can be closed in one
// place.
type services struct {
	games     *catalog.Catalog
	game      service.GameService
	history   *history.Store
	events    events.Publisher
	telemetry func(context.Context) error
}

// initializeServices wires the catalog and the game service from cfg. The
// history archive and the event publisher are only opened when configured.
func initializeServices(ctx context.Context, cfg config.Config) (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	s := &services{
		events:    events.Discard{},
		telemetry: shutdownTelemetry,
	}
	opts := service.Options{
		MaxNameLength: cfg.MaxNameLength,
		Snakes:        snake.NewFactory(cfg.BoardWidth, cfg.BoardHeight, cfg.SnakeLength, nil),
	}

	if cfg.HistoryEnabled() {
		store, err := history.Open(ctx, cfg.HistoryDBPath)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		s.history = store
		opts.History = store
		log.INFO.Printf("[Main] recording finished games to %s", cfg.HistoryDBPath)
	}

	if cfg.EventsEnabled() {
		publisher, err := events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		s.events = publisher
		log.INFO.Printf("[Main] publishing lifecycle events to %s (prefix %q)", cfg.NATSURL, cfg.NATSSubjectPrefix)
	}
	opts.Events = s.events

	s.games = catalog.New(codegen.New(cfg.CodeLength), cfg.CodeMaxAttempts)
	s.game = service.NewGameService(s.games, opts)
	return s, nil
}

// Close tears down every running game first so their summaries still reach
// the history archive and the event stream.
func (s *services) Close(ctx context.Context) {
	if s.games != nil {
		s.games.Close()
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			log.WARN.Printf("[Main] failed to close event publisher: %v", err)
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			log.WARN.Printf("[Main] failed to close history: %v", err)
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry(ctx); err != nil {
			log.WARN.Printf("[Main] failed to flush telemetry: %v", err)
		}
	}
}

// newHandler combines the API server and the /mcp proxy endpoint.
func newHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()

	// Mount API server at root
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// serve runs the HTTP server with REST API, WebSocket hub, and an /mcp proxy
// endpoint until ctx is cancelled. With --ngrok it also provisions a public
// tunnel.
func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	svc, err := initializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	apiServer := api.NewServer(svc.game, hub)

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	handler := newHandler(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.INFO.Printf("[Main] starting %s v%s", AppName, Version)

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.INFO.Printf("[Main] HTTP server listening on %s", addr)
		log.INFO.Printf("[Main] REST API: http://%s/api", addr)
		log.INFO.Printf("[Main] WebSocket: ws://%s/ws?game=<code>", addr)
		log.INFO.Printf("[Main] MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	tunnelCtx, cancelTunnel := context.WithCancel(ctx)
	defer cancelTunnel()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTunnel(tunnelCtx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), handler)
		}()
	}

	select {
	case <-ctx.Done():
		log.INFO.Println("[Main] shutting down...")
	case err = <-serveErr:
		log.ERROR.Printf("[Main] HTTP server failed: %v", err)
	}
	cancelTunnel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.WARN.Printf("[Main] HTTP server shutdown error: %v", shutdownErr)
	}
	svc.Close(shutdownCtx)
	hub.Stop()

	wg.Wait()
	log.INFO.Println("[Main] server stopped")
	return err
}

// runTunnel serves handler through an ngrok endpoint until ctx is cancelled.
func runTunnel(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.WARN.Println("[Ngrok] enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	log.INFO.Println("[Ngrok] starting tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.INFO.Printf("[Ngrok] using custom domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.ERROR.Printf("[Ngrok] failed to start tunnel: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.WARN.Printf("[Ngrok] failed to close tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.INFO.Printf("[Ngrok] tunnel established: %s", ngrokURL)
	log.INFO.Printf("[Ngrok]   REST API: %s/api", ngrokURL)
	log.INFO.Printf("[Ngrok]   WebSocket: %s/ws?game=<code>", ngrokURL)
	log.INFO.Printf("[Ngrok]   MCP endpoint: %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.WARN.Printf("[Ngrok] server error: %v", err)
	}
	log.INFO.Println("[Ngrok] tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses an API server already
// listening on --host/--port; otherwise it starts an internal one bound to a
// random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	externalURL := fmt.Sprintf("http://%s:%d", cmd.String("host"), cmd.Int("port"))
	baseURL := externalURL

	log.INFO.Printf("[MCP] checking for external API server at %s...", externalURL)
	if !apiReachable(externalURL) {
		log.INFO.Println("[MCP] no external API server found, starting internal HTTP server")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		svc, err := initializeServices(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.Close(context.Background())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub()
		go hub.Run()
		defer hub.Stop()

		httpServer := &http.Server{Handler: api.NewServer(svc.game, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.ERROR.Printf("[MCP] internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		log.INFO.Printf("[MCP] internal HTTP server on %s", baseURL)
	} else {
		log.INFO.Printf("[MCP] using external API server at %s", externalURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.INFO.Println("[MCP] stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func apiReachable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
