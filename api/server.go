package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/spf13/jwalterweatherman"

	"github.com/wricardo/snake-party/game/service"
	"github.com/wricardo/snake-party/game/snake"
	"github.com/wricardo/snake-party/transport/websocket"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxBodyBytes        = 1 << 20
)

var errBadRequest = errors.New("bad request")

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	if hub != nil {
		hub.SetMessageHandler(s.handleClientMessage)
	}
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Lobby
	api.HandleFunc("/games", s.handleCreateGame).Methods("POST")
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{code}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{code}/players", s.handleJoinGame).Methods("POST")
	api.HandleFunc("/games/{code}/players/{name}", s.handleAbandon).Methods("DELETE")
	api.HandleFunc("/games/{code}/players/{name}/ready", s.handleReady).Methods("POST")

	// Steering
	api.HandleFunc("/games/{code}/players/{name}/orientation", s.handleGetOrientation).Methods("GET")
	api.HandleFunc("/games/{code}/players/{name}/orientation", s.handleSetOrientation).Methods("PUT")

	// Tick driver
	api.HandleFunc("/games/{code}/states", s.handleUpdateStates).Methods("PUT")
	api.HandleFunc("/games/{code}/food", s.handleUpdateFood).Methods("PUT")

	// Archive
	api.HandleFunc("/history", s.handleHistory).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WARN.Printf("[API] failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error to its HTTP status.
func respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.ERROR.Printf("[API] %v", err)
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrNameInvalid),
		errors.Is(err, service.ErrInvalidOrientation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrGameNotFound),
		errors.Is(err, service.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNameConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body required", errBadRequest)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// broadcastGame pushes the current snapshot of code to its subscribers. A
// game that no longer exists is announced as closed.
func (s *Server) broadcastGame(ctx context.Context, code string) {
	if s.hub == nil {
		return
	}
	snap, err := s.service.GetGame(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			s.hub.BroadcastEvent(normalize(code), websocket.EventGameClosed, nil)
		}
		return
	}
	s.hub.BroadcastGame(snap.Code, snap)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lobby Handlers

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostName string `json:"host_name"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	info, err := s.service.CreateGame(r.Context(), req.HostName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.service.ListActiveGames(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	game, err := s.service.GetGame(r.Context(), code)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req struct {
		PlayerName string `json:"player_name"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	info, err := s.service.JoinGame(r.Context(), code, req.PlayerName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcastGame(r.Context(), info.Code)
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := s.service.ReadyPlayer(r.Context(), vars["code"], vars["name"]); err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcastGame(r.Context(), vars["code"])
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	closed, err := s.service.AbandonPlayer(r.Context(), vars["code"], vars["name"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// the code may already be reclaimed by a new game, so a closed game is
	// announced without looking the code up again
	if closed {
		if s.hub != nil {
			s.hub.BroadcastEvent(normalize(vars["code"]), websocket.EventGameClosed, nil)
		}
	} else {
		s.broadcastGame(r.Context(), vars["code"])
	}
	w.WriteHeader(http.StatusNoContent)
}

// Steering Handlers

func (s *Server) handleGetOrientation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var fallback snake.Orientation
	if raw := r.URL.Query().Get("fallback"); raw != "" {
		o, err := snake.ParseOrientation(raw)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		fallback = o
	}

	o := s.service.GetPlayerOrientation(r.Context(), vars["code"], vars["name"], fallback)
	respondJSON(w, http.StatusOK, map[string]snake.Orientation{"orientation": o})
}

func (s *Server) handleSetOrientation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req struct {
		Orientation string `json:"orientation"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	o, err := snake.ParseOrientation(req.Orientation)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if err := s.service.SetPlayerOrientation(r.Context(), vars["code"], vars["name"], o); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]snake.Orientation{"orientation": o})
}

// Tick Driver Handlers

func (s *Server) handleUpdateStates(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var states []snake.PlayerState
	if err := decodeBody(w, r, &states); err != nil {
		respondServiceError(w, err)
		return
	}

	if err := s.service.UpdatePlayerStates(r.Context(), code, states); err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcastGame(r.Context(), code)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateFood(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var food snake.Food
	if err := decodeBody(w, r, &food); err != nil {
		respondServiceError(w, err)
		return
	}

	if err := s.service.UpdateFood(r.Context(), code, food); err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcastGame(r.Context(), code)
	w.WriteHeader(http.StatusNoContent)
}

// Archive Handler

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	matches, err := s.service.ListHistory(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}

// WebSocket Handlers

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "WebSocket updates unavailable", http.StatusServiceUnavailable)
		return
	}

	code := r.URL.Query().Get("game")
	if code == "" {
		http.Error(w, "game parameter required", http.StatusBadRequest)
		return
	}

	game, err := s.service.GetGame(r.Context(), code)
	if err != nil {
		http.Error(w, "Unknown game", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, game.Code)
	// new subscribers start from the current state
	s.hub.BroadcastGame(game.Code, game)
}

// handleClientMessage applies a message a player sent over the socket.
func (s *Server) handleClientMessage(ctx context.Context, code string, msg websocket.ClientMessage) error {
	switch msg.Action {
	case "steer":
		o, err := snake.ParseOrientation(msg.Orientation)
		if err != nil {
			return err
		}
		if err := s.service.SetPlayerOrientation(ctx, code, msg.Player, o); err != nil {
			return err
		}
	case "ready":
		if err := s.service.ReadyPlayer(ctx, code, msg.Player); err != nil {
			return err
		}
		s.broadcastGame(ctx, code)
	default:
		return fmt.Errorf("%w: unknown action %q", errBadRequest, msg.Action)
	}
	return nil
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
