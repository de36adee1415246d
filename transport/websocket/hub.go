package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/spf13/jwalterweatherman"

	"github.com/wricardo/snake-party/game/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Time allowed for a client message handler to finish.
	handlerTimeout = 5 * time.Second
)

const (
	EventGameUpdate = "game_update"
	EventGameClosed = "game_closed"
	EventError      = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// game clients are served from other origins
		return true
	},
}

// Message is sent from the hub to clients
type Message struct {
	GameCode string                `json:"game_code"`
	Event    string                `json:"event"`
	Game     *session.GameSnapshot `json:"game,omitempty"`
	Data     interface{}           `json:"data,omitempty"`
}

// ClientMessage is sent from a client to the hub
type ClientMessage struct {
	Action      string `json:"action"`
	Player      string `json:"player"`
	Orientation string `json:"orientation,omitempty"`
}

// MessageHandler processes a message a client sent for gameCode.
type MessageHandler func(ctx context.Context, gameCode string, msg ClientMessage) error

// Client represents a WebSocket client
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	gameCode string
}

type directMessage struct {
	client *Client
	data   []byte
}

type countRequest struct {
	gameCode string
	reply    chan int
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by game code, owned by Run
	games map[string]map[*Client]bool

	broadcast  chan *Message
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	counts     chan countRequest

	quit     chan struct{}
	stopOnce sync.Once

	handlerMu sync.RWMutex
	onMessage MessageHandler
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		games:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 64),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		counts:     make(chan countRequest),
		quit:       make(chan struct{}),
	}
}

// SetMessageHandler installs the handler for client messages.
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.handlerMu.Lock()
	defer h.handlerMu.Unlock()
	h.onMessage = handler
}

func (h *Hub) handler() MessageHandler {
	h.handlerMu.RLock()
	defer h.handlerMu.RUnlock()
	return h.onMessage
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case dm := <-h.direct:
			h.sendTo(dm.client, dm.data)

		case req := <-h.counts:
			req.reply <- len(h.games[req.gameCode])

		case <-h.quit:
			for _, clients := range h.games {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, gameCode string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WARN.Printf("[WebSocket] upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		gameCode: gameCode,
	}

	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastGame sends a snapshot of a game to every client watching it
func (h *Hub) BroadcastGame(gameCode string, game *session.GameSnapshot) {
	h.enqueue(&Message{
		GameCode: gameCode,
		Event:    EventGameUpdate,
		Game:     game,
	})
}

// BroadcastEvent sends a custom event to all clients watching a game
func (h *Hub) BroadcastEvent(gameCode string, event string, data interface{}) {
	h.enqueue(&Message{
		GameCode: gameCode,
		Event:    event,
		Data:     data,
	})
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.quit:
	}
}

// ClientCount returns the number of clients watching a game.
func (h *Hub) ClientCount(gameCode string) int {
	req := countRequest{gameCode: gameCode, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply
	case <-h.quit:
		return 0
	}
}

// registerClient adds a client to a game
func (h *Hub) registerClient(client *Client) {
	if h.games[client.gameCode] == nil {
		h.games[client.gameCode] = make(map[*Client]bool)
	}
	h.games[client.gameCode][client] = true

	log.DEBUG.Printf("[WebSocket] client registered for game %s (total clients: %d)",
		client.gameCode, len(h.games[client.gameCode]))
}

// unregisterClient removes a client from a game
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.games[client.gameCode]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(h.games, client.gameCode)
			}

			log.DEBUG.Printf("[WebSocket] client unregistered from game %s (remaining clients: %d)",
				client.gameCode, len(clients))
		}
	}
}

// broadcastMessage sends a message to all clients watching a game
func (h *Hub) broadcastMessage(message *Message) {
	clients, ok := h.games[message.GameCode]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.ERROR.Printf("[WebSocket] failed to marshal broadcast message: %v", err)
		return
	}

	for client := range clients {
		h.sendTo(client, data)
	}
}

// sendTo queues data for client, dropping clients that cannot keep up.
func (h *Hub) sendTo(client *Client, data []byte) {
	if !h.games[client.gameCode][client] {
		return
	}
	select {
	case client.send <- data:
	default:
		h.unregisterClient(client)
	}
}

func (c *Client) reply(event string, data interface{}) {
	payload, err := json.Marshal(&Message{GameCode: c.gameCode, Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, data: payload}:
	case <-c.hub.quit:
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WARN.Printf("[WebSocket] read error: %v", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(EventError, "invalid message: "+err.Error())
			continue
		}

		handle := c.hub.handler()
		if handle == nil {
			c.reply(EventError, "messages are not accepted")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		err = handle(ctx, c.gameCode, msg)
		cancel()
		if err != nil {
			c.reply(EventError, err.Error())
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
