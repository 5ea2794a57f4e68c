package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/inconshreveable/log15"

	"github.com/wricardo/capture-maze/game/master"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from a viewer.
	maxMessageSize = 512

	// Pending broadcasts before the hub starts dropping them
	broadcastBuffer = 256
)

// Hub events
const (
	EventSnapshot = "snapshot"
	EventFinished = "finished"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Viewers and agents connect from anywhere
		return true
	},
}

// Message is what viewers receive
type Message struct {
	MatchID  string           `json:"match_id"`
	Event    string           `json:"event"`
	Snapshot *master.Snapshot `json:"snapshot,omitempty"`
	Result   *master.Result   `json:"result,omitempty"`
	Data     interface{}      `json:"data,omitempty"`
}

// Client represents a viewer connection
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	matchID string
}

// Hub maintains the set of active viewers and broadcasts match updates
type Hub struct {
	// Registered clients by match ID
	matches map[string]map[*Client]bool

	// Outbound messages for viewers
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	dropped atomic.Uint64
	logger  log15.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger log15.Logger) *Hub {
	if logger == nil {
		logger = log15.New("module", "websocket")
	}
	return &Hub{
		matches:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ctx.Done():
			for _, clients := range h.matches {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return nil
		}
	}
}

// ServeWS upgrades a viewer connection for a match. initial, when set, is
// the first message the viewer gets.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, matchID string, initial *Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		matchID: matchID,
	}
	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Publish queues a message without blocking. Messages are dropped while
// the queue is full.
func (h *Hub) Publish(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastEvent sends a custom event to all viewers of a match
func (h *Hub) BroadcastEvent(matchID string, event string, data interface{}) {
	h.Publish(&Message{MatchID: matchID, Event: event, Data: data})
}

// Dropped returns the number of messages dropped because the hub lagged
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Observer returns a game master observer publishing to the viewers of
// matchID
func (h *Hub) Observer(matchID string) master.Observer {
	return &matchObserver{hub: h, matchID: matchID}
}

type matchObserver struct {
	hub     *Hub
	matchID string
}

func (o *matchObserver) Observe(s master.Snapshot) {
	o.hub.Publish(&Message{MatchID: o.matchID, Event: EventSnapshot, Snapshot: &s})
}

func (o *matchObserver) Finish(r master.Result) {
	o.hub.Publish(&Message{MatchID: o.matchID, Event: EventFinished, Result: &r})
}

// registerClient adds a client to a match
func (h *Hub) registerClient(client *Client) {
	if h.matches[client.matchID] == nil {
		h.matches[client.matchID] = make(map[*Client]bool)
	}
	h.matches[client.matchID][client] = true
	h.logger.Debug("viewer registered", "match", client.matchID, "viewers", len(h.matches[client.matchID]))
}

// unregisterClient removes a client from a match
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.matches[client.matchID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(h.matches, client.matchID)
			}
			h.logger.Debug("viewer unregistered", "match", client.matchID, "viewers", len(clients))
		}
	}
}

// broadcastMessage sends a message to all viewers of a match, dropping the
// ones that cannot keep up
func (h *Hub) broadcastMessage(message *Message) {
	clients, ok := h.matches[message.MatchID]
	if !ok {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "err", err)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			h.unregisterClient(client)
		}
	}
}

// readPump keeps the connection alive and notices when the viewer leaves
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
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
		// Viewers do not send anything we act on
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("viewer connection error", "match", c.matchID, "err", err)
			}
			break
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
