package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	sendBuffer = 256
)

var (
	ErrClientClosed = errors.New("client connection closed")
	ErrHubStopped   = errors.New("hub stopped")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients, one per device.
type Hub struct {
	// Registered clients, keyed by device id.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}

	mu sync.RWMutex

	deps   SessionDeps
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(deps SessionDeps, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		deps:       deps,
		logger:     logger,
	}
}

// Run starts the hub's main loop. When ctx is done every client is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			previous := h.clients[client.deviceID]
			h.clients[client.deviceID] = client
			h.mu.Unlock()

			if previous != nil {
				h.logger.Info("Device reconnected, closing previous connection",
					zap.String("deviceID", client.deviceID),
					zap.String("previousConnID", previous.connID))
				previous.Close()
			}
			h.logger.Info("Client registered",
				zap.String("deviceID", client.deviceID),
				zap.String("connID", client.connID))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client.deviceID] == client {
				delete(h.clients, client.deviceID)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("deviceID", client.deviceID),
				zap.String("connID", client.connID))

		case <-ctx.Done():
			h.mu.Lock()
			clients := h.clients
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			for _, client := range clients {
				client.Close()
			}
			h.logger.Info("Hub stopped", zap.Int("closedClients", len(clients)))
			return
		}
	}
}

// Client returns the connected client of a device, if any
func (h *Hub) Client(deviceID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[deviceID]
	return c, ok
}

// ClientCount returns the number of connected devices
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocketWithAuth upgrades a request whose device id was already authenticated
func (h *Hub) HandleWebSocketWithAuth(c echo.Context, deviceID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	connID := uuid.NewString()
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan WriteData, sendBuffer),
		done:     make(chan struct{}),
		deviceID: deviceID,
		connID:   connID,
		logger:   h.logger.With(zap.String("deviceID", deviceID), zap.String("connID", connID)),
	}
	client.session = newSession(client, h.deps, client.logger)

	select {
	case h.register <- client:
	case <-h.stopped:
		conn.Close()
		return ErrHubStopped
	}

	// The session starts before the read pump so Close always follows Start.
	client.session.Start()
	go client.writePump()
	go client.readPump()

	return nil
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its session.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Closed when the connection is going away; send is never closed.
	done      chan struct{}
	closeOnce sync.Once

	deviceID string
	connID   string
	session  *Session
	logger   *zap.Logger
}

// DeviceID returns the authenticated device id
func (c *Client) DeviceID() string {
	return c.deviceID
}

// SendJSON queues a text frame. It blocks while the queue is full.
func (c *Client) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// SendBinary queues a binary frame. It blocks while the queue is full.
func (c *Client) SendBinary(payload []byte) error {
	return c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: payload})
}

func (c *Client) enqueue(data WriteData) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

// Close stops both pumps. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the client is closing
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.session.Close()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
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
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			msg, err := ParseInbound(message)
			if err != nil {
				c.logger.Warn("Rejected device message", zap.Error(err))
				_ = c.SendJSON(CreateErrorMessage(ErrorCodeInvalidMessage, err.Error()))
				continue
			}
			c.session.HandleMessage(msg)
		case websocket.BinaryMessage:
			c.session.HandleAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps queued messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "connection closed"))
			return
		}
	}
}
