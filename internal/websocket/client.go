package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dino-runner/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound messages buffered per client before new ones are dropped
	sendBufferSize = 256
)

// Conn is the server's handle on one connected peer.
type Conn interface {
	ID() domain.ConnID
	// Send queues data without blocking. It reports false if the message
	// was dropped.
	Send(data []byte) bool
	Close()
}

// Dispatcher receives connection lifecycle events and inbound frames. Connect
// is always delivered before any frame from the same connection.
type Dispatcher interface {
	Connect(c Conn)
	Deliver(c Conn, frame []byte)
	Disconnect(c Conn)
}

// NewUpgrader returns an upgrader that accepts the given origin. An empty
// origin accepts any.
func NewUpgrader(allowedOrigin string) *websocket.Upgrader {
	allowed := strings.TrimRight(allowedOrigin, "/")
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowed == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(u.Scheme+"://"+u.Host, allowed)
		},
	}
}

// Client represents a WebSocket client connection
type Client struct {
	id         domain.ConnID
	dispatcher Dispatcher
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(d Dispatcher, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := domain.ConnID(uuid.New().String())
	return &Client{
		id:         id,
		dispatcher: d,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		logger:     logger.With("conn_id", id),
	}
}

// ID returns the connection identity.
func (c *Client) ID() domain.ConnID {
	return c.id
}

// Send queues a message for the write pump.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close asks the write pump to send a close frame and stop.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump pumps messages from the WebSocket connection to the dispatcher
func (c *Client) readPump() {
	defer func() {
		c.dispatcher.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}
		c.dispatcher.Deliver(c, message)
	}
}

// writePump pumps messages from the send queue to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// ServeWs upgrades the request and hands the connection to d.
func ServeWs(d Dispatcher, upgrader *websocket.Upgrader, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(d, conn, logger)
	go client.writePump()
	d.Connect(client)
	go client.readPump()

	logger.Debug("new websocket connection", "conn_id", client.id)
}
