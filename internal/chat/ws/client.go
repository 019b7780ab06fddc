package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/barterverse-backend/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Common errors
var (
	ErrSendBufferFull   = errors.New("connection send buffer is full")
	ErrConnectionClosed = errors.New("connection is closed")
)

// Client is one authenticated websocket session. It satisfies
// chat.Connection: the registry queues outbound frames through Send and the
// write pump drains them onto the wire.
type Client struct {
	id       string
	identity Identity
	conn     *websocket.Conn
	cfg      *config.ChatConfig
	logger   *slog.Logger

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient wraps an upgraded websocket connection
func NewClient(conn *websocket.Conn, identity Identity, cfg *config.ChatConfig, logger *slog.Logger) *Client {
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		cfg:      cfg,
		logger:   logger,
		send:     make(chan []byte, cfg.SendBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) UserID() uuid.UUID { return c.identity.UserID }
func (c *Client) Username() string  { return c.identity.Username }

// Send queues a frame without blocking. A full buffer means the client is not
// keeping up; the frame is dropped and the caller decides what to do.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Run starts the write pump and blocks reading inbound frames, dispatching
// each to handle. It returns when the connection dies; the caller is
// responsible for unregistering afterwards.
func (c *Client) Run(handle func(c *Client, data []byte)) {
	go c.writePump()
	c.readPump(handle)
}

func (c *Client) readPump(handle func(c *Client, data []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Unexpected connection close",
					"conn_id", c.id,
					"user_id", c.identity.UserID,
					"error", err)
			}
			return
		}
		handle(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
