package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

var errClientClosed = errors.New("ws: client closed")

// Client wraps a websocket connection with a buffered outbound queue and a
// single writer goroutine, since gorilla connections allow only one
// concurrent writer.
type Client struct {
	userID int64
	conn   *websocket.Conn
	logger *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(userID int64, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		logger: logger,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Send queues a payload for delivery. It never blocks: a full buffer means
// the client is not draining and the payload is dropped with an error the
// caller may log. Live delivery is advisory, offline reach is the
// notifier's job.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("ws: send buffer full")
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// Run services the connection until either pump fails. The caller is
// responsible for registry bookkeeping around it.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump drains inbound frames. The live transport is push-only; client
// frames only keep the connection alive.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed",
					zap.Int64("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed",
					zap.Int64("user_id", c.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
