package realtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"convoy_tracker/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Client is one real-time connection. It binds to a single (room, user)
// pair on join-room.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	addr    string

	// guarded by hub.mu
	roomCode string
	userID   string

	mu     sync.Mutex
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn, addr string) *Client {
	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.RatePerSecond), h.cfg.RateBurst),
		addr:    addr,
	}
	if conn != nil && h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}
	return c
}

// Identity returns the room and user the connection is bound to.
func (c *Client) Identity() (roomCode, userID string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.roomCode, c.userID
}

func (c *Client) logger() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"remote_addr": c.addr,
		"conn_ptr":    fmt.Sprintf("%p", c),
	})
}

// trySend queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend stops the write pump, which then closes the socket.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) emit(event string, data interface{}) {
	msg, err := Encode(event, data)
	if err != nil {
		c.logger().WithError(err).WithField("event", event).Error("Failed to encode outbound event")
		return
	}
	if !c.trySend(msg) {
		c.logger().WithField("event", event).Warn("Client send buffer full or closed, dropping event")
	}
}

func (c *Client) emitError(err error) {
	c.emit(EventError, ErrorPayload{Message: err.Error(), Code: models.Kind(err)})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, p, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !c.limiter.Allow() {
			c.logger().Warn("Rate limit exceeded, discarding message")
			c.emit(EventError, ErrorPayload{Message: "too many messages, slow down", Code: codeRateLimited})
			continue
		}
		c.hub.HandleMessage(c, p)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger().Warn("Message exceeded maximum size, closing connection")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger().Info("WebSocket closed by client")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.logger().WithError(err).Warn("Unexpected WebSocket close")
	default:
		c.logger().WithError(err).Debug("WebSocket read ended")
	}
}

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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger().WithError(err).Debug("Failed to write message")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger().WithError(err).Debug("Failed to write ping")
				return
			}
		}
	}
}
