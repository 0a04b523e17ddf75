package server

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/Tyrowin/talkroom/internal/users"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	sendBufferSize = 256
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
)

// ClientLimits bounds what a single connection may send.
type ClientLimits struct {
	MaxMessageSize int64
	Burst          int
	RefillInterval time.Duration
}

// Client represents a WebSocket client connection in the chat room.
// It manages the connection state, the outgoing send buffer, the hub
// reference and the session user, if any.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	addr    string
	user    *users.User
	closed  bool
	limits  ClientLimits
	limiter *rate.Limiter
	log     logging.Logger
}

// NewClient creates a Client for conn. user is nil for an anonymous connection.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, user *users.User, limits ClientLimits) *Client {
	if conn != nil && limits.MaxMessageSize > 0 {
		conn.SetReadLimit(limits.MaxMessageSize)
	}

	c := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		hub:    hub,
		addr:   addr,
		user:   user,
		limits: limits,
	}
	if limits.Burst > 0 && limits.RefillInterval > 0 {
		every := rate.Limit(float64(limits.Burst) / limits.RefillInterval.Seconds())
		c.limiter = rate.NewLimiter(every, limits.Burst)
	}

	c.log = logging.Discard()
	if hub != nil {
		c.log = hub.log
	}
	c.log = c.log.With("addr", addr, "user_id", c.userID())
	return c
}

// GetSendChan returns the client's send channel for reading outgoing messages.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// User returns the session user attached to the connection, or nil.
func (c *Client) User() *users.User {
	if c == nil {
		return nil
	}
	return c.user
}

func (c *Client) userID() int64 {
	if u := c.User(); u != nil {
		return u.ID
	}
	return 0
}

func (c *Client) ctx() context.Context {
	if c.hub != nil {
		return c.hub.ctx
	}
	return context.Background()
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn(c.ctx(), "error setting initial read deadline", "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn(c.ctx(), "error setting read deadline in pong handler", "err", err)
		}
		return nil
	})
}

// handleReadError logs err by kind. Every read error ends the read loop.
func (c *Client) handleReadError(err error) {
	ctx := c.ctx()
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn(ctx, "message exceeded maximum size", "limit", c.limits.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info(ctx, "client disconnected", "err", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info(ctx, "client connection closed", "err", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn(ctx, "unexpected websocket close", "err", err)
	default:
		c.log.Warn(ctx, "websocket read error", "err", err)
	}
}

// checkRateLimit reports whether the next inbound frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.Allow() {
		c.log.Warn(c.ctx(), "rate limit exceeded; discarding message",
			"burst", c.limits.Burst, "interval", c.limits.RefillInterval)
		return false
	}
	return true
}

// processMessage routes one inbound frame and publishes the result. Frames
// the hub cannot route are logged and dropped.
func (c *Client) processMessage(raw []byte) bool {
	msg, err := c.hub.route(c, raw)
	if err != nil {
		c.log.Debug(c.ctx(), "dropping inbound frame", "err", err)
		return false
	}
	return c.hub.Publish(msg)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn(c.ctx(), "error closing connection in readPump", "err", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn(c.ctx(), "error closing connection in writePump", "err", err)
	}
}

// handleMessage writes one queued envelope, or a close frame once the hub has
// closed the send channel.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn(c.ctx(), "error setting write deadline", "err", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	// One envelope per frame; the browser parses each frame as a single JSON value.
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn(c.ctx(), "error writing message", "err", err)
		}
		return false
	}
	return true
}

func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn(c.ctx(), "error writing close message", "err", err)
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn(c.ctx(), "error setting write deadline for ping", "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn(c.ctx(), "error writing ping message", "err", err)
		}
		return false
	}
	return true
}
