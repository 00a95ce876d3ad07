package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pipelinereview/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Filter messages carry the
	// selected areas and phases, so this is larger than a heartbeat needs.
	maxMessageSize = 16 << 10

	sendBufferSize = 64
)

var (
	// ErrClientClosed is returned by Send after the client was released.
	ErrClientClosed = errors.New("websocket client closed")
	// ErrSendBufferFull is returned by Send when the client is not draining.
	ErrSendBufferFull = errors.New("websocket send buffer full")

	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send   chan []byte
	sendMu sync.Mutex
	closed bool

	handler MessageHandler

	id          string
	sessionID   string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewClient creates a client bound to a review session. traceID is the
// request ID of the upgrade request.
func NewClient(hub *Hub, conn Connection, sessionID, traceID string, handler MessageHandler, logger *slog.Logger) *Client {
	id := uuid.New().String()

	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		handler:     handler,
		id:          id,
		sessionID:   sessionID,
		traceID:     traceID,
		remoteAddr:  remote,
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
}

// ID returns the client ID.
func (c *Client) ID() string { return c.id }

// SessionID returns the review session the client operates on.
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// Send queues a typed message for this client only.
func (c *Client) Send(messageType string, data interface{}) error {
	payload, err := json.Marshal(Outbound{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   c.traceID,
	})
	if err != nil {
		return err
	}
	if err := c.enqueue(payload); err != nil {
		return err
	}
	c.hub.metrics.WebSocketMessages.Add(c.context(), 1,
		metric.WithAttributes(
			attribute.String("direction", "sent"),
			attribute.String("type", messageType)))
	return nil
}

func (c *Client) enqueue(payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads client messages and hands them to the handler until the
// connection fails.
func (c *Client) ReadPump() {
	ctx := c.context()
	defer func() {
		c.logger.InfoContext(ctx, "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", c.messagesReceived.Load()))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(ctx, "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}
		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.messagesReceived.Add(1)

		var msg Inbound
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type == "" {
			c.logger.DebugContext(ctx, "Malformed client message", slog.Int("size", len(message)))
			_ = c.Send(TypeError, map[string]string{
				"code":    "INVALID_MESSAGE",
				"message": "messages must be JSON objects with a type",
			})
			continue
		}

		c.hub.metrics.WebSocketMessages.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("direction", "received"),
				attribute.String("type", msg.Type)))

		if msg.Type == TypeHeartbeat {
			continue
		}
		if c.handler != nil {
			c.handler(ctx, c, msg)
		}
	}
}

// WritePump writes queued messages and keepalive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.DebugContext(c.context(), "WebSocket write pump stopped",
			slog.Int64("messages_sent", c.messagesSent.Load()))
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub released the client
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.ErrorContext(c.context(), "Error writing message to WebSocket",
					slog.String("error", err.Error()))
				return
			}
			c.messagesSent.Add(1)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "Failed to send ping message",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Serve registers the client and starts its pumps. It returns immediately.
func Serve(hub *Hub, client *Client) {
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
