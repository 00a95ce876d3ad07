package websocket

import (
	"context"
	"encoding/json"
	"net"
	"time"
)

// Connection is the subset of *websocket.Conn the client uses. Tests supply
// an in-memory implementation.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() net.Addr
}

// Inbound is a message received from a client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is a message sent to a client.
type Outbound struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// MessageHandler processes one inbound message. It runs on the client's read
// goroutine, so messages of one client are handled in order.
type MessageHandler func(ctx context.Context, c *Client, msg Inbound)
