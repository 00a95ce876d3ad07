package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pipelinereview/internal/infrastructure"
)

// Message types
const (
	TypeConnection = "connection"
	TypeView       = "view"
	TypeTrials     = "trials"
	TypeFilters    = "filters"
	TypeError      = "error"
	TypeDataUpdate = "data_update"
	TypeHeartbeat  = "heartbeat"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex

	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	totalConnections int64
	messagesSent     int64

	quit    chan struct{}
	running bool
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Start runs the hub loop in the background. It is idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.mu.Unlock()

			ctx := client.context()
			h.metrics.WebSocketClients.Add(ctx, 1)
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			if err := client.Send(TypeConnection, map[string]interface{}{
				"status":     "connected",
				"client_id":  client.id,
				"session_id": client.sessionID,
			}); err != nil {
				h.logger.WarnContext(ctx, "Failed to send connection message",
					slog.String("client_id", client.id),
					slog.String("error", err.Error()))
			}

		case client := <-h.unregister:
			h.remove(client, "normal")

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			failCount := 0
			for _, client := range clients {
				if err := client.enqueue(message); err != nil {
					failCount++
					h.remove(client, "buffer_full")
				}
			}

			h.mu.Lock()
			h.messagesSent += int64(len(clients) - failCount)
			h.mu.Unlock()

			h.logger.Debug("Broadcast delivered",
				slog.Int("client_count", len(clients)),
				slog.Int("fail_count", failCount),
				slog.Int("message_size", len(message)))
		}
	}
}

func (h *Hub) remove(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	client.closeSend()

	ctx := client.context()
	h.metrics.WebSocketClients.Add(ctx, -1)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
}

// Register adds a client to the hub. It returns immediately once the hub has
// stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Broadcast sends a typed message to every connected client.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := json.Marshal(Outbound{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error("Error marshaling broadcast message",
			slog.String("message_type", messageType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
		h.metrics.WebSocketMessages.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("direction", "broadcast"),
				attribute.String("type", messageType)))
	case <-h.quit:
	}
}

// BroadcastRefresh tells clients that a data source changed and their view
// should be recomputed.
func (h *Hub) BroadcastRefresh(source string) {
	h.Broadcast(TypeDataUpdate, map[string]interface{}{
		"source": source,
		"action": "refresh",
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop gracefully stops the hub and releases every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.quit)

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.closeSend()
	}
}

// GetHubMetrics returns current hub counters
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
	}
}
