package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"confessional/internal/middleware"
	"confessional/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per gateway identity
	maxConnsPerActor = 4
	// Max total connections
	maxTotalConns = 64
)

// Hub relays notification channel traffic to connected gateway websocket clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[int64]map[*Client]struct{}
	totalConns int
	shutdown   chan struct{}
	once       sync.Once
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:    make(map[int64]map[*Client]struct{}),
		shutdown: make(chan struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "feed hub" }

// Register a connection for the authenticated gateway actor.
func (h *Hub) Register(actorID int64, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.shutdown:
		return nil, errors.New("hub is shutting down")
	default:
	}

	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[actorID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[actorID] = m
	}
	if len(m) >= maxConnsPerActor {
		return nil, errors.New("actor connection limit reached")
	}

	client := NewClient(h, conn, actorID)
	m[client] = struct{}{}
	h.totalConns++
	middleware.ActiveWebSockets.Inc()
	return client, nil
}

// UnregisterClient removes a client; safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.conns[client.ActorID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	h.totalConns--
	middleware.ActiveWebSockets.Dec()
	if len(m) == 0 {
		delete(h.conns, client.ActorID)
	}
}

// Connections reports how many clients are attached.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// BroadcastAll sends message to every connected client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(message)
		}
	}
}

// StartWiring subscribes the hub to the notifier and forwards every valid
// notification message to the attached gateways.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if _, ok := ParseUserChannel(channel); !ok && channel != OperatorChannel {
			middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		var msg Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			middleware.Logger.Warn("dropping malformed notification", slog.String("channel", channel))
			return
		}
		observability.FeedDeliveries.WithLabelValues(msg.Type).Inc()
		h.BroadcastAll([]byte(payload))
	})
}

// Shutdown closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	h.once.Do(func() { close(h.shutdown) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for actorID, clients := range h.conns {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				middleware.Logger.Debug("failed to write close message", slog.Int64("actor", actorID), slog.String("error", err.Error()))
			}
			_ = client.Conn.Close()
		}
		middleware.ActiveWebSockets.Sub(float64(len(clients)))
	}
	h.conns = make(map[int64]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
