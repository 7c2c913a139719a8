package live

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

// Message types pushed to subscribers.
const (
	MsgTypeAvailability = "availability"
)

// Message is the envelope written to every subscriber.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// AvailabilityEvent is broadcast after a station's active bookings change.
type AvailabilityEvent struct {
	StationID      int64 `json:"station_id"`
	TotalSlots     int   `json:"total_slots"`
	ActiveBookings int   `json:"active_bookings"`
	AvailableSlots int   `json:"available_slots"`
	IsActive       bool  `json:"is_active"`
}

// Hub fans availability events out to connected clients.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub builds a hub; call Run to start dispatching.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run dispatches registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("live client connected", zap.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("live client disconnected", zap.Int("total_clients", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishAvailability broadcasts a station availability snapshot.
func (h *Hub) PublishAvailability(availability models.StationAvailability) {
	h.publish(MsgTypeAvailability, AvailabilityEvent{
		StationID:      availability.ID,
		TotalSlots:     availability.TotalSlots,
		ActiveBookings: availability.ActiveBookings,
		AvailableSlots: availability.AvailableSlots,
		IsActive:       availability.IsActive,
	})
}

func (h *Hub) publish(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal live message", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("dropping live message, broadcast buffer full", zap.String("type", msgType))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
