package hub

import (
	"context"
	"encoding/json"
	"sync"

	"floorwatch/internal/log"
)

// Hub maintains the set of subscribed clients and broadcasts telemetry to
// them. All client-set mutation happens on the Run goroutine.
type Hub struct {
	name string

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	// done is closed when Run exits so client pumps never block on a
	// register/unregister send nobody is draining anymore.
	done chan struct{}

	// mu guards read-only client count access from outside Run.
	mu sync.RWMutex
}

// New creates a hub. Run must be started before clients connect.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run drives the broadcast loop until ctx is cancelled. Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Unblock pumps first, then tear down the client set; closing a
			// send channel makes its writePump exit and close the
			// connection, which in turn unblocks the readPump.
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
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("hub client connected", "hub", h.name, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("hub client disconnected", "hub", h.name, "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full, the subscriber cannot keep up.
					close(client.send)
					delete(h.clients, client)
					log.Warn("hub dropped slow client", "hub", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for all subscribers, dropping it if the
// broadcast channel is full. The pipeline never blocks on spectators.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn("hub broadcast channel full, dropping message", "hub", h.name)
	}
}

// BroadcastJSON encodes and broadcasts v.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
