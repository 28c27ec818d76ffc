// Package events fans library changes out to connected websocket clients.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mediashelf/internal/library"
	"mediashelf/internal/logging"
	"mediashelf/internal/metrics"
)

// Event types sent to clients
const (
	TypeLibraryUpdated = "library-updated"
	TypeCommentAdded   = "comment-added"
	TypeCommentDeleted = "comment-deleted"
	TypeProfileUpdated = "profile-updated"
)

// DefaultClientBuffer is the number of events queued per client before drops
const DefaultClientBuffer = 32

// Event is the JSON message pushed over the socket
type Event struct {
	Type      string    `json:"type"`
	MediaID   int64     `json:"mediaId,omitempty"`
	CommentID string    `json:"commentId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is one subscriber
type Client struct {
	UserID string
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	dropped int
}

// Messages delivers encoded events until the client is unregistered
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Done is closed when the client is unregistered
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Dropped counts events discarded because the client fell behind
func (c *Client) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Hub holds the connected clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	buffer  int
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// NewHub creates an empty hub
func NewHub(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		buffer:  DefaultClientBuffer,
		metrics: m,
		log:     *logging.WithModule("events"),
		now:     time.Now,
	}
}

// Register adds a subscriber
func (h *Hub) Register(userID string) *Client {
	c := &Client{
		UserID: userID,
		send:   make(chan []byte, h.buffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.WebsocketClients.Inc()
	return c
}

// Unregister removes a subscriber. It is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.metrics.WebsocketClients.Dec()
	}
	c.once.Do(func() { close(c.done) })
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues e for every client without blocking. Clients whose buffer is
// full miss the event.
func (h *Hub) Broadcast(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("type", e.Type).Msg("Failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			c.mu.Lock()
			c.dropped++
			c.mu.Unlock()
			h.log.Debug().Str("user_id", c.UserID).Str("type", e.Type).Msg("Dropped event for slow client")
		}
	}
}

// Listener adapts store change notifications to broadcasts
func (h *Hub) Listener() library.Listener {
	return func(c library.Change) {
		e := Event{MediaID: c.MediaID, CommentID: c.CommentID}
		switch c.Kind {
		case library.ChangeCommentAdded:
			e.Type = TypeCommentAdded
		case library.ChangeCommentDeleted:
			e.Type = TypeCommentDeleted
		default:
			e.Type = TypeLibraryUpdated
		}
		h.Broadcast(e)
	}
}
