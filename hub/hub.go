// Package hub fans projection updates out to HTTP event-stream subscribers.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind classifies an update for subscribers.
type Kind string

const (
	// KindFragment replaces the named fragment with HTML.
	KindFragment Kind = "fragment"
	// KindReload asks the page to reload itself, bypassing its cache.
	KindReload Kind = "reload"
	// KindSound asks the page to play an audio cue.
	KindSound Kind = "sound"
	// KindPlayer asks the page to load or control its media player.
	KindPlayer Kind = "player"
)

// Update is one change published by a projection.
type Update struct {
	Surface  string    `json:"surface"`
	Kind     Kind      `json:"kind"`
	Fragment string    `json:"fragment,omitempty"`
	HTML     string    `json:"html,omitempty"`
	Data     any       `json:"data,omitempty"`
	At       time.Time `json:"at"`
}

// Client is a subscriber. An empty Surface receives every surface.
type Client struct {
	ID      string
	Surface string
	Send    chan Update
}

// Hub maintains active subscribers and broadcasts updates.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Update
	done       chan struct{}

	logger *slog.Logger
	mu     sync.RWMutex
}

// New creates a new Hub instance.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Update, 256),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "hub")),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, closing every
// client channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("subscriber registered", slog.String("id", client.ID), slog.Int("total", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client.Send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("subscriber unregistered", slog.String("id", client.ID), slog.Int("total", n))

		case u := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.Surface != "" && client.Surface != u.Surface {
					continue
				}
				select {
				case client.Send <- u:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.logger.Warn("subscriber send buffer full, disconnecting", slog.String("id", client.ID))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a subscriber. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a subscriber and closes its channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues u for broadcast without blocking; when the queue is full the
// update is dropped.
func (h *Hub) Publish(u Update) {
	if u.At.IsZero() {
		u.At = time.Now()
	}
	select {
	case h.broadcast <- u:
	default:
		h.logger.Warn("broadcast queue full, dropping update",
			slog.String("surface", u.Surface), slog.String("fragment", u.Fragment))
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
