// Package live pushes availability updates to browsers watching a league, so the
// "spots remaining" badge changes the moment someone registers, cancels or is promoted.
//
// The Hub keeps subscribers grouped by league ID. Handlers stream each subscriber's
// messages to the browser as Server-Sent Events (see handlers.LiveAvailability).
package live

import (
	"context"
	"sync"
)

// Client is one connected subscriber watching one league.
type Client struct {
	LeagueID string      // Which league this client is watching
	Send     chan []byte // Outgoing messages; the Hub writes here, the HTTP stream reads
}

// NewClient returns a client with a buffered Send channel.
func NewClient(leagueID string) *Client {
	return &Client{LeagueID: leagueID, Send: make(chan []byte, 16)}
}

// Message is a payload for every client watching LeagueID.
type Message struct {
	LeagueID string
	Data     []byte
}

// Hub tracks clients per league. All map mutation happens on the Run goroutine; the
// RWMutex only lets Subscribers read the map from other goroutines.
type Hub struct {
	// clients is leagueID -> set of clients.
	clients map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns

	mu sync.RWMutex
}

// NewHub creates an empty Hub. Call Run in its own goroutine before using it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the Hub's event loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for leagueID, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, leagueID)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.LeagueID] == nil {
				h.clients[client.LeagueID] = make(map[*Client]bool)
			}
			h.clients[client.LeagueID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients[msg.LeagueID] {
				select {
				case client.Send <- msg.Data:
				default:
					// Full buffer: the client is not keeping up. Drop it after the loop,
					// on this goroutine, instead of sending to h.unregister (which only
					// this goroutine reads).
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.remove(client)
			}
		}
	}
}

// remove deletes a client and closes its Send channel. Only called from Run.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.LeagueID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.LeagueID)
	}
}

// Publish queues data for every client watching leagueID. It never blocks: if the
// broadcast queue is full the update is dropped, and the next change sends a fresh one.
func (h *Hub) Publish(leagueID string, data []byte) bool {
	select {
	case h.broadcast <- &Message{LeagueID: leagueID, Data: data}:
		return true
	default:
		return false
	}
}

// Register adds a client. It blocks until Run accepts it; once the hub has stopped
// the client's Send channel is closed straight away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes a client. Safe to call for a client already dropped as slow or
// after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribers returns how many clients watch leagueID.
func (h *Hub) Subscribers(leagueID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[leagueID])
}
