package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/notepid/twilight_arcade/internal/apperr"
)

// ErrNotConnected is returned when a channel has no live connection.
var ErrNotConnected = errors.New("channel not connected")

// ErrFull is returned by Open when every node slot is taken.
var ErrFull = errors.New("all nodes busy")

const outboxSize = 32

// Endpoint is one live connection. Messages routed to it arrive on Out.
type Endpoint struct {
	ID          int
	Remote      string
	ConnectedAt time.Time
	Out         chan Message

	channel  int64
	userName string
}

// EndpointInfo holds summary information about a connection.
type EndpointInfo struct {
	ID       int
	Channel  int64
	UserName string
	Remote   string
	Since    time.Time
}

// Hub tracks live connections, enforces the node limit and routes messages
// to connections by channel.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[int]*Endpoint
	maxNodes  int
}

// NewHub creates a hub allowing at most maxNodes connections.
func NewHub(maxNodes int) *Hub {
	return &Hub{
		endpoints: make(map[int]*Endpoint),
		maxNodes:  maxNodes,
	}
}

// SetMaxNodes changes the connection limit. Existing connections stay.
func (h *Hub) SetMaxNodes(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxNodes = n
}

// MaxNodes returns the current connection limit.
func (h *Hub) MaxNodes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxNodes
}

// Open allocates the lowest free node ID and registers an endpoint for it.
func (h *Hub) Open(remote string) (*Endpoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.endpoints) >= h.maxNodes {
		return nil, ErrFull
	}
	id := 1
	for {
		if _, taken := h.endpoints[id]; !taken {
			break
		}
		id++
	}
	ep := &Endpoint{
		ID:          id,
		Remote:      remote,
		ConnectedAt: time.Now(),
		Out:         make(chan Message, outboxSize),
	}
	h.endpoints[id] = ep
	return ep, nil
}

// Bind attaches an identified user's channel to an endpoint.
func (h *Hub) Bind(id int, channel int64, userName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ep, ok := h.endpoints[id]; ok {
		ep.channel = channel
		ep.userName = userName
	}
}

// Close removes an endpoint. Out is not closed: a concurrent Deliver may
// still hold a reference to it.
func (h *Hub) Close(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.endpoints, id)
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints)
}

// Online reports whether the channel has at least one connection.
func (h *Hub) Online(channel int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ep := range h.endpoints {
		if channel != 0 && ep.channel == channel {
			return true
		}
	}
	return false
}

// List returns summary info for all connections, ordered by node ID.
func (h *Hub) List() []EndpointInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info := make([]EndpointInfo, 0, len(h.endpoints))
	for _, ep := range h.endpoints {
		name := ep.userName
		if name == "" {
			name = "(logging in)"
		}
		info = append(info, EndpointInfo{
			ID:       ep.ID,
			Channel:  ep.channel,
			UserName: name,
			Remote:   ep.Remote,
			Since:    ep.ConnectedAt,
		})
	}
	sort.Slice(info, func(i, j int) bool { return info[i].ID < info[j].ID })
	return info
}

// bound returns the endpoints bound to channel. Channel 0 selects every
// identified endpoint.
func (h *Hub) bound(channel int64) []*Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var eps []*Endpoint
	for _, ep := range h.endpoints {
		if ep.channel == 0 {
			continue
		}
		if channel == 0 || ep.channel == channel {
			eps = append(eps, ep)
		}
	}
	return eps
}

// Deliver implements Renderer. The message goes to every connection bound
// to channel. It fails with ErrNotConnected when there are none, and with a
// transport error when no connection could take the message.
func (h *Hub) Deliver(ctx context.Context, channel int64, msg Message) error {
	var eps []*Endpoint
	if channel != 0 {
		eps = h.bound(channel)
	}
	if len(eps) == 0 {
		return apperr.Wrap(apperr.CodeTransport, fmt.Sprintf("deliver to %d", channel), ErrNotConnected)
	}

	sent := 0
	for _, ep := range eps {
		select {
		case ep.Out <- msg:
			sent++
		case <-ctx.Done():
			return ctx.Err()
		default:
			log.Printf("Node %d outbox full, dropping message for channel %d", ep.ID, channel)
		}
	}
	if sent == 0 {
		return apperr.New(apperr.CodeTransport, fmt.Sprintf("channel %d outbox full", channel))
	}
	return nil
}

// Broadcast sends a notice to every identified connection, dropping it for
// connections whose outbox is full.
func (h *Hub) Broadcast(text string) {
	msg := Message{Text: text, Notice: true}
	dropped := 0
	for _, ep := range h.bound(0) {
		select {
		case ep.Out <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		log.Printf("Broadcast dropped for %d slow connections", dropped)
	}
}
