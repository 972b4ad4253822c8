package checkin

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// clientSendBuffer bounds the per-connection outbound queue. Events beyond
// it are dropped for that connection only: this channel is best-effort
// telemetry, not a guaranteed-delivery queue.
const clientSendBuffer = 16

// Client wraps one WebSocket connection with a buffered outbound queue so
// that a slow consumer never blocks a broadcast.
type Client struct {
	ID   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan Event
	closed bool
}

// NewClient wraps conn. Callers must start WritePump in its own goroutine
// before events are expected to reach the peer.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan Event, clientSendBuffer),
	}
}

// Send queues ev for delivery. It never blocks; when the client's buffer is
// full the event is dropped.
func (c *Client) Send(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- ev:
	default: // drop if slow
	}
}

// WritePump drains the outbound queue onto the WebSocket. It returns when
// the client is closed or the connection errors.
func (c *Client) WritePump() {
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// Close marks the client closed and releases WritePump. It does not close
// the underlying connection; the transport handler owns that.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub routes events to broadcast rooms. A connection belongs to exactly one
// room (derived from its registered role); fan-out to a room with zero
// members is a silent no-op.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub returns an initialised, empty Hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join subscribes c to room, evicting it from any room it was in before.
// Re-joining mirrors the registry's last-writer-wins binding: a connection
// that switches roles must stop receiving its old room's events.
func (h *Hub) Join(room string, c *Client) {
	if room == "" {
		return
	}
	h.mu.Lock()
	for prev, members := range h.rooms {
		if prev == room {
			continue
		}
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, prev)
			}
		}
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	h.mu.Unlock()
}

// Leave removes c from every room it is subscribed to and prunes empty
// rooms. Safe to call for a client that never joined.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	for room, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
}

// Broadcast delivers ev at most once to every client subscribed to any of
// the target rooms. Delivery is fire-and-forget.
func (h *Hub) Broadcast(ev Event, rooms ...string) {
	h.mu.RLock()
	seen := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			c.Send(ev)
		}
	}
	h.mu.RUnlock()
}

// RoomSize returns the number of clients currently subscribed to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	n := len(h.rooms[room])
	h.mu.RUnlock()
	return n
}

// Dispatcher is the tracker's outbound side: fan-out of one event to a set
// of rooms. *Hub satisfies it; tests substitute a recorder.
type Dispatcher interface {
	Broadcast(ev Event, rooms ...string)
}

var _ Dispatcher = (*Hub)(nil)

// logDispatcher is used when no hub is wired (e.g. one-off CLI commands);
// it logs instead of delivering.
type logDispatcher struct{}

func (logDispatcher) Broadcast(ev Event, rooms ...string) {
	log.Printf("[checkin] dropped %s event (no hub attached)", ev.Name)
}
