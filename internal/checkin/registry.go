package checkin

import "sync"

// Binding associates one open realtime connection with a user and the room
// derived from its role. Bindings are ephemeral: they live in process memory
// for the lifetime of the connection and are lost on restart, so clients
// must re-join their room after reconnecting.
type Binding struct {
	ConnID string
	UserID string
	Role   Role
	Room   string
}

// Registry is a thread-safe, in-memory table of connection bindings.
// It is owned by the server process: constructed in main, injected into the
// transport layer, and torn down with it.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]Binding
}

// NewRegistry returns an initialised, empty Registry.
func NewRegistry() *Registry {
	return &Registry{byConn: make(map[string]Binding)}
}

// Register stores the binding for connID and returns the room the transport
// should subscribe the connection to. Re-registering an existing connection
// replaces its previous binding (last writer wins).
func (r *Registry) Register(connID, userID string, role Role) string {
	room := role.Room(userID)
	r.mu.Lock()
	r.byConn[connID] = Binding{ConnID: connID, UserID: userID, Role: role, Room: room}
	r.mu.Unlock()
	return room
}

// Unregister removes the binding for connID. It is idempotent: unregistering
// an unknown connection is not an error.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	delete(r.byConn, connID)
	r.mu.Unlock()
}

// Get returns the binding for connID, or (zero, false) when not registered.
func (r *Registry) Get(connID string) (Binding, bool) {
	r.mu.RLock()
	b, ok := r.byConn[connID]
	r.mu.RUnlock()
	return b, ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.byConn)
	r.mu.RUnlock()
	return n
}
