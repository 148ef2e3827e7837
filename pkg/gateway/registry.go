package gateway

import (
	"sync"
)

// Registry is the side-table from connections to their PeerContext.
type Registry struct {
	mu       sync.Mutex
	peers    map[ConnID]*PeerContext
	observer Observer
}

// NewRegistry creates an empty Registry. A nil observer means NopObserver.
func NewRegistry(observer Observer) *Registry {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Registry{
		peers:    make(map[ConnID]*PeerContext),
		observer: observer,
	}
}

// Resolve returns the PeerContext bound to conn, creating it on first use.
// The second result reports whether the context was created by this call.
func (r *Registry) Resolve(conn Conn) (*PeerContext, bool) {
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.peers[id]; ok {
		return p, false
	}
	p := newPeerContext(conn, r.observer)
	r.peers[id] = p
	return p, true
}

// Lookup returns the PeerContext bound to id without creating one.
func (r *Registry) Lookup(id ConnID) (*PeerContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	return p, ok
}

// Release removes and returns the PeerContext bound to id.
func (r *Registry) Release(id ConnID) (*PeerContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if ok {
		delete(r.peers, id)
	}
	return p, ok
}

// Len returns the number of bound contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}
