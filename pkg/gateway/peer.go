package gateway

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// PeerContext is the gateway's per-connection handle given to the core.
//
// It is created on the first decoded message of a connection and lives until
// the connection closes. The peer id is assigned by the core and never changes
// afterwards. SendMessage is safe to call from any goroutine, including after
// the connection closed.
type PeerContext struct {
	conn     Conn
	observer Observer
	created  time.Time

	mu        sync.RWMutex
	peerID    string
	hasPeerID bool

	// closing is set once a close was requested; closed once the gateway
	// finished the close transition.
	closing atomic.Bool
	closed  atomic.Bool
}

func newPeerContext(conn Conn, observer Observer) *PeerContext {
	return &PeerContext{
		conn:     conn,
		observer: observer,
		created:  time.Now(),
	}
}

// ConnID returns the identifier of the owning connection.
func (p *PeerContext) ConnID() ConnID {
	return p.conn.ID()
}

// RemoteAddr returns the network address of the owning connection.
func (p *PeerContext) RemoteAddr() string {
	return p.conn.RemoteAddr()
}

// Created returns when the context was created.
func (p *PeerContext) Created() time.Time {
	return p.created
}

// PeerID returns the assigned peer id, if any.
func (p *PeerContext) PeerID() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peerID, p.hasPeerID
}

// SetPeerID binds id to the connection. Binding the same id again is a no-op;
// binding a different one returns ErrPeerIDAssigned.
func (p *PeerContext) SetPeerID(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasPeerID {
		if p.peerID == id {
			return nil
		}
		return ErrPeerIDAssigned
	}
	p.peerID = id
	p.hasPeerID = true
	return nil
}

// SendMessage serializes v and queues it on the owning connection.
//
// Delivery is best effort. After the connection closed the call is a silent
// no-op. A full outbound queue drops the frame and is reported to the
// observer only. The returned error is non-nil only when v cannot be encoded.
func (p *PeerContext) SendMessage(v any) error {
	if p.closed.Load() {
		return nil
	}

	payload, err := protocol.Encode(v)
	if err != nil {
		return err
	}

	if err := p.conn.Send(payload); err != nil {
		if !errors.Is(err, ErrConnectionClosed) {
			p.observer.SendFailed(p.conn.ID(), err)
		}
		return nil
	}
	p.observer.MessageSent(p.conn.ID(), payload)
	return nil
}

// Close asks the transport to close the owning connection.
// The close transition itself is driven by the Manager.
func (p *PeerContext) Close() {
	if p.closing.CompareAndSwap(false, true) {
		p.conn.Close()
	}
}

// Closed reports whether the owning connection has closed.
func (p *PeerContext) Closed() bool {
	return p.closed.Load()
}

func (p *PeerContext) markClosed() {
	p.closing.Store(true)
	p.closed.Store(true)
}
