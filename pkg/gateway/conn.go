package gateway

import (
	"github.com/google/uuid"
)

// ConnID identifies a connection for the lifetime of the process.
type ConnID string

// NewConnID returns a fresh random connection identifier.
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// String returns the identifier as a string.
func (id ConnID) String() string {
	return string(id)
}

// Conn is a transport connection as seen by the gateway.
// The transport owns the socket; the gateway only holds a reference while the
// connection is open.
type Conn interface {
	// ID returns the connection's stable identifier.
	ID() ConnID

	// Send queues one text frame. It must not block on the network.
	// It returns ErrConnectionClosed once the connection is closed and
	// ErrSendQueueFull when the outbound queue has no room.
	Send(payload []byte) error

	// Close closes the connection. It is safe to call more than once.
	Close()

	// BufferedAmount returns the number of bytes queued but not yet written.
	BufferedAmount() int

	// RemoteAddr returns the peer's network address.
	RemoteAddr() string
}
