package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection and peer conditions.
var (
	// ErrConnectionClosed is returned by Conn.Send after the connection closed.
	ErrConnectionClosed = errors.New("gateway: connection closed")

	// ErrSendQueueFull is returned by Conn.Send when the outbound queue is full.
	ErrSendQueueFull = errors.New("gateway: send queue full")

	// ErrPeerIDAssigned is returned when a different peer id is bound to a
	// connection that already has one.
	ErrPeerIDAssigned = errors.New("gateway: peer id already assigned")
)

// ProtocolError reports a well-formed message that breaks the tracker protocol.
// Returning one from Core.ProcessMessage closes the peer's connection.
type ProtocolError struct {
	Message string
	Err     error
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: protocol error: %s: %v", e.Message, e.Err)
	}
	return "gateway: protocol error: " + e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

// InternalError wraps a fault raised while handling a message: either an
// unexpected error returned by the core or a recovered panic.
type InternalError struct {
	ConnID ConnID
	Err    error
	Panic  any
	Stack  []byte
}

// Error returns the error message.
func (e *InternalError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("gateway: panic on connection %s: %v", e.ConnID, e.Panic)
	}
	return fmt.Sprintf("gateway: internal error on connection %s: %v", e.ConnID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *InternalError) Unwrap() error {
	return e.Err
}

// ErrorKind is the outcome class of a dispatched message.
type ErrorKind uint8

const (
	KindNone     ErrorKind = iota // Handled
	KindProtocol                  // Peer broke the protocol
	KindInternal                  // Server defect
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindProtocol:
		return "protocol"
	default:
		return "internal"
	}
}

// Classify maps a handler result to its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return KindProtocol
	}
	return KindInternal
}
