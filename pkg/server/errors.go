package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/darkkid0/wt-tracker/pkg/gateway"
)

// Sentinel errors for server conditions.
var (
	// ErrServerStarted is returned by Start when the server is already listening.
	ErrServerStarted = errors.New("server: already started")

	// ErrServerNotStarted is returned by operations that need a listener.
	ErrServerNotStarted = errors.New("server: not started")

	// ErrOriginDenied is logged when the origin policy refuses an upgrade.
	ErrOriginDenied = errors.New("server: origin denied")

	// ErrMaxConnectionsReached is logged when an upgrade is refused for capacity.
	ErrMaxConnectionsReached = errors.New("server: max connections reached")
)

// BindError is returned by Start when the server cannot listen.
type BindError struct {
	Host string
	Port int
	Err  error
}

// Error returns the error message with the attempted address.
func (e *BindError) Error() string {
	return fmt.Sprintf("server: failed to listen on %s: %v", joinHostPort(e.Host, e.Port), e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *BindError) Unwrap() error {
	return e.Err
}

// FaultHandler receives internal faults raised while a message was handled.
// It runs on the connection's read goroutine.
type FaultHandler func(err error)

// DefaultFaultHandler returns a FaultHandler that logs faults at error level,
// including the stack of recovered panics.
func DefaultFaultHandler(logger *slog.Logger) FaultHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error) {
		var ie *gateway.InternalError
		if errors.As(err, &ie) && ie.Stack != nil {
			logger.Error("internal fault", "conn_id", ie.ConnID, "panic", ie.Panic, "stack", string(ie.Stack))
			return
		}
		logger.Error("internal fault", "error", err)
	}
}
