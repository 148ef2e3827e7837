package gateway

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// Handler processes one decoded message for a peer.
type Handler func(ctx context.Context, msg *protocol.Message, peer *PeerContext) error

// Middleware wraps a Handler. The first middleware in a chain is outermost.
type Middleware func(next Handler) Handler

// Chain composes middleware around h.
func Chain(h Handler, mw ...Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			h = mw[i](h)
		}
	}
	return h
}

// Dispatcher hands decoded messages to the core and contains protocol errors.
type Dispatcher struct {
	handler  Handler
	observer Observer
}

// NewDispatcher creates a Dispatcher calling core.ProcessMessage through mw.
// A nil observer means NopObserver.
func NewDispatcher(core Core, observer Observer, mw ...Middleware) *Dispatcher {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Dispatcher{
		handler:  Chain(core.ProcessMessage, mw...),
		observer: observer,
	}
}

// Dispatch invokes the core once for msg.
//
// A *ProtocolError closes the peer's connection and is not returned. Any other
// error is returned as is; a panic is recovered and returned as *InternalError
// carrying the stack.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *protocol.Message, peer *PeerContext) error {
	err := d.invoke(ctx, msg, peer)

	switch Classify(err) {
	case KindNone:
		return nil
	case KindProtocol:
		var pe *ProtocolError
		errors.As(err, &pe)
		d.observer.ProtocolError(peer.ConnID(), msg, pe)
		peer.Close()
		return nil
	default:
		return err
	}
}

func (d *Dispatcher) invoke(ctx context.Context, msg *protocol.Message, peer *PeerContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InternalError{
				ConnID: peer.ConnID(),
				Panic:  r,
				Stack:  debug.Stack(),
			}
		}
	}()
	return d.handler(ctx, msg, peer)
}
