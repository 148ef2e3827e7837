package gateway

import (
	"context"

	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// Core is the protocol-processing side of the gateway.
type Core interface {
	// ProcessMessage handles one decoded message. It returns a *ProtocolError
	// for peer-caused violations; any other error is an internal fault.
	// It must not block on network I/O.
	ProcessMessage(ctx context.Context, msg *protocol.Message, peer *PeerContext) error

	// DisconnectPeer is called exactly once after the peer's connection closed.
	DisconnectPeer(peer *PeerContext)
}

// CoreFuncs adapts a pair of functions to the Core interface.
// A nil Disconnect is allowed.
type CoreFuncs struct {
	Process    func(ctx context.Context, msg *protocol.Message, peer *PeerContext) error
	Disconnect func(peer *PeerContext)
}

// ProcessMessage calls f.Process.
func (f CoreFuncs) ProcessMessage(ctx context.Context, msg *protocol.Message, peer *PeerContext) error {
	return f.Process(ctx, msg, peer)
}

// DisconnectPeer calls f.Disconnect when set.
func (f CoreFuncs) DisconnectPeer(peer *PeerContext) {
	if f.Disconnect != nil {
		f.Disconnect(peer)
	}
}
