// Package gateway bridges WebSocket connections to a tracker core.
//
// The gateway owns three things: the lifecycle state of every live connection,
// the side-table that binds each connection to its PeerContext, and the
// dispatch boundary that separates peer mistakes from server defects.
//
// # Lifecycle
//
// A transport binder (see pkg/server) feeds the Manager with events for each
// connection, one at a time and in order:
//
//	OnOpen → OnMessage* → OnClose
//
// OnDrain may arrive from the connection's writer at any point; it is purely
// observational.
//
// Every OnMessage payload is decoded with protocol.Decode. A payload that does
// not decode closes the connection immediately and never reaches the core.
// The first decoded message creates the connection's PeerContext; later
// messages reuse the same instance. OnClose notifies Core.DisconnectPeer exactly
// once when a PeerContext exists and is a no-op when repeated.
//
// # Errors
//
// The core reports peer-caused violations with a *ProtocolError. The Dispatcher
// closes the offending connection and swallows the error. Any other error, and
// any panic, is an internal fault and is returned to the caller of OnMessage:
//
//	switch gateway.Classify(err) {
//	case gateway.KindNone:
//	case gateway.KindProtocol:
//	case gateway.KindInternal:
//	}
//
// # Diagnostics
//
// Diagnostics flow through an injected Observer. NopObserver costs nothing;
// LogObserver writes structured logs and only renders message bodies in
// verbose mode.
package gateway
