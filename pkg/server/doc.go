// Package server binds WebSocket listeners for the tracker gateway.
//
// A Server owns one listener (plain or TLS), one gorilla upgrader and one
// gateway.Manager. Several servers may share a single gateway.Core, which is
// how a tracker serves ws:// and wss:// at the same time.
//
// # Connection handling
//
// Each upgraded connection runs two goroutines:
//   - the read loop, which delivers open, message and close events to the
//     Manager in order and refreshes the idle deadline on every frame and pong
//   - the write loop, which drains the outbound queue, sends pings every
//     IdleTimeout/2 and reports drains
//
// Frames larger than MaxPayloadLength are refused by the transport with close
// status 1009 before they reach the decoder.
//
// # Upgrade policy
//
// Before upgrading, the origin policy (AccessConfig) may refuse the request
// with 403, and MaxConnections may refuse it with 503.
//
// # Faults
//
// Internal faults returned by the Manager are passed to the configured
// FaultHandler. DefaultFaultHandler logs them; a binary may exit instead.
//
// # Lifecycle
//
//	srv := server.New(core, server.DefaultServerConfig())
//	if err := srv.Start(); err != nil {
//	    var be *server.BindError
//	    ...
//	}
//	defer srv.Shutdown(context.Background())
package server
