// Package middleware provides observability for the tracker gateway.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics (a gateway.Observer plus a gateway.Middleware)
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware opens a span for every message handed to the
// core. Spans carry the connection id, action, info hash and, once bound, the
// peer id.
//
//	cfg := server.DefaultServerConfig().WithMiddleware(
//	    middleware.OpenTelemetry(),
//	)
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("tracker"),
//	    middleware.WithMessageFilter(func(msg *protocol.Message) bool {
//	        return msg.Kind != protocol.KindScrape
//	    }),
//	)
//
// # Prometheus Metrics
//
// Metrics are split between connection events, which arrive through the
// observer, and message handling, which is timed by the middleware:
//
//	m := middleware.NewMetrics()
//	cfg := server.DefaultServerConfig().
//	    WithObserver(m.Observer()).
//	    WithMiddleware(m.Middleware())
//
// Expose them with promhttp.Handler().
package middleware
