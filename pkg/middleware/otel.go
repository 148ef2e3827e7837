package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/darkkid0/wt-tracker/pkg/gateway"
	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// Default tracer name for the tracker.
const defaultTracerName = "wt-tracker"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "wt-tracker").
	TracerName string

	// TracerProvider overrides the global provider when set.
	TracerProvider trace.TracerProvider

	// IncludePeerID includes the peer id in traces once assigned.
	// Enabled by default.
	IncludePeerID bool

	// IncludeRemoteAddr includes the peer's network address in traces.
	// May contain personal data - disabled by default.
	IncludeRemoteAddr bool

	// Filter determines which messages to trace.
	// Return true to trace the message, false to skip.
	// If nil, all messages are traced.
	Filter func(msg *protocol.Message) bool

	// AttributeExtractor adds custom attributes for each traced message.
	AttributeExtractor func(msg *protocol.Message, peer *gateway.PeerContext) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludePeerID enables/disables including the peer id in traces.
func WithIncludePeerID(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludePeerID = include
	}
}

// WithIncludeRemoteAddr enables including the remote address in traces.
func WithIncludeRemoteAddr(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeRemoteAddr = include
	}
}

// WithMessageFilter sets a filter function for messages.
func WithMessageFilter(filter func(msg *protocol.Message) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(msg *protocol.Message, peer *gateway.PeerContext) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultOTelConfig returns the default OpenTelemetry configuration.
func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:    defaultTracerName,
		IncludePeerID: true,
	}
}

// OpenTelemetry creates middleware that traces every dispatched message.
//
// The middleware:
//   - Creates a span per message named after its action
//   - Passes the span context to the core through ctx
//   - Records errors; protocol errors are tagged with wt.error_kind
//
// Example:
//
//	cfg := server.DefaultServerConfig().WithMiddleware(
//	    middleware.OpenTelemetry(
//	        middleware.WithTracerName("tracker"),
//	    ),
//	)
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main() before starting servers.
func OpenTelemetry(opts ...OTelOption) gateway.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return func(next gateway.Handler) gateway.Handler {
		return func(ctx context.Context, msg *protocol.Message, peer *gateway.PeerContext) error {
			if config.Filter != nil && !config.Filter(msg) {
				return next(ctx, msg, peer)
			}

			attrs := []attribute.KeyValue{
				attribute.String("wt.conn_id", peer.ConnID().String()),
				attribute.String("wt.action", msg.Action),
				attribute.String("wt.kind", msg.Kind.String()),
				attribute.Int("wt.payload_size", len(msg.Raw)),
			}
			if msg.Announce != nil {
				attrs = append(attrs, attribute.String("wt.info_hash", msg.Announce.InfoHash))
				if msg.Announce.Event != protocol.EventNone {
					attrs = append(attrs, attribute.String("wt.event", string(msg.Announce.Event)))
				}
			}
			if config.IncludePeerID {
				if id, ok := peer.PeerID(); ok {
					attrs = append(attrs, attribute.String("wt.peer_id", id))
				}
			}
			if config.IncludeRemoteAddr {
				attrs = append(attrs, attribute.String("wt.remote_addr", peer.RemoteAddr()))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(msg, peer)...)
			}

			spanCtx, span := config.tracer.Start(
				ctx,
				spanName(msg),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
				trace.WithTimestamp(time.Now()),
			)
			defer span.End()

			err := next(spanCtx, msg, peer)

			switch gateway.Classify(err) {
			case gateway.KindNone:
				span.SetStatus(codes.Ok, "")
			case gateway.KindProtocol:
				span.SetAttributes(attribute.String("wt.error_kind", "protocol"))
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			default:
				span.SetAttributes(attribute.String("wt.error_kind", "internal"))
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}

			// The peer id may have been bound by this message.
			if config.IncludePeerID {
				if id, ok := peer.PeerID(); ok {
					span.SetAttributes(attribute.String("wt.peer_id", id))
				}
			}
			return err
		}
	}
}

// SpanFromContext retrieves the current trace span from the context passed
// to the core.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// spanName creates a span name from the message.
func spanName(msg *protocol.Message) string {
	switch msg.Kind {
	case protocol.KindAnnounce:
		if msg.Announce.IsAnswer() {
			return "wt.answer"
		}
		return "wt.announce"
	case protocol.KindScrape:
		return "wt.scrape"
	case protocol.KindInvalid:
		return "wt.invalid"
	default:
		return "wt.unknown"
	}
}
