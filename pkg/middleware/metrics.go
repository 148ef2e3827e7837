package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/darkkid0/wt-tracker/pkg/gateway"
	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "wt_tracker").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for message handling duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "wt_tracker",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics holds the gateway's Prometheus collectors.
// Use Observer to feed connection events and Middleware to time the core.
type Metrics struct {
	websockets      prometheus.Gauge
	connections     prometheus.Counter
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	decodeFailures  *prometheus.CounterVec
	faults          prometheus.Counter
	framesSent      prometheus.Counter
	bytesReceived   prometheus.Counter
	bytesSent       prometheus.Counter
	sendFailures    *prometheus.CounterVec
	drains          prometheus.Counter
}

// NewMetrics registers the gateway metrics.
//
// Metrics collected:
//   - wt_tracker_websockets: Gauge of open WebSocket connections
//   - wt_tracker_connections_total: Counter of accepted connections
//   - wt_tracker_messages_total: Counter of dispatched messages by action and status
//   - wt_tracker_message_duration_seconds: Histogram of core handling time by action
//   - wt_tracker_decode_failures_total: Counter of undecodable frames by reason
//   - wt_tracker_faults_total: Counter of internal faults
//   - wt_tracker_frames_sent_total: Counter of outbound frames
//   - wt_tracker_received_bytes_total / wt_tracker_sent_bytes_total: Payload bytes
//   - wt_tracker_send_failures_total: Counter of dropped outbound frames by reason
//   - wt_tracker_drains_total: Counter of drain events
//
// Example:
//
//	m := middleware.NewMetrics(middleware.WithNamespace("tracker"))
//	cfg := server.DefaultServerConfig().
//	    WithObserver(m.Observer()).
//	    WithMiddleware(m.Middleware())
//
//	// Expose metrics endpoint
//	r.Handle("/metrics", promhttp.Handler())
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &Metrics{
		websockets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websockets",
			Help:        "Number of open WebSocket connections",
			ConstLabels: config.ConstLabels,
		}),
		connections:   counter("connections_total", "Total number of accepted WebSocket connections"),
		messagesTotal: counterVec("messages_total", "Total number of dispatched messages", "action", "status"),
		messageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "message_duration_seconds",
			Help:        "Message handling duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"action"}),
		decodeFailures: counterVec("decode_failures_total", "Total number of undecodable frames", "reason"),
		faults:         counter("faults_total", "Total number of internal faults"),
		framesSent:     counter("frames_sent_total", "Total number of outbound frames"),
		bytesReceived:  counter("received_bytes_total", "Total inbound payload bytes"),
		bytesSent:      counter("sent_bytes_total", "Total outbound payload bytes"),
		sendFailures:   counterVec("send_failures_total", "Total number of dropped outbound frames", "reason"),
		drains:         counter("drains_total", "Total number of drain events"),
	}
}

// Middleware times every call into the core and counts it by outcome.
func (m *Metrics) Middleware() gateway.Middleware {
	return func(next gateway.Handler) gateway.Handler {
		return func(ctx context.Context, msg *protocol.Message, peer *gateway.PeerContext) error {
			action := actionLabel(msg)

			start := time.Now()
			err := next(ctx, msg, peer)
			m.messageDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

			m.messagesTotal.WithLabelValues(action, statusLabel(err)).Inc()
			return err
		}
	}
}

// Observer returns a gateway.Observer feeding the connection metrics.
func (m *Metrics) Observer() gateway.Observer {
	return metricsObserver{m: m}
}

// actionLabel bounds label cardinality to the known actions.
func actionLabel(msg *protocol.Message) string {
	switch msg.Action {
	case protocol.ActionAnnounce, protocol.ActionScrape:
		return msg.Action
	default:
		return "unknown"
	}
}

func statusLabel(err error) string {
	switch gateway.Classify(err) {
	case gateway.KindNone:
		return "ok"
	case gateway.KindProtocol:
		return "protocol_error"
	default:
		return "internal_error"
	}
}

type metricsObserver struct {
	gateway.NopObserver
	m *Metrics
}

func (o metricsObserver) ConnectionOpened(gateway.Conn) {
	o.m.websockets.Inc()
	o.m.connections.Inc()
}

func (o metricsObserver) ConnectionClosed(gateway.Conn, *gateway.PeerContext) {
	o.m.websockets.Dec()
}

func (o metricsObserver) MessageReceived(_ gateway.ConnID, payload []byte) {
	o.m.bytesReceived.Add(float64(len(payload)))
}

func (o metricsObserver) MessageSent(_ gateway.ConnID, payload []byte) {
	o.m.framesSent.Inc()
	o.m.bytesSent.Add(float64(len(payload)))
}

func (o metricsObserver) DecodeFailed(_ gateway.ConnID, err error) {
	reason := protocol.ReasonUnknown
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		reason = de.Reason
	}
	o.m.decodeFailures.WithLabelValues(reason.String()).Inc()
}

func (o metricsObserver) InternalError(gateway.ConnID, error) {
	o.m.faults.Inc()
}

func (o metricsObserver) SendFailed(_ gateway.ConnID, err error) {
	reason := "other"
	if errors.Is(err, gateway.ErrSendQueueFull) {
		reason = "queue_full"
	}
	o.m.sendFailures.WithLabelValues(reason).Inc()
}

func (o metricsObserver) Drain(gateway.ConnID, int) {
	o.m.drains.Inc()
}
