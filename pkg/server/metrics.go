package server

import (
	"sync/atomic"
	"time"
)

// ServerMetrics is a snapshot of one server's counters.
type ServerMetrics struct {
	// Connections
	WebSocketsCount int64  `json:"webSocketsCount"`
	Peers           int    `json:"peers"`
	TotalOpened     uint64 `json:"totalOpened"`
	TotalClosed     uint64 `json:"totalClosed"`

	// Refused upgrades
	RejectedOrigin   uint64 `json:"rejectedOrigin"`
	RejectedCapacity uint64 `json:"rejectedCapacity"`

	// Network
	BytesSent     uint64 `json:"bytesSent"`
	BytesReceived uint64 `json:"bytesReceived"`

	// Errors
	Faults uint64 `json:"faults"`

	// Timestamp
	CollectedAt time.Time `json:"collectedAt"`
}

type serverCounters struct {
	rejectedOrigin   atomic.Uint64
	rejectedCapacity atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
	faults           atomic.Uint64
}

// Metrics collects and returns server metrics.
func (s *Server) Metrics() *ServerMetrics {
	stats := s.manager.Stats()

	return &ServerMetrics{
		WebSocketsCount:  stats.WebSocketsCount,
		Peers:            stats.Peers,
		TotalOpened:      stats.TotalOpened,
		TotalClosed:      stats.TotalClosed,
		RejectedOrigin:   s.stats.rejectedOrigin.Load(),
		RejectedCapacity: s.stats.rejectedCapacity.Load(),
		BytesSent:        s.stats.bytesSent.Load(),
		BytesReceived:    s.stats.bytesReceived.Load(),
		Faults:           s.stats.faults.Load(),
		CollectedAt:      time.Now(),
	}
}
