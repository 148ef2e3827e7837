package gateway

// Stats is a point-in-time snapshot of the Manager.
type Stats struct {
	// WebSocketsCount is the number of connections opened and not yet closed.
	WebSocketsCount int64 `json:"webSocketsCount"`

	// Peers is the number of connections that have a PeerContext.
	Peers int `json:"peers"`

	// TotalOpened and TotalClosed count connections since the manager started.
	TotalOpened uint64 `json:"totalOpened"`
	TotalClosed uint64 `json:"totalClosed"`
}
