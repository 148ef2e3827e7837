package gateway

import (
	"log/slog"

	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// Observer receives gateway diagnostics.
// Implementations are called from connection goroutines and must be safe for
// concurrent use. They must not block.
type Observer interface {
	ConnectionOpened(conn Conn)
	ConnectionClosed(conn Conn, peer *PeerContext)
	MessageReceived(id ConnID, payload []byte)
	MessageSent(id ConnID, payload []byte)
	DecodeFailed(id ConnID, err error)
	ProtocolError(id ConnID, msg *protocol.Message, err *ProtocolError)
	InternalError(id ConnID, err error)
	SendFailed(id ConnID, err error)
	Drain(id ConnID, buffered int)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ConnectionOpened(Conn)                                   {}
func (NopObserver) ConnectionClosed(Conn, *PeerContext)                     {}
func (NopObserver) MessageReceived(ConnID, []byte)                          {}
func (NopObserver) MessageSent(ConnID, []byte)                              {}
func (NopObserver) DecodeFailed(ConnID, error)                              {}
func (NopObserver) ProtocolError(ConnID, *protocol.Message, *ProtocolError) {}
func (NopObserver) InternalError(ConnID, error)                             {}
func (NopObserver) SendFailed(ConnID, error)                                {}
func (NopObserver) Drain(ConnID, int)                                       {}

// LogObserver writes gateway events to a structured logger.
// Message bodies are only rendered when Verbose is set.
type LogObserver struct {
	logger  *slog.Logger
	verbose bool
}

// NewLogObserver creates a LogObserver. A nil logger means slog.Default().
func NewLogObserver(logger *slog.Logger, verbose bool) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{
		logger:  logger.With("component", "gateway"),
		verbose: verbose,
	}
}

// Verbose reports whether message bodies are logged.
func (o *LogObserver) Verbose() bool {
	return o.verbose
}

func (o *LogObserver) ConnectionOpened(conn Conn) {
	o.logger.Debug("connection opened", "conn_id", conn.ID(), "remote_addr", conn.RemoteAddr())
}

func (o *LogObserver) ConnectionClosed(conn Conn, peer *PeerContext) {
	if peer == nil {
		o.logger.Debug("connection closed", "conn_id", conn.ID())
		return
	}
	peerID, _ := peer.PeerID()
	o.logger.Debug("connection closed", "conn_id", conn.ID(), "peer_id", peerID)
}

func (o *LogObserver) MessageReceived(id ConnID, payload []byte) {
	if !o.verbose {
		return
	}
	o.logger.Debug("in", "conn_id", id, "body", string(payload))
}

func (o *LogObserver) MessageSent(id ConnID, payload []byte) {
	if !o.verbose {
		return
	}
	o.logger.Debug("out", "conn_id", id, "body", string(payload))
}

func (o *LogObserver) DecodeFailed(id ConnID, err error) {
	o.logger.Debug("closing connection: undecodable frame", "conn_id", id, "error", err)
}

func (o *LogObserver) ProtocolError(id ConnID, msg *protocol.Message, err *ProtocolError) {
	o.logger.Debug("closing connection: protocol error", "conn_id", id, "action", msg.Action, "error", err.Message)
}

func (o *LogObserver) InternalError(id ConnID, err error) {
	o.logger.Error("internal error", "conn_id", id, "error", err)
}

func (o *LogObserver) SendFailed(id ConnID, err error) {
	o.logger.Warn("outbound frame dropped", "conn_id", id, "error", err)
}

func (o *LogObserver) Drain(id ConnID, buffered int) {
	o.logger.Debug("drain", "conn_id", id, "buffered", buffered)
}

// Observers fans events out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	list := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return NopObserver{}
	case 1:
		return list[0]
	default:
		return list
	}
}

type multiObserver []Observer

func (m multiObserver) ConnectionOpened(conn Conn) {
	for _, o := range m {
		o.ConnectionOpened(conn)
	}
}

func (m multiObserver) ConnectionClosed(conn Conn, peer *PeerContext) {
	for _, o := range m {
		o.ConnectionClosed(conn, peer)
	}
}

func (m multiObserver) MessageReceived(id ConnID, payload []byte) {
	for _, o := range m {
		o.MessageReceived(id, payload)
	}
}

func (m multiObserver) MessageSent(id ConnID, payload []byte) {
	for _, o := range m {
		o.MessageSent(id, payload)
	}
}

func (m multiObserver) DecodeFailed(id ConnID, err error) {
	for _, o := range m {
		o.DecodeFailed(id, err)
	}
}

func (m multiObserver) ProtocolError(id ConnID, msg *protocol.Message, err *ProtocolError) {
	for _, o := range m {
		o.ProtocolError(id, msg, err)
	}
}

func (m multiObserver) InternalError(id ConnID, err error) {
	for _, o := range m {
		o.InternalError(id, err)
	}
}

func (m multiObserver) SendFailed(id ConnID, err error) {
	for _, o := range m {
		o.SendFailed(id, err)
	}
}

func (m multiObserver) Drain(id ConnID, buffered int) {
	for _, o := range m {
		o.Drain(id, buffered)
	}
}
