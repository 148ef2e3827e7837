package gateway

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// State is the lifecycle state of a connection.
type State uint8

const (
	StateOpening State = iota
	StateOpen
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Observer receives diagnostics. Nil means NopObserver.
	Observer Observer

	// Middleware wraps every call into the core, outermost first.
	Middleware []Middleware

	// Logger is the base logger. Nil means slog.Default().
	Logger *slog.Logger
}

type connEntry struct {
	// mu serializes message handling and the close transition.
	mu    sync.Mutex
	conn  Conn
	state State
}

// Manager drives the lifecycle of every connection and owns the live count.
type Manager struct {
	core       Core
	registry   *Registry
	dispatcher *Dispatcher
	observer   Observer
	logger     *slog.Logger

	mu    sync.RWMutex
	conns map[ConnID]*connEntry

	count       atomic.Int64
	totalOpened atomic.Uint64
	totalClosed atomic.Uint64
}

// NewManager creates a Manager feeding core. A nil config uses defaults.
func NewManager(core Core, config *ManagerConfig) *Manager {
	if config == nil {
		config = &ManagerConfig{}
	}
	observer := config.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		core:       core,
		registry:   NewRegistry(observer),
		dispatcher: NewDispatcher(core, observer, config.Middleware...),
		observer:   observer,
		logger:     logger.With("component", "gateway"),
		conns:      make(map[ConnID]*connEntry),
	}
}

// OnOpen registers conn and moves it to StateOpen.
// Opening an already known connection is a no-op.
func (m *Manager) OnOpen(conn Conn) {
	id := conn.ID()
	e := &connEntry{conn: conn, state: StateOpening}

	m.mu.Lock()
	if _, ok := m.conns[id]; ok {
		m.mu.Unlock()
		m.logger.Warn("duplicate open ignored", "conn_id", id)
		return
	}
	m.conns[id] = e
	e.state = StateOpen
	m.count.Add(1)
	m.mu.Unlock()

	m.totalOpened.Add(1)
	m.observer.ConnectionOpened(conn)
}

// OnMessage decodes payload and dispatches it for conn.
//
// Messages for connections that are not open are ignored. A payload that does
// not decode closes the connection. The only errors returned are internal
// faults, always as *InternalError; the connection stays open after one.
func (m *Manager) OnMessage(ctx context.Context, conn Conn, payload []byte) error {
	e := m.entry(conn.ID())
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateOpen {
		return nil
	}

	m.observer.MessageReceived(conn.ID(), payload)

	msg, err := protocol.Decode(payload)
	if err != nil {
		m.observer.DecodeFailed(conn.ID(), err)
		conn.Close()
		return m.closeLocked(e)
	}

	peer, _ := m.registry.Resolve(conn)
	err = m.dispatcher.Dispatch(ctx, msg, peer)
	if err != nil {
		var ie *InternalError
		if !errors.As(err, &ie) {
			err = &InternalError{ConnID: conn.ID(), Err: err}
		}
		m.observer.InternalError(conn.ID(), err)
	}

	if peer.closing.Load() {
		// A dispatch fault wins; a disconnect fault was already observed.
		if cerr := m.closeLocked(e); err == nil {
			err = cerr
		}
	}
	return err
}

// OnDrain reports that conn's outbound buffer shrank to buffered bytes.
// It touches no connection state.
func (m *Manager) OnDrain(conn Conn, buffered int) {
	m.observer.Drain(conn.ID(), buffered)
}

// OnClose moves conn to StateClosed. Repeated calls are no-ops.
// A panic in Core.DisconnectPeer is returned as *InternalError once the
// close transition has completed.
func (m *Manager) OnClose(conn Conn) error {
	e := m.entry(conn.ID())
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return m.closeLocked(e)
}

// closeLocked performs the close transition. e.mu must be held.
func (m *Manager) closeLocked(e *connEntry) error {
	if e.state == StateClosed {
		return nil
	}
	e.state = StateClosed
	id := e.conn.ID()

	m.mu.Lock()
	delete(m.conns, id)
	m.count.Add(-1)
	m.mu.Unlock()
	m.totalClosed.Add(1)

	var err error
	peer, ok := m.registry.Release(id)
	if ok {
		err = m.disconnect(peer)
		peer.markClosed()
	}

	m.observer.ConnectionClosed(e.conn, peer)
	if err != nil {
		m.observer.InternalError(id, err)
	}
	return err
}

// disconnect notifies the core, converting a panic into *InternalError.
func (m *Manager) disconnect(peer *PeerContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InternalError{
				ConnID: peer.ConnID(),
				Panic:  r,
				Stack:  debug.Stack(),
			}
		}
	}()
	m.core.DisconnectPeer(peer)
	return nil
}

// CloseAll closes every live connection. Faults raised while disconnecting
// peers are joined into the returned error.
func (m *Manager) CloseAll() error {
	m.mu.RLock()
	entries := make([]*connEntry, 0, len(m.conns))
	for _, e := range m.conns {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		e.conn.Close()
		e.mu.Lock()
		if err := m.closeLocked(e); err != nil {
			errs = append(errs, err)
		}
		e.mu.Unlock()
	}

	if len(entries) > 0 {
		m.logger.Info("closed all connections", "count", len(entries))
	}
	return errors.Join(errs...)
}

// State returns the lifecycle state of the connection with the given id.
// Unknown connections report StateClosed.
func (m *Manager) State(id ConnID) State {
	e := m.entry(id)
	if e == nil {
		return StateClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Peer returns the PeerContext of an open connection.
func (m *Manager) Peer(id ConnID) (*PeerContext, bool) {
	return m.registry.Lookup(id)
}

// Count returns the number of open connections.
func (m *Manager) Count() int64 {
	return m.count.Load()
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		WebSocketsCount: m.count.Load(),
		Peers:           m.registry.Len(),
		TotalOpened:     m.totalOpened.Load(),
		TotalClosed:     m.totalClosed.Load(),
	}
}

func (m *Manager) entry(id ConnID) *connEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[id]
}
