package gateway

import (
	"context"
	"sync"

	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

type fakeConn struct {
	id ConnID

	mu         sync.Mutex
	sent       [][]byte
	closeCalls int
	full       bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: NewConnID()}
}

func (c *fakeConn) ID() ConnID { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeCalls > 0 {
		return ErrConnectionClosed
	}
	if c.full {
		return ErrSendQueueFull
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
}

func (c *fakeConn) BufferedAmount() int { return 0 }

func (c *fakeConn) RemoteAddr() string { return "127.0.0.1:6881" }

func (c *fakeConn) closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls > 0
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

type fakeCore struct {
	mu          sync.Mutex
	processed   []*protocol.Message
	peers       []*PeerContext
	disconnects []*PeerContext
	process     func(ctx context.Context, msg *protocol.Message, peer *PeerContext) error
	disconnect  func(peer *PeerContext)
}

func (c *fakeCore) ProcessMessage(ctx context.Context, msg *protocol.Message, peer *PeerContext) error {
	c.mu.Lock()
	c.processed = append(c.processed, msg)
	c.peers = append(c.peers, peer)
	fn := c.process
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, msg, peer)
	}
	return nil
}

func (c *fakeCore) DisconnectPeer(peer *PeerContext) {
	c.mu.Lock()
	c.disconnects = append(c.disconnects, peer)
	fn := c.disconnect
	c.mu.Unlock()

	if fn != nil {
		fn(peer)
	}
}

func (c *fakeCore) processedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.processed)
}

func (c *fakeCore) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.disconnects)
}

type recordingObserver struct {
	NopObserver

	mu             sync.Mutex
	decodeFailures int
	protocolErrors []*ProtocolError
	internalErrors []error
	sendFailures   []error
	drains         []int
}

func (o *recordingObserver) DecodeFailed(ConnID, error) {
	o.mu.Lock()
	o.decodeFailures++
	o.mu.Unlock()
}

func (o *recordingObserver) ProtocolError(_ ConnID, _ *protocol.Message, err *ProtocolError) {
	o.mu.Lock()
	o.protocolErrors = append(o.protocolErrors, err)
	o.mu.Unlock()
}

func (o *recordingObserver) InternalError(_ ConnID, err error) {
	o.mu.Lock()
	o.internalErrors = append(o.internalErrors, err)
	o.mu.Unlock()
}

func (o *recordingObserver) SendFailed(_ ConnID, err error) {
	o.mu.Lock()
	o.sendFailures = append(o.sendFailures, err)
	o.mu.Unlock()
}

func (o *recordingObserver) Drain(_ ConnID, buffered int) {
	o.mu.Lock()
	o.drains = append(o.drains, buffered)
	o.mu.Unlock()
}

const announceJSON = `{"action":"announce","info_hash":"ih","peer_id":"p1","numwant":5}`
