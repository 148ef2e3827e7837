package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/darkkid0/wt-tracker/pkg/gateway"
)

// wsConn adapts a gorilla connection to gateway.Conn.
// Frames queued with Send are written by writeLoop, the only writer of data
// frames; control frames go through WriteControl, which gorilla allows
// concurrently.
type wsConn struct {
	id     gateway.ConnID
	ws     *websocket.Conn
	remote string

	out             chan []byte
	buffered        atomic.Int64
	maxBackpressure int64

	writeTimeout time.Duration
	pingInterval time.Duration
	onDrain      func(buffered int)
	onWrite      func(n int)

	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(ws *websocket.Conn, remote string, cfg *ServerConfig) *wsConn {
	return &wsConn{
		id:              gateway.NewConnID(),
		ws:              ws,
		remote:          remote,
		out:             make(chan []byte, cfg.SendQueueSize),
		maxBackpressure: int64(cfg.MaxBackpressure),
		writeTimeout:    cfg.WriteTimeout,
		pingInterval:    cfg.IdleTimeout / 2,
		done:            make(chan struct{}),
	}
}

func (c *wsConn) ID() gateway.ConnID {
	return c.id
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}

func (c *wsConn) BufferedAmount() int {
	return int(c.buffered.Load())
}

// Send queues payload without blocking.
func (c *wsConn) Send(payload []byte) error {
	select {
	case <-c.done:
		return gateway.ErrConnectionClosed
	default:
	}

	n := int64(len(payload))
	if c.maxBackpressure > 0 && c.buffered.Load()+n > c.maxBackpressure {
		return gateway.ErrSendQueueFull
	}

	c.buffered.Add(n)
	select {
	case c.out <- payload:
		return nil
	default:
		c.buffered.Add(-n)
		return gateway.ErrSendQueueFull
	}
}

// Close tears the socket down without a close frame. Queued frames are dropped.
func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// writeLoop writes queued frames and keeps the connection alive with pings.
// It reports a drain once a backlog has been flushed.
func (c *wsConn) writeLoop() {
	var ticker *time.Ticker
	var tick <-chan time.Time
	if c.pingInterval > 0 {
		ticker = time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	backlogged := false
	for {
		select {
		case payload := <-c.out:
			if len(c.out) > 0 {
				backlogged = true
			}
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			err := c.ws.WriteMessage(websocket.TextMessage, payload)
			left := c.buffered.Add(-int64(len(payload)))
			if err != nil {
				c.Close()
				return
			}
			if c.onWrite != nil {
				c.onWrite(len(payload))
			}
			if backlogged && len(c.out) == 0 {
				backlogged = false
				if c.onDrain != nil {
					c.onDrain(int(left))
				}
			}

		case <-tick:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}
