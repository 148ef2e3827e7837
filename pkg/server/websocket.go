package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// HandleWebSocket upgrades r and serves the connection until it closes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.access.Allowed(r) {
		s.stats.rejectedOrigin.Add(1)
		s.logger.Debug("upgrade refused", "error", ErrOriginDenied, "origin", r.Header.Get("Origin"))
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	if limit := s.config.MaxConnections; limit > 0 && s.manager.Count() >= int64(limit) {
		s.stats.rejectedCapacity.Add(1)
		s.logger.Warn("upgrade refused", "error", ErrMaxConnectionsReached, "max", limit)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	if s.config.Compression {
		ws.EnableWriteCompression(true)
		if err := ws.SetCompressionLevel(s.config.CompressionLevel); err != nil {
			s.logger.Warn("invalid compression level", "level", s.config.CompressionLevel, "error", err)
		}
	}
	ws.SetReadLimit(int64(s.config.MaxPayloadLength))

	conn := newWSConn(ws, peerAddr(r, s.proxies), s.config)
	conn.onDrain = func(buffered int) { s.manager.OnDrain(conn, buffered) }
	conn.onWrite = func(n int) { s.stats.bytesSent.Add(uint64(n)) }

	s.readLoop(r, conn)
}

// readLoop delivers open, message and close events for conn, in order, on the
// calling goroutine.
func (s *Server) readLoop(r *http.Request, conn *wsConn) {
	ws := conn.ws
	idle := s.config.IdleTimeout

	s.manager.OnOpen(conn)
	defer func() {
		conn.Close()
		if err := s.manager.OnClose(conn); err != nil {
			s.stats.faults.Add(1)
			s.onFault(err)
		}
	}()
	go conn.writeLoop()

	refresh := func() {
		if idle > 0 {
			ws.SetReadDeadline(time.Now().Add(idle))
		}
	}
	refresh()
	ws.SetPongHandler(func(string) error {
		refresh()
		return nil
	})
	ws.SetPingHandler(func(data string) error {
		refresh()
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.config.WriteTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	ctx := r.Context()
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
				websocket.CloseAbnormalClosure) {
				s.logger.Debug("read error", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		refresh()
		s.stats.bytesReceived.Add(uint64(len(payload)))

		if err := s.manager.OnMessage(ctx, conn, payload); err != nil {
			s.stats.faults.Add(1)
			s.onFault(err)
		}
	}
}
