package tracker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/darkkid0/wt-tracker/pkg/gateway"
)

type testConn struct {
	id gateway.ConnID

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *testConn) ID() gateway.ConnID { return c.id }

func (c *testConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return gateway.ErrConnectionClosed
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *testConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *testConn) BufferedAmount() int { return 0 }

func (c *testConn) RemoteAddr() string { return "127.0.0.1:6881" }

func (c *testConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// frames decodes and drains every frame sent so far.
func (c *testConn) frames(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	sent := c.sent
	c.sent = nil
	c.mu.Unlock()

	out := make([]map[string]any, 0, len(sent))
	for _, raw := range sent {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("frame %s is not JSON: %v", raw, err)
		}
		out = append(out, m)
	}
	return out
}

type harness struct {
	t       *testing.T
	tracker *FastTracker
	manager *gateway.Manager
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := New(settings, logger)
	tr.intn = func(int) int { return 0 }
	return &harness{
		t:       t,
		tracker: tr,
		manager: gateway.NewManager(tr, &gateway.ManagerConfig{Logger: logger}),
	}
}

func (h *harness) open() *testConn {
	c := &testConn{id: gateway.NewConnID()}
	h.manager.OnOpen(c)
	return c
}

func (h *harness) send(c *testConn, v map[string]any) {
	h.t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		h.t.Fatal(err)
	}
	if err := h.manager.OnMessage(context.Background(), c, payload); err != nil {
		h.t.Fatalf("OnMessage(%s) error: %v", payload, err)
	}
}

func announce(infoHash, peerID string, extra map[string]any) map[string]any {
	m := map[string]any{
		"action":    "announce",
		"info_hash": infoHash,
		"peer_id":   peerID,
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func offers(ids ...string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{
			"offer_id": id,
			"offer":    map[string]any{"type": "offer", "sdp": "v=0 " + id},
		})
	}
	return out
}

func TestAnnounce_JoinsSwarmAndReplies(t *testing.T) {
	h := newHarness(t, Settings{})
	c := h.open()

	h.send(c, announce("ih", "p1", nil))

	frames := c.frames(t)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	got := frames[0]
	if got["action"] != "announce" || got["info_hash"] != "ih" {
		t.Fatalf("reply = %v", got)
	}
	if got["interval"] != float64(120) || got["complete"] != float64(0) || got["incomplete"] != float64(1) {
		t.Fatalf("reply counters = %v", got)
	}
	if s := h.tracker.Stats(); s.Swarms != 1 || s.Peers != 1 {
		t.Fatalf("Stats() = %+v", s)
	}
}

func TestAnnounce_CompletedCountsAsSeeder(t *testing.T) {
	h := newHarness(t, Settings{})
	seeder := h.open()
	leecher := h.open()

	h.send(seeder, announce("ih", "seed", map[string]any{"left": 0}))
	seeder.frames(t)
	h.send(leecher, announce("ih", "leech", map[string]any{"left": 100}))

	got := leecher.frames(t)[0]
	if got["complete"] != float64(1) || got["incomplete"] != float64(1) {
		t.Fatalf("reply = %v, want 1 complete 1 incomplete", got)
	}
}

func TestAnnounce_RelaysOffersToOtherPeers(t *testing.T) {
	h := newHarness(t, Settings{})
	others := []*testConn{h.open(), h.open(), h.open()}
	for i, c := range others {
		h.send(c, announce("ih", string(rune('a'+i)), nil))
		c.frames(t)
	}

	offerer := h.open()
	h.send(offerer, announce("ih", "offerer", map[string]any{
		"numwant": 2,
		"offers":  offers("o1", "o2", "o3"),
	}))

	if n := len(offerer.frames(t)); n != 1 {
		t.Fatalf("offerer got %d frames, want only the announce reply", n)
	}

	relayed := map[string]bool{}
	for _, c := range others {
		frames := c.frames(t)
		if len(frames) > 1 {
			t.Fatalf("a peer received %d offers, want at most 1", len(frames))
		}
		for _, f := range frames {
			if f["peer_id"] != "offerer" || f["info_hash"] != "ih" || f["action"] != "announce" {
				t.Fatalf("relay = %v", f)
			}
			if _, ok := f["offer"].(map[string]any); !ok {
				t.Fatalf("relay offer = %v", f["offer"])
			}
			relayed[f["offer_id"].(string)] = true
		}
	}
	if len(relayed) != 2 || !relayed["o1"] || !relayed["o2"] {
		t.Fatalf("relayed offers = %v, want o1 and o2", relayed)
	}
}

func TestAnnounce_OfferCaps(t *testing.T) {
	tests := []struct {
		name      string
		settings  Settings
		peers     int
		numwant   any
		offers    int
		wantRelay int
	}{
		{"numwant caps", Settings{}, 5, 1, 4, 1},
		{"offers cap", Settings{}, 5, 10, 2, 2},
		{"max offers caps", Settings{MaxOffers: 3}, 5, 10, 5, 3},
		{"swarm size caps", Settings{}, 2, 10, 5, 2},
		{"numwant absent", Settings{}, 5, nil, 3, 3},
		{"numwant zero", Settings{}, 5, 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.settings)
			var conns []*testConn
			for i := 0; i < tt.peers; i++ {
				c := h.open()
				h.send(c, announce("ih", string(rune('a'+i)), nil))
				c.frames(t)
				conns = append(conns, c)
			}

			ids := make([]string, tt.offers)
			for i := range ids {
				ids[i] = string(rune('A' + i))
			}
			extra := map[string]any{"offers": offers(ids...)}
			if tt.numwant != nil {
				extra["numwant"] = tt.numwant
			}
			h.send(h.open(), announce("ih", "offerer", extra))

			relayed := 0
			for _, c := range conns {
				relayed += len(c.frames(t))
			}
			if relayed != tt.wantRelay {
				t.Fatalf("relayed %d offers, want %d", relayed, tt.wantRelay)
			}
		})
	}
}

func TestAnnounce_AnswerIsForwarded(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.open()
	b := h.open()
	h.send(a, announce("ih", "pa", nil))
	a.frames(t)

	h.send(b, announce("ih", "pb", map[string]any{
		"to_peer_id": "pa",
		"offer_id":   "o1",
		"answer":     map[string]any{"type": "answer", "sdp": "v=0"},
	}))

	if n := len(b.frames(t)); n != 0 {
		t.Fatalf("answering peer got %d frames, want 0", n)
	}
	frames := a.frames(t)
	if len(frames) != 1 {
		t.Fatalf("offering peer got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f["peer_id"] != "pb" || f["offer_id"] != "o1" || f["info_hash"] != "ih" {
		t.Fatalf("answer relay = %v", f)
	}
	if _, ok := f["answer"].(map[string]any); !ok {
		t.Fatalf("answer = %v", f["answer"])
	}
}

func TestAnnounce_ProtocolErrorsCloseTheConnection(t *testing.T) {
	tests := []struct {
		name string
		msg  map[string]any
	}{
		{"answer to unknown swarm", announce("nope", "pb", map[string]any{
			"to_peer_id": "pa", "offer_id": "o", "answer": map[string]any{},
		})},
		{"answer to unknown peer", announce("ih", "pb", map[string]any{
			"to_peer_id": "ghost", "offer_id": "o", "answer": map[string]any{},
		})},
		{"unknown action", map[string]any{"action": "teleport"}},
		{"missing action", map[string]any{"info_hash": "ih"}},
		{"invalid announce", map[string]any{"action": "announce", "info_hash": "ih"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Settings{})
			a := h.open()
			h.send(a, announce("ih", "pa", nil))

			c := h.open()
			h.send(c, tt.msg)

			if !c.isClosed() {
				t.Fatal("connection should be closed after a protocol error")
			}
			if st := h.manager.State(c.ID()); st != gateway.StateClosed {
				t.Fatalf("State = %v, want closed", st)
			}
			if a.isClosed() {
				t.Fatal("other peers must not be affected")
			}
		})
	}
}

func TestAnnounce_PeerIDChangeIsRejected(t *testing.T) {
	h := newHarness(t, Settings{})
	c := h.open()
	h.send(c, announce("ih", "p1", nil))
	h.send(c, announce("ih", "p2", nil))

	if !c.isClosed() {
		t.Fatal("switching peer_id on a connection should close it")
	}
	if s := h.tracker.Stats(); s.Swarms != 0 || s.Peers != 0 {
		t.Fatalf("Stats() = %+v, want empty after close", s)
	}
}

func TestAnnounce_StoppedLeavesSwarm(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.open()
	b := h.open()
	h.send(a, announce("ih", "pa", nil))
	h.send(b, announce("ih", "pb", nil))
	a.frames(t)

	h.send(a, announce("ih", "pa", map[string]any{"event": "stopped"}))
	if n := len(a.frames(t)); n != 0 {
		t.Fatalf("stopped announce got %d replies, want 0", n)
	}
	if s := h.tracker.Stats(); s.Swarms != 1 {
		t.Fatalf("Stats() = %+v, want one swarm", s)
	}

	h.send(b, announce("ih", "pb", map[string]any{"event": "stopped"}))
	if s := h.tracker.Stats(); s.Swarms != 0 {
		t.Fatalf("Stats() = %+v, want the empty swarm dropped", s)
	}

	h.send(a, announce("other", "pa", map[string]any{"event": "stopped"}))
	if a.isClosed() {
		t.Fatal("stopping an unknown swarm should be ignored")
	}
}

func TestScrape(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.open()
	b := h.open()
	h.send(a, announce("ih1", "pa", nil))
	h.send(a, announce("ih1", "pa", map[string]any{"event": "completed"}))
	h.send(a, announce("ih1", "pa", map[string]any{"event": "completed"}))
	h.send(b, announce("ih2", "pb", map[string]any{"left": 5}))

	tests := []struct {
		name string
		msg  map[string]any
		want map[string]protocolFile
	}{
		{
			"all swarms",
			map[string]any{"action": "scrape"},
			map[string]protocolFile{"ih1": {1, 0, 1}, "ih2": {0, 1, 0}},
		},
		{
			"one hash",
			map[string]any{"action": "scrape", "info_hash": "ih2"},
			map[string]protocolFile{"ih2": {0, 1, 0}},
		},
		{
			"list with unknown hash",
			map[string]any{"action": "scrape", "info_hash": []any{"ih1", "nope"}},
			map[string]protocolFile{"ih1": {1, 0, 1}, "nope": {0, 0, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := h.open()
			h.send(c, tt.msg)

			frames := c.frames(t)
			if len(frames) != 1 || frames[0]["action"] != "scrape" {
				t.Fatalf("frames = %v", frames)
			}
			files, _ := frames[0]["files"].(map[string]any)
			if len(files) != len(tt.want) {
				t.Fatalf("files = %v, want %v", files, tt.want)
			}
			for hash, want := range tt.want {
				f, _ := files[hash].(map[string]any)
				got := protocolFile{
					complete:   int(f["complete"].(float64)),
					incomplete: int(f["incomplete"].(float64)),
					downloaded: int(f["downloaded"].(float64)),
				}
				if got != want {
					t.Errorf("files[%s] = %+v, want %+v", hash, got, want)
				}
			}
		})
	}
}

type protocolFile struct {
	complete, incomplete, downloaded int
}

func TestDisconnectPeer_RemovesFromSwarms(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.open()
	h.send(a, announce("ih1", "pa", nil))
	h.send(a, announce("ih2", "pa", nil))

	h.manager.OnClose(a)

	if s := h.tracker.Stats(); s.Swarms != 0 || s.Peers != 0 {
		t.Fatalf("Stats() = %+v, want empty", s)
	}
}

func TestDisconnectPeer_WithoutPeerID(t *testing.T) {
	h := newHarness(t, Settings{})
	a := h.open()
	h.send(a, map[string]any{"action": "scrape"})
	h.manager.OnClose(a)

	if s := h.tracker.Stats(); s.Peers != 0 {
		t.Fatalf("Stats() = %+v", s)
	}
}

func TestPeerIDMovesToNewConnection(t *testing.T) {
	h := newHarness(t, Settings{})
	old := h.open()
	h.send(old, announce("ih1", "p", nil))
	h.send(old, announce("ih2", "p", nil))

	fresh := h.open()
	h.send(fresh, announce("ih1", "p", nil))

	if s := h.tracker.Stats(); s.Swarms != 1 || s.Peers != 1 {
		t.Fatalf("Stats() = %+v, want the old peer's swarms released", s)
	}

	old.frames(t)
	h.send(old, announce("ih1", "p", nil))
	if !old.isClosed() {
		t.Fatal("a connection whose peer id was taken over must be closed when it announces again")
	}
	if n := len(old.frames(t)); n != 0 {
		t.Fatalf("old connection got %d frames, want none", n)
	}
	if s := h.tracker.Stats(); s.Swarms != 1 || s.Peers != 1 {
		t.Fatalf("Stats() = %+v, the new owner must stay in its swarm", s)
	}

	h.manager.OnClose(old)
	if s := h.tracker.Stats(); s.Swarms != 1 || s.Peers != 1 {
		t.Fatalf("Stats() = %+v, closing the old connection must keep the new peer", s)
	}

	other := h.open()
	h.send(other, announce("ih1", "q", map[string]any{"offers": offers("o1")}))
	if n := len(fresh.frames(t)); n != 2 {
		t.Fatalf("new connection got %d frames, want reply and relayed offer", n)
	}
}

func TestNew_Defaults(t *testing.T) {
	tr := New(Settings{}, nil)
	if got := tr.Settings(); got != DefaultSettings() {
		t.Fatalf("Settings() = %+v, want %+v", got, DefaultSettings())
	}

	tr = New(Settings{MaxOffers: 5, AnnounceInterval: time.Minute}, nil)
	if got := tr.Settings(); got.MaxOffers != 5 || got.AnnounceInterval != time.Minute {
		t.Fatalf("Settings() = %+v", got)
	}
}

func TestCollectors(t *testing.T) {
	h := newHarness(t, Settings{})
	h.send(h.open(), announce("ih1", "pa", nil))
	h.send(h.open(), announce("ih2", "pb", nil))
	h.send(h.open(), announce("ih2", "pc", nil))

	collectors := h.tracker.Collectors("wt_tracker")
	if len(collectors) != 2 {
		t.Fatalf("got %d collectors", len(collectors))
	}
	want := []float64{2, 3}
	for i, c := range collectors {
		var m dto.Metric
		if err := c.(prometheus.Metric).Write(&m); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
		if got := m.GetGauge().GetValue(); got != want[i] {
			t.Errorf("collector %d = %v, want %v", i, got, want[i])
		}
	}

	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			t.Fatalf("Register() error: %v", err)
		}
	}
}
