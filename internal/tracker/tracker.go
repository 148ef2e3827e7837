package tracker

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/darkkid0/wt-tracker/pkg/gateway"
	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// Settings tunes the tracker.
type Settings struct {
	// MaxOffers caps how many offers one announce relays.
	// Default: 20.
	MaxOffers int

	// AnnounceInterval is the re-announce interval sent to peers.
	// Default: 120 seconds.
	AnnounceInterval time.Duration
}

// DefaultSettings returns the tracker defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxOffers:        20,
		AnnounceInterval: 120 * time.Second,
	}
}

// Stats is a point-in-time view of the tracker.
type Stats struct {
	Swarms int `json:"torrentsCount"`
	Peers  int `json:"peersCount"`
}

// peer is a tracker-side peer bound to one connection.
type peer struct {
	id  string
	ctx *gateway.PeerContext

	// swarms maps joined info hashes to the peer's completed flag.
	swarms map[string]bool
}

// FastTracker is an in-memory WebTorrent tracker implementing gateway.Core.
// All state is guarded by a single mutex; sends only queue frames and never
// block while it is held.
type FastTracker struct {
	settings Settings
	logger   *slog.Logger
	intn     func(n int) int

	mu     sync.Mutex
	swarms map[string]*swarm
	peers  map[string]*peer
}

var _ gateway.Core = (*FastTracker)(nil)

// New creates a FastTracker. Zero settings take their defaults.
// A nil logger uses slog.Default().
func New(settings Settings, logger *slog.Logger) *FastTracker {
	defaults := DefaultSettings()
	if settings.MaxOffers <= 0 {
		settings.MaxOffers = defaults.MaxOffers
	}
	if settings.AnnounceInterval <= 0 {
		settings.AnnounceInterval = defaults.AnnounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FastTracker{
		settings: settings,
		logger:   logger.With("component", "tracker"),
		intn:     rand.Intn,
		swarms:   make(map[string]*swarm),
		peers:    make(map[string]*peer),
	}
}

// Settings returns the effective settings.
func (t *FastTracker) Settings() Settings {
	return t.settings
}

// ProcessMessage handles one decoded message from peer.
func (t *FastTracker) ProcessMessage(ctx context.Context, msg *protocol.Message, pc *gateway.PeerContext) error {
	switch msg.Kind {
	case protocol.KindAnnounce:
		return t.announce(msg.Announce, pc)
	case protocol.KindScrape:
		return t.scrape(msg.Scrape, pc)
	case protocol.KindInvalid:
		return gateway.NewProtocolError("%s", msg.Problem)
	default:
		if msg.Action == "" {
			return gateway.NewProtocolError("message has no action")
		}
		return gateway.NewProtocolError("unknown action %q", msg.Action)
	}
}

// DisconnectPeer removes the peer bound to pc from every swarm.
// A peer id already taken over by a newer connection is left alone.
func (t *FastTracker) DisconnectPeer(pc *gateway.PeerContext) {
	id, ok := pc.PeerID()
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.peers[id]
	if p == nil || p.ctx != pc {
		return
	}
	t.removePeerLocked(p)
}

// Stats returns swarm and peer counts.
func (t *FastTracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Swarms: len(t.swarms), Peers: len(t.peers)}
}

// Collectors returns gauges reporting the swarm and peer counts.
func (t *FastTracker) Collectors(namespace string) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "swarms",
			Help:      "Number of swarms with at least one peer.",
		}, func() float64 { return float64(t.Stats().Swarms) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers",
			Help:      "Number of peers known to the tracker.",
		}, func() float64 { return float64(t.Stats().Peers) }),
	}
}

func (t *FastTracker) announce(a *protocol.Announce, pc *gateway.PeerContext) error {
	_, bound := pc.PeerID()
	if err := pc.SetPeerID(a.PeerID); err != nil {
		return &gateway.ProtocolError{Message: "announce: peer_id does not match the connection", Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.bindPeerLocked(a.PeerID, pc, bound)
	if err != nil {
		return err
	}
	s := t.swarms[a.InfoHash]

	if a.IsAnswer() {
		return t.answerLocked(a, p, s)
	}

	if a.Event == protocol.EventStopped {
		if s != nil && s.has(p) {
			t.leaveLocked(s, p)
		}
		return nil
	}

	if s == nil {
		s = newSwarm(a.InfoHash)
		t.swarms[a.InfoHash] = s
		t.logger.Debug("swarm created", "info_hash", a.InfoHash)
	}
	if !s.has(p) {
		s.add(p, false)
	}
	if a.Completed() && s.markComplete(p) && a.Event == protocol.EventCompleted {
		s.downloaded++
	}

	err = pc.SendMessage(protocol.AnnounceResponse{
		Action:     protocol.ActionAnnounce,
		Interval:   int(t.settings.AnnounceInterval / time.Second),
		InfoHash:   a.InfoHash,
		Complete:   s.complete,
		Incomplete: s.incomplete(),
	})
	if err != nil {
		return err
	}

	return t.relayOffersLocked(a, p, s)
}

// bindPeerLocked returns the peer for id on pc. On the connection's first
// announce (bound false) a peer with the same id on another connection is
// removed from its swarms. A connection that already carried id but no longer
// owns it was taken over and gets a protocol error.
func (t *FastTracker) bindPeerLocked(id string, pc *gateway.PeerContext, bound bool) (*peer, error) {
	p := t.peers[id]
	if p != nil && p.ctx == pc {
		return p, nil
	}
	if bound {
		return nil, gateway.NewProtocolError("announce: peer_id was taken over by another connection")
	}
	if p != nil {
		t.logger.Debug("peer id moved to a new connection",
			"peer_id", id,
			"old_conn_id", p.ctx.ConnID(),
			"conn_id", pc.ConnID())
		t.removePeerLocked(p)
	}

	p = &peer{id: id, ctx: pc, swarms: make(map[string]bool)}
	t.peers[id] = p
	return p, nil
}

// relayOffersLocked sends up to min(numwant, offers, MaxOffers) offers to
// distinct random peers of s other than p.
func (t *FastTracker) relayOffersLocked(a *protocol.Announce, p *peer, s *swarm) error {
	n := len(a.Offers)
	if a.NumWant >= 0 && a.NumWant < n {
		n = a.NumWant
	}
	if n > t.settings.MaxOffers {
		n = t.settings.MaxOffers
	}
	if others := s.len() - 1; n > others {
		n = others
	}
	if n <= 0 {
		return nil
	}

	candidates := make([]*peer, 0, s.len()-1)
	for _, q := range s.peers {
		if q != p {
			candidates = append(candidates, q)
		}
	}

	for i := 0; i < n; i++ {
		j := i + t.intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]

		offer := a.Offers[i]
		err := candidates[i].ctx.SendMessage(protocol.OfferRelay{
			Action:   protocol.ActionAnnounce,
			InfoHash: a.InfoHash,
			PeerID:   p.id,
			OfferID:  offer.OfferID,
			Offer:    offer.Offer,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *FastTracker) answerLocked(a *protocol.Announce, p *peer, s *swarm) error {
	if s == nil {
		return gateway.NewProtocolError("answer: info_hash is not tracked")
	}
	to, ok := s.get(a.ToPeerID)
	if !ok {
		return gateway.NewProtocolError("answer: to_peer_id is not in the swarm")
	}

	return to.ctx.SendMessage(protocol.AnswerRelay{
		Action:   protocol.ActionAnnounce,
		InfoHash: a.InfoHash,
		PeerID:   p.id,
		OfferID:  a.OfferID,
		Answer:   a.Answer,
	})
}

func (t *FastTracker) scrape(sc *protocol.Scrape, pc *gateway.PeerContext) error {
	t.mu.Lock()
	files := make(map[string]protocol.ScrapeFile)
	if sc.InfoHashes == nil {
		for hash, s := range t.swarms {
			files[hash] = scrapeFile(s)
		}
	} else {
		for _, hash := range sc.InfoHashes {
			files[hash] = scrapeFile(t.swarms[hash])
		}
	}
	t.mu.Unlock()

	return pc.SendMessage(protocol.ScrapeResponse{
		Action: protocol.ActionScrape,
		Files:  files,
	})
}

func scrapeFile(s *swarm) protocol.ScrapeFile {
	if s == nil {
		return protocol.ScrapeFile{}
	}
	return protocol.ScrapeFile{
		Complete:   s.complete,
		Incomplete: s.incomplete(),
		Downloaded: s.downloaded,
	}
}

func (t *FastTracker) leaveLocked(s *swarm, p *peer) {
	s.remove(p)
	if s.len() == 0 {
		delete(t.swarms, s.infoHash)
		t.logger.Debug("swarm removed", "info_hash", s.infoHash)
	}
}

func (t *FastTracker) removePeerLocked(p *peer) {
	for hash := range p.swarms {
		if s := t.swarms[hash]; s != nil {
			t.leaveLocked(s, p)
		}
	}
	if t.peers[p.id] == p {
		delete(t.peers, p.id)
	}
}
