package tracker

// swarm is the set of peers sharing one info hash.
//
// peers keeps insertion order so random selection is a slice index; index
// maps a peer id to its slot for O(1) removal.
type swarm struct {
	infoHash   string
	peers      []*peer
	index      map[string]int
	complete   int
	downloaded int
}

func newSwarm(infoHash string) *swarm {
	return &swarm{
		infoHash: infoHash,
		index:    make(map[string]int),
	}
}

func (s *swarm) len() int {
	return len(s.peers)
}

func (s *swarm) has(p *peer) bool {
	i, ok := s.index[p.id]
	return ok && s.peers[i] == p
}

func (s *swarm) get(id string) (*peer, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.peers[i], true
}

func (s *swarm) add(p *peer, completed bool) {
	s.index[p.id] = len(s.peers)
	s.peers = append(s.peers, p)
	p.swarms[s.infoHash] = completed
	if completed {
		s.complete++
	}
}

// remove swaps the last peer into p's slot.
func (s *swarm) remove(p *peer) {
	i, ok := s.index[p.id]
	if !ok || s.peers[i] != p {
		return
	}
	last := len(s.peers) - 1
	if i != last {
		s.peers[i] = s.peers[last]
		s.index[s.peers[i].id] = i
	}
	s.peers[last] = nil
	s.peers = s.peers[:last]
	delete(s.index, p.id)

	if p.swarms[s.infoHash] {
		s.complete--
	}
	delete(p.swarms, s.infoHash)
}

// markComplete records that p has the whole content.
// It reports whether p was incomplete before.
func (s *swarm) markComplete(p *peer) bool {
	if p.swarms[s.infoHash] {
		return false
	}
	p.swarms[s.infoHash] = true
	s.complete++
	return true
}

func (s *swarm) incomplete() int {
	return len(s.peers) - s.complete
}
