package protocol

// Kind is the variant tag of a decoded Message.
type Kind uint8

const (
	KindUnknown  Kind = 0x00 // No recognised action
	KindInvalid  Kind = 0x01 // Recognised action with a malformed shape
	KindAnnounce Kind = 0x02 // Announce request
	KindScrape   Kind = 0x03 // Scrape request
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindAnnounce:
		return "Announce"
	case KindScrape:
		return "Scrape"
	default:
		return "Unknown"
	}
}

// Actions understood by the tracker.
const (
	ActionAnnounce = "announce"
	ActionScrape   = "scrape"
)

// Event is the announce event field.
type Event string

const (
	EventNone      Event = ""
	EventStarted   Event = "started"
	EventCompleted Event = "completed"
	EventStopped   Event = "stopped"
)

// Message is one decoded inbound frame.
//
// Exactly one of Announce and Scrape is set for KindAnnounce and KindScrape.
// KindInvalid carries the reason in Problem; KindUnknown carries nothing but
// the raw Action (empty when the document had none).
type Message struct {
	Kind    Kind
	Action  string
	Problem string

	Announce *Announce
	Scrape   *Scrape

	// Document is the generic decoded form (map[string]any for objects).
	Document any

	// Raw is the original frame payload.
	Raw []byte
}

// Announce is an announce request. Optional numeric fields are negative when absent.
type Announce struct {
	InfoHash string
	PeerID   string
	Event    Event

	NumWant    int
	Uploaded   float64
	Downloaded float64
	Left       float64

	Offers []Offer

	// Answer is the SDP answer object; nil unless this announce answers an offer.
	Answer   any
	ToPeerID string
	OfferID  string
}

// IsAnswer reports whether the announce relays an answer to another peer.
func (a *Announce) IsAnswer() bool {
	return a.Answer != nil
}

// Completed reports whether the announcing peer has the whole content.
func (a *Announce) Completed() bool {
	return a.Event == EventCompleted || a.Left == 0
}

// Offer is one WebRTC offer to relay to another peer of the swarm.
type Offer struct {
	OfferID string
	Offer   any
}

// Scrape is a scrape request. A nil InfoHashes means every swarm.
type Scrape struct {
	InfoHashes []string
}

// AnnounceResponse is sent back to an announcing peer.
type AnnounceResponse struct {
	Action     string `json:"action"`
	Interval   int    `json:"interval"`
	InfoHash   string `json:"info_hash"`
	Complete   int    `json:"complete"`
	Incomplete int    `json:"incomplete"`
}

// OfferRelay forwards an offer to a peer selected from the swarm.
type OfferRelay struct {
	Action   string `json:"action"`
	InfoHash string `json:"info_hash"`
	PeerID   string `json:"peer_id"`
	OfferID  string `json:"offer_id"`
	Offer    any    `json:"offer"`
}

// AnswerRelay forwards an answer to the peer that made the offer.
type AnswerRelay struct {
	Action   string `json:"action"`
	InfoHash string `json:"info_hash"`
	PeerID   string `json:"peer_id"`
	OfferID  string `json:"offer_id"`
	Answer   any    `json:"answer"`
}

// ScrapeResponse answers a scrape request.
type ScrapeResponse struct {
	Action string                `json:"action"`
	Files  map[string]ScrapeFile `json:"files"`
}

// ScrapeFile holds the counters of one swarm.
type ScrapeFile struct {
	Complete   int `json:"complete"`
	Incomplete int `json:"incomplete"`
	Downloaded int `json:"downloaded"`
}
