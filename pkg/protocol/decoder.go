package protocol

import (
	"encoding/json"
	"unicode/utf8"
)

// Decode parses one frame payload.
// It returns a *DecodeError when the payload is not valid UTF-8, is not a JSON
// document, or nests too deeply. Any well-formed document yields a Message.
func Decode(payload []byte) (*Message, error) {
	doc, err := DecodeDocument(payload)
	if err != nil {
		return nil, err
	}

	msg := classify(doc)
	msg.Document = doc
	msg.Raw = payload
	return msg, nil
}

// DecodeDocument parses a payload into its generic form without classifying it.
func DecodeDocument(payload []byte) (any, error) {
	if !utf8.Valid(payload) {
		return nil, &DecodeError{Reason: ReasonInvalidUTF8, Err: ErrInvalidUTF8}
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &DecodeError{Reason: ReasonMalformedDocument, Err: err}
	}

	if err := checkDepth(doc, newDepthContext(MaxDocumentDepth)); err != nil {
		return nil, &DecodeError{Reason: ReasonTooDeep, Err: err}
	}
	return doc, nil
}

func classify(doc any) *Message {
	obj, ok := doc.(map[string]any)
	if !ok {
		return &Message{Kind: KindUnknown}
	}

	action, _ := obj["action"].(string)
	switch action {
	case ActionAnnounce:
		return classifyAnnounce(obj)
	case ActionScrape:
		return classifyScrape(obj)
	default:
		return &Message{Kind: KindUnknown, Action: action}
	}
}

func invalid(action, problem string) *Message {
	return &Message{Kind: KindInvalid, Action: action, Problem: problem}
}

func classifyAnnounce(obj map[string]any) *Message {
	a := &Announce{
		NumWant:    -1,
		Uploaded:   -1,
		Downloaded: -1,
		Left:       -1,
	}

	var ok bool
	if a.InfoHash, ok = obj["info_hash"].(string); !ok {
		return invalid(ActionAnnounce, "announce: info_hash field is missing or wrong")
	}
	if a.PeerID, ok = obj["peer_id"].(string); !ok {
		return invalid(ActionAnnounce, "announce: peer_id field is missing or wrong")
	}

	if raw, present := obj["event"]; present {
		ev, _ := raw.(string)
		switch Event(ev) {
		case EventStarted, EventCompleted, EventStopped:
			a.Event = Event(ev)
		default:
			return invalid(ActionAnnounce, "announce: event field is wrong")
		}
	}

	if raw, present := obj["numwant"]; present {
		n, ok := raw.(float64)
		if !ok {
			return invalid(ActionAnnounce, "announce: numwant field is wrong")
		}
		a.NumWant = int(n)
	}
	for key, dst := range map[string]*float64{
		"uploaded":   &a.Uploaded,
		"downloaded": &a.Downloaded,
		"left":       &a.Left,
	} {
		if n, ok := obj[key].(float64); ok {
			*dst = n
		}
	}

	if raw, present := obj["answer"]; present && raw != nil {
		a.Answer = raw
		if a.ToPeerID, ok = obj["to_peer_id"].(string); !ok {
			return invalid(ActionAnnounce, "answer: to_peer_id field is missing or wrong")
		}
		if a.OfferID, ok = obj["offer_id"].(string); !ok {
			return invalid(ActionAnnounce, "answer: offer_id field is missing or wrong")
		}
	}

	if raw, present := obj["offers"]; present && raw != nil {
		items, ok := raw.([]any)
		if !ok {
			return invalid(ActionAnnounce, "announce: offers field is not an array")
		}
		a.Offers = make([]Offer, 0, len(items))
		for _, item := range items {
			o, ok := item.(map[string]any)
			if !ok {
				return invalid(ActionAnnounce, "announce: offer item is wrong")
			}
			id, ok := o["offer_id"].(string)
			if !ok || o["offer"] == nil {
				return invalid(ActionAnnounce, "announce: offer item is wrong")
			}
			a.Offers = append(a.Offers, Offer{OfferID: id, Offer: o["offer"]})
		}
	}

	return &Message{Kind: KindAnnounce, Action: ActionAnnounce, Announce: a}
}

func classifyScrape(obj map[string]any) *Message {
	s := &Scrape{}

	switch v := obj["info_hash"].(type) {
	case nil:
	case string:
		s.InfoHashes = []string{v}
	case []any:
		s.InfoHashes = make([]string, 0, len(v))
		for _, item := range v {
			h, ok := item.(string)
			if !ok {
				return invalid(ActionScrape, "scrape: info_hash field is wrong")
			}
			s.InfoHashes = append(s.InfoHashes, h)
		}
	default:
		return invalid(ActionScrape, "scrape: info_hash field is wrong")
	}

	return &Message{Kind: KindScrape, Action: ActionScrape, Scrape: s}
}
