package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestDecode_RejectsInvalidUTF8(t *testing.T) {
	payload := []byte{'{', '"', 'a', '"', ':', '"', 0xff, 0xfe, '"', '}'}

	msg, err := Decode(payload)
	if msg != nil {
		t.Fatalf("Decode() msg=%+v, want nil", msg)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Decode() error=%v, want *DecodeError", err)
	}
	if de.Reason != ReasonInvalidUTF8 {
		t.Fatalf("reason=%s, want InvalidUTF8", de.Reason)
	}
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatal("expected errors.Is(err, ErrInvalidUTF8)")
	}
}

func TestDecode_RejectsMalformedDocuments(t *testing.T) {
	tests := []string{
		``,
		`{`,
		`{"action":"announce"`,
		`{"action":announce}`,
		`[1,2,`,
		`{"a":1}{"b":2}`,
		`nul`,
	}

	for _, in := range tests {
		msg, err := Decode([]byte(in))
		if err == nil {
			t.Errorf("Decode(%q) error=nil, msg=%+v", in, msg)
			continue
		}
		var de *DecodeError
		if !errors.As(err, &de) || de.Reason != ReasonMalformedDocument {
			t.Errorf("Decode(%q) error=%v, want MalformedDocument", in, err)
		}
		if msg != nil {
			t.Errorf("Decode(%q) returned a partial message", in)
		}
	}
}

func TestDecode_RejectsDeepDocuments(t *testing.T) {
	deep := strings.Repeat("[", MaxDocumentDepth+1) + strings.Repeat("]", MaxDocumentDepth+1)
	_, err := Decode([]byte(deep))
	if !errors.Is(err, ErrMaxDepthExceeded) {
		t.Fatalf("Decode(deep) error=%v, want ErrMaxDepthExceeded", err)
	}

	ok := strings.Repeat("[", MaxDocumentDepth) + strings.Repeat("]", MaxDocumentDepth)
	if _, err := Decode([]byte(ok)); err != nil {
		t.Fatalf("Decode(at limit) error=%v", err)
	}
}

func TestDecode_Announce(t *testing.T) {
	in := `{"action":"announce","info_hash":"ih","peer_id":"p1","numwant":3,"left":0,` +
		`"event":"started","offers":[{"offer_id":"o1","offer":{"type":"offer","sdp":"v=0"}}]}`

	msg, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if msg.Kind != KindAnnounce || msg.Announce == nil {
		t.Fatalf("kind=%s announce=%v, want Announce", msg.Kind, msg.Announce)
	}
	a := msg.Announce
	if a.InfoHash != "ih" || a.PeerID != "p1" || a.NumWant != 3 || a.Event != EventStarted {
		t.Fatalf("unexpected announce: %+v", a)
	}
	if !a.Completed() {
		t.Fatal("left=0 should count as completed")
	}
	if a.IsAnswer() {
		t.Fatal("IsAnswer() = true for an offer announce")
	}
	if len(a.Offers) != 1 || a.Offers[0].OfferID != "o1" {
		t.Fatalf("offers=%+v", a.Offers)
	}
	if string(msg.Raw) != in {
		t.Fatal("Raw does not hold the original payload")
	}
	if doc, ok := msg.Document.(map[string]any); !ok || doc["peer_id"] != "p1" {
		t.Fatalf("Document=%v", msg.Document)
	}
}

func TestDecode_AnnounceDefaults(t *testing.T) {
	msg, err := Decode([]byte(`{"action":"announce","info_hash":"ih","peer_id":"p1"}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	a := msg.Announce
	if a.NumWant != -1 || a.Left != -1 || a.Event != EventNone {
		t.Fatalf("unexpected defaults: %+v", a)
	}
	if a.Completed() {
		t.Fatal("Completed() = true without left or event")
	}
}

func TestDecode_Answer(t *testing.T) {
	in := `{"action":"announce","info_hash":"ih","peer_id":"p2","to_peer_id":"p1",` +
		`"offer_id":"o1","answer":{"type":"answer","sdp":"v=0"}}`

	msg, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !msg.Announce.IsAnswer() || msg.Announce.ToPeerID != "p1" || msg.Announce.OfferID != "o1" {
		t.Fatalf("unexpected answer: %+v", msg.Announce)
	}
}

func TestDecode_InvalidShapes(t *testing.T) {
	tests := []struct {
		in      string
		problem string
	}{
		{`{"action":"announce","peer_id":"p"}`, "announce: info_hash field is missing or wrong"},
		{`{"action":"announce","info_hash":1,"peer_id":"p"}`, "announce: info_hash field is missing or wrong"},
		{`{"action":"announce","info_hash":"ih"}`, "announce: peer_id field is missing or wrong"},
		{`{"action":"announce","info_hash":"ih","peer_id":"p","event":"paused"}`, "announce: event field is wrong"},
		{`{"action":"announce","info_hash":"ih","peer_id":"p","numwant":"5"}`, "announce: numwant field is wrong"},
		{`{"action":"announce","info_hash":"ih","peer_id":"p","offers":{}}`, "announce: offers field is not an array"},
		{`{"action":"announce","info_hash":"ih","peer_id":"p","offers":[{"offer":{}}]}`, "announce: offer item is wrong"},
		{`{"action":"announce","info_hash":"ih","peer_id":"p","answer":{},"offer_id":"o"}`, "answer: to_peer_id field is missing or wrong"},
		{`{"action":"announce","info_hash":"ih","peer_id":"p","answer":{},"to_peer_id":"x"}`, "answer: offer_id field is missing or wrong"},
		{`{"action":"scrape","info_hash":5}`, "scrape: info_hash field is wrong"},
		{`{"action":"scrape","info_hash":["a",5]}`, "scrape: info_hash field is wrong"},
	}

	for _, tt := range tests {
		msg, err := Decode([]byte(tt.in))
		if err != nil {
			t.Errorf("Decode(%s) error=%v, want invalid message", tt.in, err)
			continue
		}
		if msg.Kind != KindInvalid {
			t.Errorf("Decode(%s) kind=%s, want Invalid", tt.in, msg.Kind)
			continue
		}
		if msg.Problem != tt.problem {
			t.Errorf("Decode(%s) problem=%q, want %q", tt.in, msg.Problem, tt.problem)
		}
	}
}

func TestDecode_UnknownShapes(t *testing.T) {
	tests := []struct {
		in     string
		action string
	}{
		{`42`, ""},
		{`"announce"`, ""},
		{`[{"action":"announce"}]`, ""},
		{`{}`, ""},
		{`{"action":7}`, ""},
		{`{"action":"teleport"}`, "teleport"},
	}

	for _, tt := range tests {
		msg, err := Decode([]byte(tt.in))
		if err != nil {
			t.Errorf("Decode(%s) error=%v", tt.in, err)
			continue
		}
		if msg.Kind != KindUnknown || msg.Action != tt.action {
			t.Errorf("Decode(%s) = kind %s action %q, want Unknown %q", tt.in, msg.Kind, msg.Action, tt.action)
		}
	}
}

func TestDecode_Scrape(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`{"action":"scrape"}`, nil},
		{`{"action":"scrape","info_hash":"a"}`, []string{"a"}},
		{`{"action":"scrape","info_hash":["a","b"]}`, []string{"a", "b"}},
	}

	for _, tt := range tests {
		msg, err := Decode([]byte(tt.in))
		if err != nil {
			t.Fatalf("Decode(%s) error: %v", tt.in, err)
		}
		if msg.Kind != KindScrape {
			t.Fatalf("Decode(%s) kind=%s", tt.in, msg.Kind)
		}
		got := msg.Scrape.InfoHashes
		if len(got) != len(tt.want) || (tt.want == nil) != (got == nil) {
			t.Fatalf("Decode(%s) hashes=%v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("Decode(%s) hashes=%v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindUnknown:  "Unknown",
		KindInvalid:  "Invalid",
		KindAnnounce: "Announce",
		KindScrape:   "Scrape",
		Kind(0x7f):   "Unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String()=%q, want %q", k, got, want)
		}
	}
}
