// Package protocol implements the wire format of the WebTorrent tracker protocol.
//
// Peers talk to the tracker over WebSocket. Every frame, text or binary, carries
// exactly one UTF-8 encoded JSON document; there is no sub-framing and no batching
// of several protocol messages into one frame.
//
// # Decoding
//
// Decode turns a raw frame payload into a Message in one pass:
//
//  1. The payload must be valid UTF-8.
//  2. The text must parse as a JSON document.
//  3. The document must not nest deeper than MaxDocumentDepth.
//  4. The document is classified into a tagged variant (see Kind).
//
// Failures in steps 1-3 yield a *DecodeError and no Message at all. Step 4 never
// fails: a document whose shape does not match any known request becomes a
// KindUnknown or KindInvalid message, which the tracker answers with a protocol
// error.
//
// # Messages
//
//	{"action":"announce","info_hash":"...","peer_id":"...","numwant":5,
//	 "offers":[{"offer_id":"...","offer":{"type":"offer","sdp":"..."}}]}
//	{"action":"announce","info_hash":"...","peer_id":"...",
//	 "to_peer_id":"...","offer_id":"...","answer":{"type":"answer","sdp":"..."}}
//	{"action":"scrape","info_hash":["...","..."]}
//
// # Encoding
//
// Encode serializes any JSON-compatible value with the same grammar Decode accepts,
// so decoding the output of Encode yields an equal document.
package protocol
