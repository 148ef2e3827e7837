// Package tracker is an in-memory WebTorrent tracker core.
//
// FastTracker implements gateway.Core: it keeps swarms keyed by info hash,
// answers announce and scrape requests, and relays WebRTC offers and answers
// between peers of the same swarm. Nothing is persisted; a swarm disappears
// when its last peer leaves.
package tracker
