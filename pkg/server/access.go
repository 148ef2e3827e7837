package server

import (
	"net/http"
)

// originPolicy applies an AccessConfig to upgrade requests.
type originPolicy struct {
	allow     map[string]struct{}
	deny      map[string]struct{}
	denyEmpty bool
}

func newOriginPolicy(cfg AccessConfig) *originPolicy {
	p := &originPolicy{denyEmpty: cfg.DenyEmptyOrigin}
	if len(cfg.AllowOrigins) > 0 {
		p.allow = toSet(cfg.AllowOrigins)
	} else if len(cfg.DenyOrigins) > 0 {
		p.deny = toSet(cfg.DenyOrigins)
	}
	return p
}

// Allowed reports whether r may open a WebSocket.
func (p *originPolicy) Allowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return !p.denyEmpty
	}
	if p.allow != nil {
		_, ok := p.allow[origin]
		return ok
	}
	if p.deny != nil {
		_, denied := p.deny[origin]
		return !denied
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
