package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Tyrowin/talkroom/internal/logging"
)

// OriginPolicy decides which browser origins may open a chat socket. An
// origin whose host matches the request host is always accepted.
type OriginPolicy struct {
	allowed  map[string]struct{}
	allowAll bool
	log      logging.Logger
}

// NewOriginPolicy builds a policy from configured origins. "*" allows any
// origin; malformed entries are logged and ignored.
func NewOriginPolicy(origins []string, log logging.Logger) *OriginPolicy {
	if log == nil {
		log = logging.Discard()
	}
	p := &OriginPolicy{allowed: make(map[string]struct{}), log: log}

	normalized, allowAll := normalizeOrigins(origins, log)
	p.allowAll = allowAll
	for _, o := range normalized {
		p.allowed[o] = struct{}{}
	}
	return p
}

func normalizeOrigins(origins []string, log logging.Logger) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn(context.Background(), "ignoring invalid origin in configuration", "origin", origin)
			continue
		}

		normalized = append(normalized, normalizedOrigin)
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// Allowed reports whether r carries an acceptable Origin header. Requests
// without one are rejected.
func (p *OriginPolicy) Allowed(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return false
	}

	origin, ok := normalizeOrigin(header)
	if !ok {
		return false
	}

	if p.allowAll {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	_, exists := p.allowed[origin]
	return exists
}

// Check is the websocket.Upgrader CheckOrigin hook.
func (p *OriginPolicy) Check(r *http.Request) bool {
	if p.Allowed(r) {
		return true
	}

	p.log.Warn(r.Context(), "blocked websocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}
