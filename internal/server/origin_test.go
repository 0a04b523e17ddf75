package server

import (
	"net/http/httptest"
	"testing"

	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		host    string
		origin  string
		want    bool
	}{
		{"missing origin", []string{"*"}, "chat.test", "", false},
		{"malformed origin", []string{"*"}, "chat.test", "not a url", false},
		{"same host", nil, "chat.test:5000", "http://chat.test:5000", true},
		{"same host case-insensitive", nil, "Chat.Test", "http://chat.test", true},
		{"configured origin", []string{"http://app.test"}, "chat.test", "HTTP://APP.TEST", true},
		{"other origin", []string{"http://app.test"}, "chat.test", "http://evil.test", false},
		{"wildcard", []string{"*"}, "chat.test", "http://evil.test", true},
		{"invalid config entry ignored", []string{"app.test"}, "chat.test", "http://app.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewOriginPolicy(tt.allowed, logging.Discard())

			r := httptest.NewRequest("GET", "http://"+tt.host+"/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}

			assert.Equal(t, tt.want, p.Check(r))
		})
	}
}

func TestNormalizeOrigin(t *testing.T) {
	got, ok := normalizeOrigin("HTTPS://Example.COM:8443/path")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com:8443", got)

	_, ok = normalizeOrigin("example.com")
	assert.False(t, ok)
}
