package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	appURL := "https://askpulse.example.com/app"

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"empty origin", "", false, true},
		{"app origin", "https://askpulse.example.com", false, true},

		{"different host", "https://evil.com", false, false},
		{"different port", "https://askpulse.example.com:9090", false, false},
		{"http instead of https", "http://askpulse.example.com", false, false},
		{"subdomain", "https://sub.askpulse.example.com", false, false},

		{"localhost dev", "http://localhost:8080", true, true},
		{"localhost no port dev", "http://localhost", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"ipv6 loopback dev", "http://[::1]:3000", true, true},
		{"localhost prod rejected", "http://localhost:8080", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(appURL, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws/notifications", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestExtractOrigin(t *testing.T) {
	assert.Equal(t, "https://askpulse.example.com", extractOrigin("https://askpulse.example.com/x?y=1"))
	assert.Empty(t, extractOrigin("not a url"))
}
