package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded-for first hop wins",
			forwarded:  "203.0.113.7, 10.0.0.2, 10.0.0.3",
			realIP:     "198.51.100.1",
			remoteAddr: "10.0.0.3:4567",
			want:       "203.0.113.7",
		},
		{
			name:       "single forwarded-for entry",
			forwarded:  "203.0.113.7",
			remoteAddr: "10.0.0.3:4567",
			want:       "203.0.113.7",
		},
		{
			name:       "real-ip when no forwarded-for",
			realIP:     " 198.51.100.1 ",
			remoteAddr: "10.0.0.3:4567",
			want:       "198.51.100.1",
		},
		{
			name:       "remote addr port stripped",
			remoteAddr: "192.168.1.50:39812",
			want:       "192.168.1.50",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.168.1.50",
			want:       "192.168.1.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
