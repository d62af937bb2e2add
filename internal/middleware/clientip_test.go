package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/axiom-software-co/international-center-gateway/internal/util"
)

func TestClientIPExtractor_NoTrustedProxies(t *testing.T) {
	e := NewClientIPExtractor(nil)

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set(HeaderXForwardedFor, "198.51.100.1")

	// Forwarded headers are ignored without trusted proxies.
	assert.Equal(t, "203.0.113.7", e.Extract(r))
}

func TestClientIPExtractor_TrustedProxyChain(t *testing.T) {
	e := NewClientIPExtractor([]string{"10.0.0.0/8"})

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{
			name:       "direct connection not from proxy",
			remoteAddr: "203.0.113.7:1234",
			xff:        "198.51.100.1",
			want:       "203.0.113.7",
		},
		{
			name:       "single hop through proxy",
			remoteAddr: "10.0.0.5:1234",
			xff:        "198.51.100.1",
			want:       "198.51.100.1",
		},
		{
			name:       "walks past trusted hops",
			remoteAddr: "10.0.0.5:1234",
			xff:        "198.51.100.1, 10.0.0.9",
			want:       "198.51.100.1",
		},
		{
			name:       "all hops trusted falls back to remote",
			remoteAddr: "10.0.0.5:1234",
			xff:        "10.0.0.1, 10.0.0.2",
			want:       "10.0.0.5",
		},
		{
			name:       "no forwarded header",
			remoteAddr: "10.0.0.5:1234",
			xff:        "",
			want:       "10.0.0.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set(HeaderXForwardedFor, tt.xff)
			}
			assert.Equal(t, tt.want, e.Extract(r))
		})
	}
}

func TestClientIPExtractor_SingleIPAndInvalidEntries(t *testing.T) {
	e := NewClientIPExtractor([]string{"10.0.0.5", "not-a-cidr"})

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:1234"
	r.Header.Set(HeaderXForwardedFor, "198.51.100.1")

	assert.Equal(t, "198.51.100.1", e.Extract(r))
}

func TestClientIPExtractor_IPv6(t *testing.T) {
	e := NewClientIPExtractor(nil)

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "[2001:db8::1]:443"

	assert.Equal(t, "2001:db8::1", e.Extract(r))
}

func TestClientIPMiddleware_StoresInContext(t *testing.T) {
	var captured string
	handler := ClientIP(NewClientIPExtractor(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = util.ClientIPFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "203.0.113.7", captured)
}
