package middleware

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(DefaultSecurityHeadersConfig())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/services", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))

	// Plain HTTP request gets no HSTS.
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_HSTSOnTLS(t *testing.T) {
	handler := SecurityHeaders(DefaultSecurityHeadersConfig())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	r := httptest.NewRequest("GET", "https://gateway.example.com/api/services", nil)
	r.TLS = &tls.ConnectionState{}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestSecurityHeaders_HSTSBehindProxy(t *testing.T) {
	handler := SecurityHeaders(DefaultSecurityHeadersConfig())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	r := httptest.NewRequest("GET", "/api/services", nil)
	r.Header.Set("X-Forwarded-Proto", "https")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestHarden_StripsInfrastructureHeaders(t *testing.T) {
	handler := Harden()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx/1.25")
		w.Header().Set("X-Powered-By", "Express")
		w.Header().Set(HeaderContentType, ContentTypeJSON)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Empty(t, w.Header().Get("Server"))
	assert.Empty(t, w.Header().Get("X-Powered-By"))
	assert.Equal(t, ContentTypeJSON, w.Header().Get(HeaderContentType))
}
