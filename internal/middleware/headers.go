package middleware

import (
	"net/http"
	"strconv"
)

// SecurityHeadersConfig controls the headers added to every response.
type SecurityHeadersConfig struct {
	ContentTypeOptions    string
	FrameOptions          string
	XSSProtection         string
	ReferrerPolicy        string
	ContentSecurityPolicy string
	HSTSMaxAgeSeconds     int
}

// DefaultSecurityHeadersConfig returns the gateway's standard header set.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentTypeOptions:    "nosniff",
		FrameOptions:          "DENY",
		XSSProtection:         "1; mode=block",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAgeSeconds:     31536000,
	}
}

// SecurityHeaders returns a middleware that stamps defensive headers onto
// every response before the downstream handler runs. HSTS is only added
// when the request arrived over TLS.
func SecurityHeaders(cfg SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if cfg.ContentTypeOptions != "" {
				h.Set("X-Content-Type-Options", cfg.ContentTypeOptions)
			}
			if cfg.FrameOptions != "" {
				h.Set("X-Frame-Options", cfg.FrameOptions)
			}
			if cfg.XSSProtection != "" {
				h.Set("X-XSS-Protection", cfg.XSSProtection)
			}
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			if cfg.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			}
			if cfg.HSTSMaxAgeSeconds > 0 && isSecureRequest(r) {
				h.Set("Strict-Transport-Security", hstsValue(cfg.HSTSMaxAgeSeconds))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

func hstsValue(maxAge int) string {
	return "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"
}

// infrastructureHeaders are upstream response headers that leak
// implementation details and are stripped before the response leaves the
// gateway.
var infrastructureHeaders = []string{
	"Server",
	"X-Powered-By",
	"X-AspNet-Version",
	"X-AspNetMvc-Version",
	"X-Runtime",
}

// hardeningResponseWriter strips infrastructure headers at the moment the
// response is committed, after the upstream has set them.
type hardeningResponseWriter struct {
	http.ResponseWriter
	stripped bool
}

func (hw *hardeningResponseWriter) strip() {
	if hw.stripped {
		return
	}
	hw.stripped = true
	for _, name := range infrastructureHeaders {
		hw.Header().Del(name)
	}
}

func (hw *hardeningResponseWriter) WriteHeader(code int) {
	hw.strip()
	hw.ResponseWriter.WriteHeader(code)
}

func (hw *hardeningResponseWriter) Write(b []byte) (int, error) {
	hw.strip()
	return hw.ResponseWriter.Write(b)
}

func (hw *hardeningResponseWriter) Flush() {
	if f, ok := hw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Harden returns a middleware that removes implementation-revealing
// headers from upstream responses.
func Harden() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&hardeningResponseWriter{ResponseWriter: w}, r)
		})
	}
}
