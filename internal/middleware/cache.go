package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/axiom-software-co/international-center-gateway/internal/cache"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
)

// maxCachedBodySize caps the response body buffered for caching. Larger
// responses are still delivered to the client but never stored.
const maxCachedBodySize = 4 << 20 // 4 MiB

// DefaultCacheTTL is the entry lifetime when none is configured.
const DefaultCacheTTL = time.Minute

// volatileHeaders are per-request values that must never be replayed from
// a stored entry.
var volatileHeaders = []string{
	HeaderXCorrelationID,
	HeaderRateLimitLimit,
	HeaderRateLimitRemaining,
	HeaderContentEncoding,
	HeaderContentLength,
	HeaderXCache,
	"Date",
}

// cachedResponse is the serialized form of a stored response.
type cachedResponse struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// responseCache holds the state for the caching stage.
type responseCache struct {
	backend cache.Cache
	ttl     time.Duration
	logger  observability.Logger
}

// ResponseCache returns the pass-through caching stage. Only anonymous GET
// requests are eligible: responses to credentialed requests may be
// principal-specific and must never be replayed to another caller. Stored
// entries replay the full header set they were captured with, so the
// request Origin is part of the key to keep per-origin headers correct.
func ResponseCache(backend cache.Cache, ttl time.Duration, logger observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	rc := &responseCache{backend: backend, ttl: ttl, logger: logger}

	return func(next http.Handler) http.Handler {
		if backend == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cacheable(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := cacheKey(r)

			if rc.serveHit(w, r, key) {
				return
			}

			rc.captureAndStore(w, r, next, key)
		})
	}
}

// cacheable reports whether the request is eligible for the cache.
func cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if r.Header.Get(HeaderAuthorization) != "" {
		return false
	}
	cc := r.Header.Get(HeaderCacheControl)
	return !strings.Contains(cc, "no-store") && !strings.Contains(cc, "no-cache")
}

// serveHit replays a stored response. Returns false on a miss.
func (rc *responseCache) serveHit(w http.ResponseWriter, r *http.Request, key string) bool {
	data, err := rc.backend.Get(r.Context(), key)
	if err != nil {
		return false
	}

	var stored cachedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		rc.logger.Debug("cache entry unreadable, treating as miss",
			observability.String("key", key),
		)
		return false
	}

	for k, vals := range stored.Headers {
		w.Header()[http.CanonicalHeaderKey(k)] = vals
	}
	w.Header().Set(HeaderXCache, "HIT")
	w.WriteHeader(stored.StatusCode)
	_, _ = w.Write(stored.Body)

	rc.logger.WithContext(r.Context()).Debug("cache hit",
		observability.String("path", r.URL.Path),
	)

	return true
}

// captureAndStore runs the rest of the pipeline while buffering the
// response, then stores successful responses.
func (rc *responseCache) captureAndStore(w http.ResponseWriter, r *http.Request, next http.Handler, key string) {
	rec := &cacheRecorder{
		ResponseWriter: w,
		status:         http.StatusOK,
		body:           &bytes.Buffer{},
	}

	next.ServeHTTP(rec, r)

	if rec.status < http.StatusOK || rec.status >= http.StatusMultipleChoices {
		return
	}
	if rec.overflowed {
		return
	}

	headers := rec.Header().Clone()
	for _, k := range volatileHeaders {
		headers.Del(k)
	}

	stored := cachedResponse{
		StatusCode: rec.status,
		Headers:    headers,
		Body:       rec.body.Bytes(),
	}

	serialized, err := json.Marshal(stored)
	if err != nil {
		return
	}

	if err := rc.backend.Set(r.Context(), key, serialized, rc.ttl); err != nil {
		rc.logger.WithContext(r.Context()).Debug("failed to store cache entry",
			observability.String("key", key),
			observability.Error(err),
		)
	}
}

// cacheKey builds a deterministic key from method, path, sorted query, and
// the request origin.
func cacheKey(r *http.Request) string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte(':')
	sb.WriteString(r.URL.Path)

	query := r.URL.Query()
	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('?')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte('&')
			}
			vals := query[k]
			sort.Strings(vals)
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(strings.Join(vals, ","))
		}
	}

	if origin := r.Header.Get(HeaderOrigin); origin != "" {
		sb.WriteByte('@')
		sb.WriteString(origin)
	}

	return sb.String()
}

// cacheRecorder tees the response into a buffer while writing it through.
type cacheRecorder struct {
	http.ResponseWriter
	status        int
	body          *bytes.Buffer
	headerWritten bool
	overflowed    bool
}

func (rec *cacheRecorder) WriteHeader(code int) {
	if rec.headerWritten {
		return
	}
	rec.status = code
	rec.headerWritten = true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *cacheRecorder) Write(b []byte) (int, error) {
	if !rec.headerWritten {
		rec.WriteHeader(http.StatusOK)
	}

	if !rec.overflowed {
		if int64(rec.body.Len())+int64(len(b)) > maxCachedBodySize {
			rec.overflowed = true
			rec.body.Reset()
		} else {
			rec.body.Write(b)
		}
	}

	return rec.ResponseWriter.Write(b)
}

func (rec *cacheRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
