package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-gateway/internal/auth"
	"github.com/axiom-software-co/international-center-gateway/internal/httperr"
	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit"
	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit/store"
	"github.com/axiom-software-co/international-center-gateway/internal/util"
)

func newTestCoordinator(t *testing.T, limit int) *ratelimit.Coordinator {
	t.Helper()

	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	cfg := ratelimit.Config{
		Enabled:       true,
		Limit:         limit,
		ElevatedLimit: limit * 5,
		Window:        time.Minute,
	}

	ip := ratelimit.NewDimensionLimiter(ratelimit.DimensionIP, s, cfg)
	user := ratelimit.NewDimensionLimiter(ratelimit.DimensionUser, s, cfg)

	return ratelimit.NewCoordinator(ip, user)
}

func rateLimitedHandler(t *testing.T, limit int) http.Handler {
	t.Helper()
	mw := RateLimit(newTestCoordinator(t, limit), httperr.NewTranslator(), nil)
	return mw(okHandler())
}

func TestRateLimit_AllowsWithinLimit(t *testing.T) {
	handler := rateLimitedHandler(t, 5)

	r := httptest.NewRequest("GET", "/api/services", nil)
	r.RemoteAddr = "203.0.113.7:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "4", w.Header().Get(HeaderRateLimitRemaining))
}

func TestRateLimit_DeniesBeyondLimit(t *testing.T) {
	handler := rateLimitedHandler(t, 3)

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		r := httptest.NewRequest("GET", "/api/services", nil)
		r.RemoteAddr = "203.0.113.7:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, r)
	}

	require.NotNil(t, last)
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "60", last.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "0", last.Header().Get(HeaderRateLimitRemaining))
}

func TestRateLimit_SeparateClientsSeparateBudgets(t *testing.T) {
	handler := rateLimitedHandler(t, 1)

	first := httptest.NewRequest("GET", "/", nil)
	first.RemoteAddr = "203.0.113.7:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	assert.Equal(t, http.StatusOK, w.Code)

	second := httptest.NewRequest("GET", "/", nil)
	second.RemoteAddr = "198.51.100.9:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_UserHeaderSplitsBudget(t *testing.T) {
	// Same IP limited at 1; distinct X-User-ID values keep the user
	// dimension separate but the IP dimension still trips.
	handler := rateLimitedHandler(t, 2)

	codes := make([]int, 0, 3)
	for _, user := range []string{"alice", "bob", "carol"} {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.7:1234"
		r.Header.Set(HeaderXUserID, user)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_PrincipalIdentifierUsed(t *testing.T) {
	coordinator := newTestCoordinator(t, 2)
	mw := RateLimit(coordinator, httperr.NewTranslator(), nil)

	var seenUser string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = "served"
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:1234"
	principal := &auth.Principal{Subject: "svc-account-1"}
	r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "served", seenUser)
	assert.Equal(t, "svc-account-1", userIdentifier(r, "203.0.113.7"))
}

func TestRateLimit_UsesContextClientIP(t *testing.T) {
	coordinator := newTestCoordinator(t, 1)
	handler := RateLimit(coordinator, httperr.NewTranslator(), nil)(okHandler())

	// Two requests from different sockets but the same resolved client
	// IP share one budget.
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "10.0.0." + strconv.Itoa(i+1) + ":1234"
		r = r.WithContext(util.ContextWithClientIP(r.Context(), "203.0.113.7"))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, want, w.Code)
	}
}

func TestRateLimit_DisabledCoordinatorPassesThrough(t *testing.T) {
	handler := RateLimit(ratelimit.NewCoordinator(nil, nil), httperr.NewTranslator(), nil)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderRateLimitLimit))
}

// failingStore errors on every operation, standing in for an unreachable
// backend.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (int64, error) {
	return 0, errors.New("store unavailable")
}

func (failingStore) Increment(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, errors.New("store unavailable")
}

func (failingStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, errors.New("store unavailable")
}

func (failingStore) Delete(context.Context, string) error { return errors.New("store unavailable") }
func (failingStore) Close() error                         { return nil }

func TestRateLimit_FailsOpenOnStoreError(t *testing.T) {
	cfg := ratelimit.DefaultConfig()
	ip := ratelimit.NewDimensionLimiter(ratelimit.DimensionIP, failingStore{}, cfg)
	coordinator := ratelimit.NewCoordinator(ip, nil)

	handler := RateLimit(coordinator, httperr.NewTranslator(), nil)(okHandler())

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_CancelledContextAborts(t *testing.T) {
	coordinator := newTestCoordinator(t, 5)

	hits := 0
	handler := RateLimit(coordinator, httperr.NewTranslator(), nil)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			hits++
			w.WriteHeader(http.StatusOK)
		},
	))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	r.RemoteAddr = "203.0.113.7:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	// The client is gone: nothing forwarded, nothing written.
	assert.Equal(t, 0, hits)
	assert.Empty(t, w.Body.String())
}

func TestRateLimit_ExpiredDeadlineYieldsTimeout(t *testing.T) {
	coordinator := newTestCoordinator(t, 5)
	handler := RateLimit(coordinator, httperr.NewTranslator(), nil)(okHandler())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	r := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	r.RemoteAddr = "203.0.113.7:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
}

func TestUserIdentifier_Fallbacks(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "203.0.113.7", userIdentifier(r, "203.0.113.7"))

	r = r.WithContext(auth.ContextWithPrincipal(context.Background(), &auth.Principal{Subject: "u-1"}))
	assert.Equal(t, "u-1", userIdentifier(r, "203.0.113.7"))

	r.Header.Set(HeaderXUserID, "explicit")
	assert.Equal(t, "explicit", userIdentifier(r, "203.0.113.7"))
}
