package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMetrics is created once for the package because promauto registers
// collectors on the process-wide default registry.
var testMetrics = NewMetrics("obstest")

func TestMetricsMiddleware(t *testing.T) {
	handler := MetricsMiddleware(testMetrics)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		},
	))

	req := httptest.NewRequest(http.MethodGet, "/metrics-test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())

	count := testutil.ToFloat64(
		testMetrics.requestsTotal.WithLabelValues(http.MethodGet, "418"),
	)
	assert.Equal(t, float64(1), count)

	inFlight := testutil.ToFloat64(
		testMetrics.activeRequests.WithLabelValues(http.MethodGet),
	)
	assert.Equal(t, float64(0), inFlight)
}

func TestRecordRequest(t *testing.T) {
	testMetrics.RecordRequest(http.MethodPost, http.StatusCreated, 25*time.Millisecond, 128, 512)
	testMetrics.RecordRequest(http.MethodPost, http.StatusCreated, 30*time.Millisecond, 0, 0)

	count := testutil.ToFloat64(
		testMetrics.requestsTotal.WithLabelValues(http.MethodPost, "201"),
	)
	assert.Equal(t, float64(2), count)
}

func TestMetricsHandler(t *testing.T) {
	testMetrics.RecordRequest(http.MethodGet, http.StatusOK, time.Millisecond, 0, 64)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	testMetrics.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "obstest_http_requests_total"))
}
