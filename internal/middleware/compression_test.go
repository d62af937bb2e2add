package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func largeJSONHandler() http.Handler {
	body := `{"data":"` + strings.Repeat("x", 4096) + `"}`
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderContentType, ContentTypeJSON)
		_, _ = io.WriteString(w, body)
	})
}

func TestCompression_GzipsLargeJSON(t *testing.T) {
	handler := Compression()(largeJSONHandler())

	r := httptest.NewRequest("GET", "/api/services", nil)
	r.Header.Set(HeaderAcceptEncoding, "gzip, deflate")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "gzip", w.Header().Get(HeaderContentEncoding))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), `"data"`)
}

func TestCompression_SkipsWithoutAcceptEncoding(t *testing.T) {
	handler := Compression()(largeJSONHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/services", nil))

	assert.Empty(t, w.Header().Get(HeaderContentEncoding))
	assert.Contains(t, w.Body.String(), `"data"`)
}

func TestCompression_SkipsSmallBodies(t *testing.T) {
	handler := Compression()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderContentType, ContentTypeJSON)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(HeaderAcceptEncoding, "gzip")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Empty(t, w.Header().Get(HeaderContentEncoding))
	assert.Equal(t, `{"ok":true}`, w.Body.String())
}

func TestCompression_SkipsAlreadyEncoded(t *testing.T) {
	handler := Compression()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderContentEncoding, "br")
		_, _ = io.WriteString(w, strings.Repeat("y", 4096))
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(HeaderAcceptEncoding, "gzip")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "br", w.Header().Get(HeaderContentEncoding))
}

func TestCompression_PreservesStatusCode(t *testing.T) {
	handler := Compression()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, strings.Repeat("z", 2048))
	}))

	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set(HeaderAcceptEncoding, "gzip")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
}
