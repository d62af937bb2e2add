package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
)

// minCompressSize is the smallest response body worth compressing.
const minCompressSize = 1024

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.DefaultCompression)
		return w
	},
}

// gzipResponseWriter compresses the response body. Compression is decided
// lazily on the first write so small bodies and already-encoded responses
// pass through untouched.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	decided     bool
	compressing bool
	status      int
	wroteHeader bool
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if g.wroteHeader {
		return
	}
	g.status = code
	g.wroteHeader = true
	// Header emission is deferred until the first body write so the
	// Content-Encoding decision can still be made.
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if !g.decided {
		g.decide(b)
	}
	if g.compressing {
		return g.gz.Write(b)
	}
	return g.ResponseWriter.Write(b)
}

func (g *gzipResponseWriter) decide(first []byte) {
	g.decided = true

	hdr := g.ResponseWriter.Header()
	if hdr.Get(HeaderContentEncoding) == "" && len(first) >= minCompressSize && compressibleType(hdr.Get(HeaderContentType)) {
		g.compressing = true
		hdr.Set(HeaderContentEncoding, "gzip")
		hdr.Del(HeaderContentLength)

		gz := gzipWriterPool.Get().(*gzip.Writer)
		gz.Reset(g.ResponseWriter)
		g.gz = gz
	}

	status := g.status
	if status == 0 {
		status = http.StatusOK
	}
	g.ResponseWriter.WriteHeader(status)
}

func (g *gzipResponseWriter) finish() {
	if !g.decided {
		// No body was written; flush headers as-is.
		status := g.status
		if status == 0 {
			status = http.StatusOK
		}
		if g.wroteHeader {
			g.ResponseWriter.WriteHeader(status)
		}
		return
	}
	if g.compressing {
		_ = g.gz.Close()
		gzipWriterPool.Put(g.gz)
	}
}

func compressibleType(contentType string) bool {
	if contentType == "" {
		return true
	}
	for _, prefix := range []string{"application/json", "text/", "application/xml", "application/javascript"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// Compression returns a middleware that gzip-compresses response bodies
// for clients that advertise gzip support. Responses below one kilobyte or
// with a non-compressible content type are passed through unchanged.
func Compression() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get(HeaderAcceptEncoding), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gw := &gzipResponseWriter{ResponseWriter: w}
			defer gw.finish()

			w.Header().Add("Vary", HeaderAcceptEncoding)
			next.ServeHTTP(gw, r)
		})
	}
}
