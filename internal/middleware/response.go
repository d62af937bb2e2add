package middleware

import "net/http"

// responseWriter wraps http.ResponseWriter to capture status code and size,
// and to report whether the response has been started.
type responseWriter struct {
	http.ResponseWriter
	status  int
	size    int
	written bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.status = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Written reports whether headers or body have been sent. The error
// translator uses this to avoid corrupting a response already in flight.
func (rw *responseWriter) Written() bool {
	return rw.written
}

// Status returns the captured status code.
func (rw *responseWriter) Status() int {
	return rw.status
}

// Size returns the number of body bytes written.
func (rw *responseWriter) Size() int {
	return rw.size
}

// Flush implements http.Flusher for streaming support.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
