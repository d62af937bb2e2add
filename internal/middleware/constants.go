// Package middleware provides the HTTP middleware stages that make up the
// gateway's request pipeline.
package middleware

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"

	// HeaderOrigin is the Origin header name.
	HeaderOrigin = "Origin"

	// HeaderXCorrelationID is the X-Correlation-ID header name.
	HeaderXCorrelationID = "X-Correlation-ID"

	// HeaderXForwardedFor is the X-Forwarded-For header name.
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderXRealIP is the X-Real-IP header name.
	HeaderXRealIP = "X-Real-IP"

	// HeaderXUserID is the header carrying an explicit user identifier
	// for rate limiting.
	HeaderXUserID = "X-User-ID"

	// HeaderRateLimitLimit is the X-RateLimit-Limit header name.
	HeaderRateLimitLimit = "X-RateLimit-Limit"

	// HeaderRateLimitRemaining is the X-RateLimit-Remaining header name.
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// HeaderAcceptEncoding is the Accept-Encoding header name.
	HeaderAcceptEncoding = "Accept-Encoding"

	// HeaderContentEncoding is the Content-Encoding header name.
	HeaderContentEncoding = "Content-Encoding"

	// HeaderContentLength is the Content-Length header name.
	HeaderContentLength = "Content-Length"

	// HeaderAuthorization is the Authorization header name.
	HeaderAuthorization = "Authorization"

	// HeaderCacheControl is the Cache-Control header name.
	HeaderCacheControl = "Cache-Control"

	// HeaderXCache reports whether a response was served from cache.
	HeaderXCache = "X-Cache"
)

// Content type constants.
const (
	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"
)
