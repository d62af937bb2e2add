// Package httperr classifies pipeline errors and translates them into the
// gateway's JSON error envelope.
package httperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Kind is the category of a gateway error. The category, not the message,
// determines the HTTP status code.
type Kind int

const (
	// KindInternal is an unexpected failure inside the gateway or upstream.
	KindInternal Kind = iota

	// KindValidation is a malformed or rejected request.
	KindValidation

	// KindInvalidOperation is a request that is well-formed but not
	// permitted in the current state.
	KindInvalidOperation

	// KindAuthenticationRequired is a request that needs credentials.
	KindAuthenticationRequired

	// KindForbidden is an authenticated request without sufficient rights.
	KindForbidden

	// KindTimeout is an upstream or handler deadline expiry.
	KindTimeout

	// KindRateLimited is a request rejected by the rate limiter.
	KindRateLimited

	// KindUnimplemented is a feature the gateway does not provide.
	KindUnimplemented
)

// String returns the wire name for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindForbidden:
		return "forbidden"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindUnimplemented:
		return "not_implemented"
	default:
		return "internal_error"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidOperation:
		return 400
	case KindAuthenticationRequired:
		return 401
	case KindForbidden:
		return 403
	case KindTimeout:
		return 408
	case KindRateLimited:
		return 429
	case KindUnimplemented:
		return 501
	default:
		return 500
	}
}

// message returns the canned client-facing message for the kind. Unsafe
// kinds never expose the underlying cause.
func (k Kind) message() string {
	switch k {
	case KindValidation:
		return "The request could not be validated."
	case KindInvalidOperation:
		return "The requested operation is not valid."
	case KindAuthenticationRequired:
		return "Authentication is required to access this resource."
	case KindForbidden:
		return "You do not have permission to access this resource."
	case KindTimeout:
		return "The request timed out. Please try again."
	case KindRateLimited:
		return "Too many requests. Please slow down and try again."
	case KindUnimplemented:
		return "This functionality is not implemented."
	default:
		return "An unexpected error occurred while processing the request."
	}
}

// Error is a classified gateway error.
type Error struct {
	// Kind is the error category.
	Kind Kind

	// Message is an optional client-safe message overriding the canned
	// one for the kind.
	Message string

	// Cause is the underlying error, never shown to clients outside
	// development mode.
	Cause error
}

// New creates an error of the given kind wrapping a cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf creates an error of the given kind with a formatted client-safe
// message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ClientMessage returns the message safe to show to clients.
func (e *Error) ClientMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.message()
}

// KindOf classifies an arbitrary error. Typed *Error values keep their
// kind; context and network deadline errors map to timeout; everything
// else is internal.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindInternal
}

// Retryable reports whether a client could reasonably retry the request
// that produced this error. Timeouts, cancellations, and transient network
// failures are retryable; everything else is terminal for that attempt. A
// rate-limit denial is deliberately not retryable here: its retry signal
// is the Retry-After header, not the error classification.
func Retryable(err error) bool {
	if KindOf(err) == KindTimeout {
		return true
	}

	if errors.Is(err, context.Canceled) {
		return true
	}

	// Transient connection failures such as refused dials are worth a
	// retry; anything else classified internal is not.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
