package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/axiom-software-co/international-center-gateway/internal/observability"
	"github.com/axiom-software-co/international-center-gateway/internal/util"
)

// HeaderCorrelationID is the response header echoing the request's
// correlation identifier.
const HeaderCorrelationID = "X-Correlation-ID"

// Envelope is the gateway's JSON error body.
type Envelope struct {
	Error Detail `json:"error"`
}

// Detail is the inner error object of the envelope.
type Detail struct {
	Message       string `json:"message"`
	Type          string `json:"type"`
	CorrelationID string `json:"correlationId"`
	Timestamp     string `json:"timestamp"`
	Details       string `json:"details,omitempty"`
	StackTrace    string `json:"stackTrace,omitempty"`
}

// Translator converts classified errors into HTTP responses. When
// development mode is on, the underlying cause and a stack trace are
// included in the envelope; otherwise only the canned category message
// leaves the gateway.
type Translator struct {
	logger      observability.Logger
	development bool
	now         func() time.Time
}

// TranslatorOption is a functional option for the translator.
type TranslatorOption func(*Translator)

// WithTranslatorLogger sets the logger.
func WithTranslatorLogger(logger observability.Logger) TranslatorOption {
	return func(t *Translator) {
		t.logger = logger
	}
}

// WithDevelopmentMode toggles inclusion of causes and stack traces in
// responses. Never enable in production.
func WithDevelopmentMode(enabled bool) TranslatorOption {
	return func(t *Translator) {
		t.development = enabled
	}
}

// NewTranslator creates a translator.
func NewTranslator(opts ...TranslatorOption) *Translator {
	t := &Translator{
		logger: observability.NopLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Write translates err and writes the JSON envelope to w. If the response
// has already been started by an upstream handler the body is left
// untouched and the failure is only logged.
func (t *Translator) Write(ctx context.Context, w http.ResponseWriter, err error) {
	// A cancelled request gets no response body; the client is gone.
	if errors.Is(ctx.Err(), context.Canceled) {
		t.logger.WithContext(ctx).Debug("request context done, skipping error response",
			observability.Error(err),
		)
		return
	}

	kind := KindOf(err)
	correlationID := util.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	if started, ok := w.(interface{ Written() bool }); ok && started.Written() {
		t.logger.WithContext(ctx).Warn("error after response started, body left untouched",
			observability.String("type", kind.String()),
			observability.Error(err),
		)
		return
	}

	detail := Detail{
		Message:       clientMessage(err, kind),
		Type:          kind.String(),
		CorrelationID: correlationID,
		Timestamp:     t.now().UTC().Format(time.RFC3339Nano),
	}

	if t.development {
		detail.Details = err.Error()
		detail.StackTrace = stack()
	}

	level := t.logger.WithContext(ctx).Warn
	if kind == KindInternal {
		level = t.logger.WithContext(ctx).Error
	}
	level("request failed",
		observability.String("type", kind.String()),
		observability.Int("status", kind.Status()),
		observability.Bool("retryable", Retryable(err)),
		observability.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderCorrelationID, correlationID)
	w.WriteHeader(kind.Status())

	if encodeErr := json.NewEncoder(w).Encode(Envelope{Error: detail}); encodeErr != nil {
		t.logger.WithContext(ctx).Error("failed to encode error envelope",
			observability.Error(encodeErr),
		)
	}
}

func clientMessage(err error, kind Kind) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.ClientMessage()
	}
	return kind.message()
}

func stack() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return strings.TrimSpace(string(buf[:n]))
}
