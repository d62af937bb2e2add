package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStrategy is a scripted strategy for dispatch-order tests.
type fakeStrategy struct {
	name      string
	canHandle bool
	principal *Principal
	err       error
	called    *bool
}

func (f *fakeStrategy) Name() string                    { return f.name }
func (f *fakeStrategy) CanHandle(*http.Request) bool    { return f.canHandle }
func (f *fakeStrategy) Challenge(w http.ResponseWriter) { Challenge(w) }

func (f *fakeStrategy) Authenticate(context.Context, *http.Request) (*Principal, error) {
	if f.called != nil {
		*f.called = true
	}
	return f.principal, f.err
}

func TestDispatcher_FirstMatchWinsInRegistrationOrder(t *testing.T) {
	firstCalled, secondCalled := false, false

	d := NewDispatcher([]Strategy{
		&fakeStrategy{name: "first", canHandle: true, principal: &Principal{Subject: "a"}, called: &firstCalled},
		&fakeStrategy{name: "second", canHandle: true, principal: &Principal{Subject: "b"}, called: &secondCalled},
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	principal, strategy := d.Authenticate(context.Background(), r)

	require.NotNil(t, principal)
	assert.Equal(t, "a", principal.Subject)
	assert.Equal(t, "first", strategy)
	assert.Equal(t, "first", principal.Strategy)
	assert.True(t, firstCalled)
	assert.False(t, secondCalled, "later strategies must not be probed after a match")
}

func TestDispatcher_SkipsNonClaimingStrategies(t *testing.T) {
	d := NewDispatcher([]Strategy{
		&fakeStrategy{name: "first", canHandle: false},
		&fakeStrategy{name: "second", canHandle: true, principal: &Principal{Subject: "b"}},
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	principal, strategy := d.Authenticate(context.Background(), r)

	require.NotNil(t, principal)
	assert.Equal(t, "b", principal.Subject)
	assert.Equal(t, "second", strategy)
}

func TestDispatcher_NoClaimingStrategyStaysAnonymous(t *testing.T) {
	d := NewDispatcher([]Strategy{
		&fakeStrategy{name: "first", canHandle: false},
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	principal, strategy := d.Authenticate(context.Background(), r)

	assert.Nil(t, principal)
	assert.Empty(t, strategy)
}

func TestDispatcher_AuthenticationFailureStaysAnonymous(t *testing.T) {
	d := NewDispatcher([]Strategy{
		&fakeStrategy{name: "failing", canHandle: true, err: errors.New("bad signature")},
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	principal, strategy := d.Authenticate(context.Background(), r)

	assert.Nil(t, principal, "failed authentication leaves the request anonymous")
	assert.Equal(t, "failing", strategy)
}

func TestChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	Challenge(rec)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestPrincipal_HasRole(t *testing.T) {
	p := &Principal{Subject: "u1", Roles: []string{"Admin", "Editor"}}

	assert.True(t, p.HasRole("Admin"))
	assert.False(t, p.HasRole("admin"), "role claims are case-sensitive")
	assert.False(t, p.HasRole("Administrator"))

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.HasRole("Admin"))
}

func TestPrincipal_Identifier(t *testing.T) {
	assert.Equal(t, "alice", (&Principal{Subject: "u1", Name: "alice"}).Identifier())
	assert.Equal(t, "u1", (&Principal{Subject: "u1"}).Identifier())

	var nilPrincipal *Principal
	assert.Empty(t, nilPrincipal.Identifier())
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, PrincipalFromContext(ctx))

	p := &Principal{Subject: "u1"}
	ctx = ContextWithPrincipal(ctx, p)
	assert.Same(t, p, PrincipalFromContext(ctx))
}

func TestAnonymousStrategy(t *testing.T) {
	s := NewAnonymousStrategy()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, s.CanHandle(r))

	principal, err := s.Authenticate(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, principal)
}
