package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "ZKAttest-Chain/internal/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Mode: ModeAPIKey,
		Keys: []APIKeyConfig{
			{Name: "ops", SHA256: HashKey("ops-secret"), Permissions: []string{"*"}},
			{Name: "reader", SHA256: HashKey("reader-secret"), Permissions: []string{PermissionJobsRead}},
			{Name: "retired", SHA256: HashKey("old-secret"), Permissions: []string{"*"}, Disabled: true},
		},
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceValidation(t *testing.T) {
	cases := map[string]Config{
		"unknown mode":       {Mode: "oauth"},
		"no keys":            {Mode: ModeAPIKey},
		"missing name":       {Mode: ModeAPIKey, Keys: []APIKeyConfig{{SHA256: HashKey("x")}}},
		"bad digest":         {Mode: ModeAPIKey, Keys: []APIKeyConfig{{Name: "a", SHA256: "abcd"}}},
		"duplicate name":     {Mode: ModeAPIKey, Keys: []APIKeyConfig{{Name: "a", SHA256: HashKey("x")}, {Name: "a", SHA256: HashKey("y")}}},
		"unknown permission": {Mode: ModeAPIKey, Keys: []APIKeyConfig{{Name: "a", SHA256: HashKey("x"), Permissions: []string{"root"}}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewService(cfg)
			assert.Error(t, err)
		})
	}

	svc, err := NewService(Config{})
	require.NoError(t, err)
	assert.False(t, svc.Enabled())
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	principal, err := svc.Authenticate(ctx, "reader-secret")
	require.NoError(t, err)
	assert.Equal(t, "reader", principal.Name)

	_, err = svc.Authenticate(ctx, "")
	assert.Equal(t, CodeUnauthenticated, xerrors.CodeOf(err))

	_, err = svc.Authenticate(ctx, "guess")
	assert.Equal(t, CodeUnauthenticated, xerrors.CodeOf(err))

	_, err = svc.Authenticate(ctx, "old-secret")
	assert.Equal(t, CodePermissionDenied, xerrors.CodeOf(err))
	assert.Equal(t, http.StatusForbidden, xerrors.HTTPStatusOf(err))
}

func TestAuthorize(t *testing.T) {
	svc := newTestService(t)

	reader := WithPrincipal(context.Background(), &Principal{Name: "reader", Permissions: []string{PermissionJobsRead}})
	assert.NoError(t, svc.Authorize(reader, PermissionJobsRead))
	err := svc.Authorize(reader, PermissionProve)
	assert.Equal(t, CodePermissionDenied, xerrors.CodeOf(err))

	admin := WithPrincipal(context.Background(), &Principal{Name: "ops", Permissions: []string{"*"}})
	assert.NoError(t, svc.Authorize(admin, PermissionExecute, PermissionProve))

	err = svc.Authorize(context.Background(), PermissionExecute)
	assert.Equal(t, CodeUnauthenticated, xerrors.CodeOf(err))

	disabled, err := NewService(Config{Mode: ModeDisabled})
	require.NoError(t, err)
	assert.NoError(t, disabled.Authorize(context.Background(), PermissionProve))
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	var seen *Principal
	handler := svc.Middleware(func(w http.ResponseWriter, _ *http.Request, err error) {
		w.WriteHeader(xerrors.HTTPStatusOf(err))
	}, PermissionJobsRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(setup func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		setup(req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(func(*http.Request) {}))
	assert.Equal(t, http.StatusUnauthorized, serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }))

	assert.Equal(t, http.StatusNoContent, serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer reader-secret") }))
	require.NotNil(t, seen)
	assert.Equal(t, "reader", seen.Name)

	assert.Equal(t, http.StatusNoContent, serve(func(r *http.Request) { r.Header.Set(APIKeyHeader, "ops-secret") }))
	assert.Equal(t, "ops", seen.Name)
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	svc, err := NewService(Config{})
	require.NoError(t, err)
	called := false
	handler := svc.Middleware(nil, PermissionProve)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, called)
}
