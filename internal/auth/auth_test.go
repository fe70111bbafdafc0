package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderResolver(t *testing.T) {
	resolver := &HeaderResolver{
		UserWorkspaces: map[string][]string{
			"user123": {"workspace123", "workspaceA"},
		},
	}

	t.Run("known user", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		r.Header.Set(UserIDHeader, "user123")

		p, err := resolver.Resolve(r)
		require.NoError(t, err)
		assert.Equal(t, "user123", p.UserID)
		assert.True(t, p.InWorkspace("workspace123"))
		assert.True(t, p.InWorkspace("workspaceA"))
		assert.False(t, p.InWorkspace("workspaceB"))
	})

	t.Run("unknown user authenticates with no workspaces", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		r.Header.Set(UserIDHeader, "stranger")

		p, err := resolver.Resolve(r)
		require.NoError(t, err)
		assert.Equal(t, "stranger", p.UserID)
		assert.Empty(t, p.Workspaces)
	})

	t.Run("missing header is unauthenticated", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		_, err := resolver.Resolve(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("blank header is unauthenticated", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		r.Header.Set(UserIDHeader, "   ")
		_, err := resolver.Resolve(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestTokenAuthenticator(t *testing.T) {
	authn := NewTokenAuthenticator(map[string]string{
		"l5-etl-token": "etl",
		"fn-token":     "function",
	})

	t.Run("valid token for owning service", func(t *testing.T) {
		err := authn.Authorize("l5-etl-token", "etl", "logs:etl:ws1")
		assert.NoError(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		err := authn.Authorize("", "etl", "logs:etl:ws1")
		assert.ErrorIs(t, err, ErrUnauthorizedService)
	})

	t.Run("unknown token", func(t *testing.T) {
		err := authn.Authorize("bogus", "etl", "logs:etl:ws1")
		assert.ErrorIs(t, err, ErrUnauthorizedService)
	})

	t.Run("token owned by different service", func(t *testing.T) {
		err := authn.Authorize("fn-token", "etl", "logs:etl:ws1")
		assert.ErrorIs(t, err, ErrUnauthorizedService)
	})

	t.Run("nil map rejects everything", func(t *testing.T) {
		empty := NewTokenAuthenticator(nil)
		err := empty.Authorize("any", "etl", "logs:etl:ws1")
		assert.ErrorIs(t, err, ErrUnauthorizedService)
	})
}

func TestJWTResolver(t *testing.T) {
	const secret = "test-secret"
	resolver := NewJWTResolver(secret)

	t.Run("round trip", func(t *testing.T) {
		token, err := SignToken(secret, "user123", []string{"ws1", "ws2"}, time.Minute)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		p, err := resolver.Resolve(r)
		require.NoError(t, err)
		assert.Equal(t, "user123", p.UserID)
		assert.True(t, p.InWorkspace("ws1"))
		assert.True(t, p.InWorkspace("ws2"))
		assert.False(t, p.InWorkspace("ws3"))
	})

	t.Run("token via query parameter", func(t *testing.T) {
		token, err := SignToken(secret, "user123", []string{"ws1"}, time.Minute)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/api/logs/stream?token="+token, nil)
		p, err := resolver.Resolve(r)
		require.NoError(t, err)
		assert.Equal(t, "user123", p.UserID)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := SignToken(secret, "user123", []string{"ws1"}, -time.Minute)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		_, err = resolver.Resolve(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := SignToken("other-secret", "user123", []string{"ws1"}, time.Minute)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		_, err = resolver.Resolve(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("no credentials", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		_, err := resolver.Resolve(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/logs/stream", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		_, err := resolver.Resolve(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}
