package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/rbac"
)

type revokedSet map[string]bool

func (s revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) { return s[jti], nil }

type adminSet map[int64]bool

func (s adminSet) IsAdmin(_ context.Context, id int64) (bool, error) {
	admin, ok := s[id]
	if !ok {
		return false, apperr.Unauthorized("User no longer exists")
	}
	return admin, nil
}

func writeTestErr(w http.ResponseWriter, _ *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		code = http.StatusForbidden
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": apperr.Message(err)})
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("k", "quizd", time.Minute)

	tok, issued, err := a.IssueJWT(42, "alice", "user")
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	id, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, issued.ID, c.ID)
}

func TestParseRejects(t *testing.T) {
	a := NewAuthService("k", "quizd", time.Minute)
	tok, _, err := a.IssueJWT(1, "alice", "user")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewAuthService("other", "quizd", time.Minute).Parse(tok)
		assert.Error(t, err)
	})
	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewAuthService("k", "someone-else", time.Minute).Parse(tok)
		assert.Error(t, err)
	})
	t.Run("expired", func(t *testing.T) {
		late := NewAuthService("k", "quizd", time.Minute)
		late.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err := late.Parse(tok)
		assert.Error(t, err)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := a.Parse("not.a.jwt")
		assert.Error(t, err)
	})
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("k", "quizd", time.Minute)
	good, _, err := a.IssueJWT(7, "bob", "user")
	require.NoError(t, err)
	revokedTok, revokedClaims, err := a.IssueJWT(7, "bob", "user")
	require.NoError(t, err)

	var seen Identity
	h := JWTMiddleware(a, revokedSet{revokedClaims.ID: true}, writeTestErr)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = IdentityFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + good, http.StatusOK},
		{"lowercase scheme", "bearer " + good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"basic", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"revoked", "Bearer " + revokedTok, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
	assert.Equal(t, int64(7), seen.UserID)
	assert.Equal(t, "bob", seen.Username)
}

func TestAttachRoleFromDB(t *testing.T) {
	src := adminSet{1: true, 2: false}
	var role string
	h := AttachRoleFromDB(src, writeTestErr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = rbac.RoleFromContext(r.Context())
	}))

	for id, want := range map[int64]string{1: "admin", 2: "user"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: id}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, role)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: 99}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
