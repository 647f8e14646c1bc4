package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/edalik/electronics-store-user-service/pkg/errors"
)

func TestHeaderResolver(t *testing.T) {
	t.Run("reads the User-Id header", func(t *testing.T) {
		userID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Id", userID.String())

		identity, err := HeaderResolver{}.Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, userID, identity.UserID)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		_, err := HeaderResolver{}.Resolve(req)
		assert.ErrorIs(t, err, pkgerrors.ErrUnauthenticated)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Id", "not-a-uuid")

		_, err := HeaderResolver{}.Resolve(req)
		assert.ErrorIs(t, err, pkgerrors.ErrUnauthenticated)
	})
}

func TestContextResolver(t *testing.T) {
	t.Run("reads identity from context", func(t *testing.T) {
		want := Identity{UserID: uuid.New(), PreferredName: "alice123"}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), want))

		got, err := ContextResolver{}.Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("no identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		_, err := ContextResolver{}.Resolve(req)
		assert.ErrorIs(t, err, pkgerrors.ErrUnauthenticated)
	})
}

func TestMiddleware(t *testing.T) {
	const secret = "test-secret"
	userID := uuid.New()

	sign := func(t *testing.T, claims jwt.MapClaims, key string) string {
		t.Helper()
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return signed
	}

	handler := func(captured *Identity) http.Handler {
		return Middleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := IdentityFromContext(r.Context()); ok {
				*captured = id
			}
			w.WriteHeader(http.StatusOK)
		}))
	}

	t.Run("valid token attaches identity", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{
			"sub":                userID.String(),
			"preferred_username": "alice123",
			"email":              "alice@example.com",
			"exp":                time.Now().Add(time.Hour).Unix(),
		}, secret)

		var captured Identity
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(&captured).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, captured.UserID)
		assert.Equal(t, "alice123", captured.PreferredName)
		assert.Equal(t, "alice@example.com", captured.Email)
	})

	t.Run("missing header", func(t *testing.T) {
		var captured Identity
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler(&captured).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		var captured Identity
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler(&captured).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signature", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{"sub": userID.String()}, "other-secret")

		var captured Identity
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(&captured).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{
			"sub": userID.String(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		}, secret)

		var captured Identity
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(&captured).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-uuid subject", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(time.Hour).Unix(),
		}, secret)

		var captured Identity
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(&captured).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
