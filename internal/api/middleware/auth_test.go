package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennwick/docshelf/internal/api/middleware"
	"github.com/fennwick/docshelf/internal/config"
	"github.com/fennwick/docshelf/internal/service/auth"
)

func newJWTService(t *testing.T) auth.JWTService {
	t.Helper()

	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-secret-key-that-is-32-chars!",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)
	return svc
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	jwtService := newJWTService(t)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	var gotUserID uuid.UUID
	var gotOK bool
	protected := authMiddleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, gotOK = middleware.GetUserID(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token passes user ID through", func(t *testing.T) {
		userID := uuid.New()
		token, err := jwtService.GenerateToken(context.Background(), userID)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, gotOK)
		assert.Equal(t, userID, gotUserID)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
