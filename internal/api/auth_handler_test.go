package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennwick/docshelf/internal/api"
	"github.com/fennwick/docshelf/internal/config"
	"github.com/fennwick/docshelf/internal/mocks"
	"github.com/fennwick/docshelf/internal/service/auth"
)

func newAuthRouter(t *testing.T) (http.Handler, *mocks.MemUserStore) {
	t.Helper()

	users := mocks.NewMemUserStore()
	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-secret-key-that-is-32-chars!",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	handler := api.NewAuthHandler(users, jwtService, auth.NewBcryptVerifier())

	r := chi.NewRouter()
	r.Post("/api/auth/register", handler.Register)
	r.Post("/api/auth/login", handler.Login)
	return r, users
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("creates a user and returns a token", func(t *testing.T) {
		t.Parallel()
		router, _ := newAuthRouter(t)

		rec := postJSON(t, router, "/api/auth/register", api.RegisterRequest{
			Email:    "reader@example.com",
			Password: "a-long-enough-password",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp api.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		t.Parallel()
		router, _ := newAuthRouter(t)

		req := api.RegisterRequest{Email: "dupe@example.com", Password: "a-long-enough-password"}
		require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/auth/register", req).Code)
		assert.Equal(t, http.StatusConflict, postJSON(t, router, "/api/auth/register", req).Code)
	})

	t.Run("rejects short password", func(t *testing.T) {
		t.Parallel()
		router, _ := newAuthRouter(t)

		rec := postJSON(t, router, "/api/auth/register", api.RegisterRequest{
			Email:    "reader@example.com",
			Password: "short",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()

	router, _ := newAuthRouter(t)
	register := api.RegisterRequest{Email: "login@example.com", Password: "a-long-enough-password"}
	require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/auth/register", register).Code)

	t.Run("valid credentials", func(t *testing.T) {
		rec := postJSON(t, router, "/api/auth/login", api.LoginRequest{
			Email:    register.Email,
			Password: register.Password,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp api.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := postJSON(t, router, "/api/auth/login", api.LoginRequest{
			Email:    register.Email,
			Password: "not-the-password-at-all",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := postJSON(t, router, "/api/auth/login", api.LoginRequest{
			Email:    "nobody@example.com",
			Password: "a-long-enough-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
