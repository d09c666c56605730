package api

import (
	"net/http"
	"strconv"

	"github.com/fennwick/docshelf/internal/api/shared"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// getUserIDFromContext extracts the authenticated user's UUID from the
// request context, placed there by the authentication middleware.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// getPathUUID extracts and parses a UUID path parameter. It writes a 400
// response itself on failure and reports whether extraction succeeded.
func getPathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, bool) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, paramName+" is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, paramName+" has invalid format")
		return uuid.Nil, false
	}

	return id, true
}

// requireUserID extracts the authenticated user ID, writing a 401 response
// if the context carries none.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
	}
	return userID, ok
}

// getPagination reads limit/offset query parameters, tolerating absence and
// garbage (the service layer clamps the final values).
func getPagination(r *http.Request) (limit, offset int) {
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		offset = v
	}
	return limit, offset
}
