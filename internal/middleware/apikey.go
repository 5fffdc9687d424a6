package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"vidsum-backend/internal/models"
)

type contextKey string

const APIKeyCtxKey contextKey = "api_key"

// KeyValidator checks an opaque token and returns the key record it belongs
// to, or (nil, nil) when the token is unknown, revoked, or expired.
type KeyValidator interface {
	Validate(ctx context.Context, token string) (*models.APIKey, error)
}

type APIKeyAuth struct {
	keys KeyValidator
}

func NewAPIKeyAuth(keys KeyValidator) *APIKeyAuth {
	return &APIKeyAuth{keys: keys}
}

// Middleware validates the x-api-key header and attaches the key record to
// the request context.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("x-api-key")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing x-api-key header", r)
			return
		}

		key, err := a.keys.Validate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Could not validate API key", r)
			return
		}
		if key == nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired API key", r)
			return
		}

		ctx := context.WithValue(r.Context(), APIKeyCtxKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAPIKey extracts the authenticated key record from the request context.
func GetAPIKey(ctx context.Context) *models.APIKey {
	key, _ := ctx.Value(APIKeyCtxKey).(*models.APIKey)
	return key
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
