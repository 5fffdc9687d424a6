package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vidsum-backend/internal/models"
)

type fakeValidator struct {
	keys map[string]*models.APIKey
}

func (f *fakeValidator) Validate(_ context.Context, token string) (*models.APIKey, error) {
	return f.keys[token], nil
}

func okHandler(t *testing.T, sawKey **models.APIKey) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawKey = GetAPIKey(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	stored := &models.APIKey{Key: "abc123", OwnerUserID: "user-1", IsActive: true}
	auth := NewAPIKeyAuth(&fakeValidator{keys: map[string]*models.APIKey{"abc123": stored}})

	var sawKey *models.APIKey
	handler := auth.Middleware(okHandler(t, &sawKey))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/x/summary", nil)
	req.Header.Set("x-api-key", "abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if sawKey == nil || sawKey.OwnerUserID != "user-1" {
		t.Errorf("key not attached to context: %+v", sawKey)
	}
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	auth := NewAPIKeyAuth(&fakeValidator{keys: map[string]*models.APIKey{}})

	var sawKey *models.APIKey
	handler := auth.Middleware(okHandler(t, &sawKey))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/x/summary", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"]["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %v, want UNAUTHORIZED", body["error"]["code"])
	}
}

func TestAPIKeyAuth_UnknownKey(t *testing.T) {
	auth := NewAPIKeyAuth(&fakeValidator{keys: map[string]*models.APIKey{}})

	var sawKey *models.APIKey
	handler := auth.Middleware(okHandler(t, &sawKey))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/x/summary", nil)
	req.Header.Set("x-api-key", "nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if sawKey != nil {
		t.Error("handler ran for unknown key")
	}
}

func TestRateLimiter_LocalWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour, nil)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	key := &models.APIKey{Key: "limited-key"}
	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/summarize", nil)
		req = req.WithContext(context.WithValue(req.Context(), APIKeyCtxKey, key))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := do(); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("over-limit request: status = %d, want 429", code)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour, nil)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/summarize", nil)
		req = req.WithContext(context.WithValue(req.Context(), APIKeyCtxKey, &models.APIKey{Key: token}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("key-a"); code != http.StatusOK {
		t.Fatalf("key-a first: status = %d", code)
	}
	if code := do("key-a"); code != http.StatusTooManyRequests {
		t.Fatalf("key-a second: status = %d, want 429", code)
	}
	if code := do("key-b"); code != http.StatusOK {
		t.Fatalf("key-b first: status = %d, want 200", code)
	}
}
