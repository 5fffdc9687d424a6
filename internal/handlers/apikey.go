package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"vidsum-backend/internal/models"
	"vidsum-backend/internal/repository"
)

type keyStore interface {
	Create(ctx context.Context, ownerUserID, name string, expiresInDays int) (*models.APIKey, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]*models.APIKey, error)
	Revoke(ctx context.Context, id primitive.ObjectID) error
}

type APIKeyHandler struct {
	keys          keyStore
	maxExpiryDays int
	log           *logrus.Logger
}

func NewAPIKeyHandler(keys keyStore, maxExpiryDays int, log *logrus.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, maxExpiryDays: maxExpiryDays, log: log}
}

type createKeyRequest struct {
	OwnerUserID   string `json:"owner_user_id"`
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.OwnerUserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "owner_user_id is required", r))
		return
	}
	if req.ExpiresInDays <= 0 || req.ExpiresInDays > h.maxExpiryDays {
		req.ExpiresInDays = h.maxExpiryDays
	}

	key, err := h.keys.Create(r.Context(), req.OwnerUserID, req.Name, req.ExpiresInDays)
	if err != nil {
		h.log.WithError(err).Error("failed to create api key")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create API key", r))
		return
	}

	writeJSON(w, http.StatusCreated, key)
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "owner query parameter is required", r))
		return
	}

	keys, err := h.keys.ListByOwner(r.Context(), owner)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list API keys", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "keyID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid key ID", r))
		return
	}

	if err := h.keys.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "API key not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to revoke API key", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": true})
}
