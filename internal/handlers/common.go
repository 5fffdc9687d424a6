package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"vidsum-backend/internal/models"
	"vidsum-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// writePipelineError maps the service error taxonomy onto HTTP statuses. The
// failed stage, when known, becomes part of the error code.
func writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch {
	case errors.Is(err, services.ErrInvalidURL):
		status, code = http.StatusBadRequest, "INVALID_URL"
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, services.ErrNoStreamAvailable):
		status, code = http.StatusUnprocessableEntity, "NO_STREAM_AVAILABLE"
	case errors.Is(err, services.ErrDownloadFailed):
		status, code = http.StatusBadGateway, "DOWNLOAD_FAILED"
	case errors.Is(err, services.ErrTranscodeFailed):
		status, code = http.StatusInternalServerError, "TRANSCODE_FAILED"
	case errors.Is(err, services.ErrTranscriptionFailed):
		status, code = http.StatusBadGateway, "TRANSCRIPTION_FAILED"
	case errors.Is(err, services.ErrGenerationFailed):
		status, code = http.StatusBadGateway, "GENERATION_FAILED"
	}

	// StageError's text already names the failed stage.
	writeJSON(w, status, errorResp(code, err.Error(), r))
}
