package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"vidsum-backend/internal/middleware"
	"vidsum-backend/internal/models"
	"vidsum-backend/internal/services"
)

type pipelineRunner interface {
	Summarize(ctx context.Context, url string, opts services.SummarizeOptions) (*services.SummarizeResult, error)
	Translate(ctx context.Context, url, targetLanguage string) (*services.TranslateResult, error)
	TranslateByVideoID(ctx context.Context, videoID, targetLanguage string) (*services.TranslateResult, error)
}

type transcriptReader interface {
	Get(ctx context.Context, videoID, language string) (*models.Transcript, error)
}

type summaryReader interface {
	Get(ctx context.Context, videoID, language string) (*models.Summary, error)
}

type translationLister interface {
	GetByVideo(ctx context.Context, videoID, sourceLanguage, targetLanguage string) (*models.Translation, error)
	ListByTranscript(ctx context.Context, transcriptID primitive.ObjectID) ([]*models.Translation, error)
}

type formatLister interface {
	ListFormats(ctx context.Context, videoID string) (services.VideoMetadata, []services.StreamFormat, error)
}

type usageRecorder interface {
	IncrementUsage(ctx context.Context, id primitive.ObjectID, processType string) error
}

type VideoHandler struct {
	pipeline     pipelineRunner
	transcripts  transcriptReader
	summaries    summaryReader
	translations translationLister
	formats      formatLister
	usage        usageRecorder
	log          *logrus.Logger
}

func NewVideoHandler(
	pipeline pipelineRunner,
	transcripts transcriptReader,
	summaries summaryReader,
	translations translationLister,
	formats formatLister,
	usage usageRecorder,
	log *logrus.Logger,
) *VideoHandler {
	return &VideoHandler{
		pipeline:     pipeline,
		transcripts:  transcripts,
		summaries:    summaries,
		translations: translations,
		formats:      formats,
		usage:        usage,
		log:          log,
	}
}

type summarizeRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

func (h *VideoHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "url is required", r))
		return
	}

	opts := services.SummarizeOptions{Quality: req.Quality, Force: req.Force}
	if key := middleware.GetAPIKey(r.Context()); key != nil {
		opts.OwnerUserID = key.OwnerUserID
	}

	res, err := h.pipeline.Summarize(r.Context(), req.URL, opts)
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	h.recordUsage(r, "summarize")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"video":   res.Video,
		"summary": res.Summary,
		"cached":  res.Cached,
	})
}

type translateRequest struct {
	URL            string `json:"url,omitempty"`
	VideoID        string `json:"video_id,omitempty"`
	TargetLanguage string `json:"target_language"`
}

func (h *VideoHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.TargetLanguage == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "target_language is required", r))
		return
	}
	if req.URL == "" && req.VideoID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "url or video_id is required", r))
		return
	}

	var (
		res *services.TranslateResult
		err error
	)
	if req.VideoID != "" {
		res, err = h.pipeline.TranslateByVideoID(r.Context(), req.VideoID, req.TargetLanguage)
	} else {
		res, err = h.pipeline.Translate(r.Context(), req.URL, req.TargetLanguage)
	}
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	h.recordUsage(r, "translate")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"video":       res.Video,
		"translation": res.Translation,
		"cached":      res.Cached,
	})
}

func (h *VideoHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	language := languageParam(r)

	transcript, err := h.transcripts.Get(r.Context(), videoID, language)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load transcript", r))
		return
	}
	if transcript == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Transcript not found", r))
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

func (h *VideoHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	language := languageParam(r)

	summary, err := h.summaries.Get(r.Context(), videoID, language)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load summary", r))
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Summary not found", r))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *VideoHandler) ListTranslations(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	language := languageParam(r)

	transcript, err := h.transcripts.Get(r.Context(), videoID, language)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load transcript", r))
		return
	}
	if transcript == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Transcript not found", r))
		return
	}

	translations, err := h.translations.ListByTranscript(r.Context(), transcript.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load translations", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"video_id":     videoID,
		"translations": translations,
		"count":        len(translations),
	})
}

// Formats lists the available streams for a URL without downloading anything.
func (h *VideoHandler) Formats(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "url query parameter is required", r))
		return
	}

	videoID, err := services.ResolveVideoID(url)
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	meta, formats, err := h.formats.ListFormats(r.Context(), videoID)
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"video_id": meta.VideoID,
		"title":    meta.Title,
		"author":   meta.Author,
		"formats":  formats,
	})
}

func (h *VideoHandler) DownloadTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	language := languageParam(r)

	transcript, err := h.transcripts.Get(r.Context(), videoID, language)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load transcript", r))
		return
	}
	if transcript == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Transcript not found", r))
		return
	}
	writeAttachment(w, fmt.Sprintf("%s_transcript.txt", videoID), transcript.Text)
}

func (h *VideoHandler) DownloadSummary(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	language := languageParam(r)

	summary, err := h.summaries.Get(r.Context(), videoID, language)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load summary", r))
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Summary not found", r))
		return
	}
	writeAttachment(w, fmt.Sprintf("%s_summary.txt", videoID), summary.Text)
}

func (h *VideoHandler) DownloadTranslation(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	targetLanguage := chi.URLParam(r, "language")

	translation, err := h.translations.GetByVideo(r.Context(), videoID, languageParam(r), targetLanguage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load translation", r))
		return
	}
	if translation == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Translation not found", r))
		return
	}
	writeAttachment(w, fmt.Sprintf("%s_%s_translation.txt", videoID, targetLanguage), translation.Text)
}

func (h *VideoHandler) recordUsage(r *http.Request, processType string) {
	key := middleware.GetAPIKey(r.Context())
	if key == nil || h.usage == nil {
		return
	}
	if err := h.usage.IncrementUsage(r.Context(), key.ID, processType); err != nil {
		h.log.WithError(err).Warn("failed to record key usage")
	}
}

func languageParam(r *http.Request) string {
	if lang := r.URL.Query().Get("language"); lang != "" {
		return lang
	}
	return "en"
}

func writeAttachment(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
