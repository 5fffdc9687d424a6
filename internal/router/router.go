package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"vidsum-backend/internal/handlers"
	"vidsum-backend/internal/middleware"
)

func New(
	apiKeyAuth *middleware.APIKeyAuth,
	rateLimiter *middleware.RateLimiter,
	videoHandler *handlers.VideoHandler,
	keyHandler *handlers.APIKeyHandler,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Timeout(60 * time.Minute))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Key Management (public) ────
		r.Route("/keys", func(r chi.Router) {
			r.Post("/", keyHandler.Create)
			r.Get("/", keyHandler.List)
			r.Delete("/{keyID}", keyHandler.Revoke)
		})

		// ──── Video Routes (API key required) ────
		r.Route("/videos", func(r chi.Router) {
			r.Use(apiKeyAuth.Middleware)
			r.Use(rateLimiter.Middleware)

			r.Post("/summarize", videoHandler.Summarize)
			r.Post("/translate", videoHandler.Translate)
			r.Get("/formats", videoHandler.Formats)

			r.Route("/{videoID}", func(r chi.Router) {
				r.Get("/transcript", videoHandler.GetTranscript)
				r.Get("/transcript/download", videoHandler.DownloadTranscript)
				r.Get("/summary", videoHandler.GetSummary)
				r.Get("/summary/download", videoHandler.DownloadSummary)
				r.Get("/translations", videoHandler.ListTranslations)
				r.Get("/translations/{language}/download", videoHandler.DownloadTranslation)
			})
		})
	})

	return r
}
