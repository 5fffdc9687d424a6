package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"vidsum-backend/internal/config"
	"vidsum-backend/internal/database"
	"vidsum-backend/internal/handlers"
	"vidsum-backend/internal/logger"
	"vidsum-backend/internal/middleware"
	"vidsum-backend/internal/repository"
	"vidsum-backend/internal/router"
	"vidsum-backend/internal/services"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log := logger.New(cfg.Env)
	log.Info("starting vidsum backend")

	// ──── Step 2: Initialize MongoDB ────
	db, closeMongo, err := database.NewMongoDatabase(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.WithError(err).Fatal("mongodb connection failed")
	}
	defer closeMongo()
	if err := database.EnsureIndexes(db); err != nil {
		log.WithError(err).Fatal("mongodb index creation failed")
	}
	log.Info("mongodb connected")

	// ──── Step 3: Initialize Redis (optional) ────
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, falling back to in-memory rate limiting")
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("redis connected")
		}
	}

	// ──── Initialize Repositories ────
	videoRepo := repository.NewVideoRepo(db)
	transcriptRepo := repository.NewTranscriptRepo(db)
	summaryRepo := repository.NewSummaryRepo(db)
	translationRepo := repository.NewTranslationRepo(db)
	apiKeyRepo := repository.NewAPIKeyRepo(db)

	// ──── Step 4: Initialize Gemini Client ────
	generator, err := services.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.WithError(err).Fatal("gemini client initialization failed")
	}
	defer generator.Close()
	log.Info("gemini client initialized")

	// ──── Initialize Services ────
	youtubeService := services.NewYouTubeService(log)
	acquirer := services.NewMediaAcquirer(youtubeService, cfg.TempDir, log)
	whisperClient := services.NewWhisperClient(cfg.WhisperBaseURL, cfg.WhisperAPIKey, cfg.WhisperModel, log)
	transcriber := services.NewTranscriber(whisperClient, cfg.StrictTranscription, log)
	engine := services.NewGenerationEngine(generator, cfg.SummaryChunkChars, cfg.TranslateChunkChars, log)

	pipeline := services.NewPipeline(
		videoRepo,
		transcriptRepo,
		summaryRepo,
		translationRepo,
		acquirer,
		transcriber,
		engine,
		youtubeService,
		youtubeService,
		services.PipelineOptions{
			PreferredQuality:     cfg.PreferredQuality,
			ChunkDurationSeconds: cfg.ChunkDurationSeconds,
			CaptionsFirst:        cfg.CaptionsFirst,
			StageTimeout:         time.Duration(cfg.StageTimeoutSeconds) * time.Second,
		},
		log,
	)

	// ──── Initialize Handlers & Middleware ────
	videoHandler := handlers.NewVideoHandler(pipeline, transcriptRepo, summaryRepo, translationRepo, youtubeService, apiKeyRepo, log)
	keyHandler := handlers.NewAPIKeyHandler(apiKeyRepo, cfg.KeyExpiryDaysMax, log)
	apiKeyAuth := middleware.NewAPIKeyAuth(apiKeyRepo)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerHour, time.Hour, redisClient)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(apiKeyAuth, rateLimiter, videoHandler, keyHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.WithField("port", cfg.Port).Info("vidsum backend ready")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("server error")
	}
}
