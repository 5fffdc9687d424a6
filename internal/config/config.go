package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// MongoDB
	MongoURI string
	MongoDB  string

	// Redis (optional; rate limiter falls back to in-memory when empty)
	RedisURL string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Whisper-compatible speech-to-text endpoint
	WhisperBaseURL string
	WhisperAPIKey  string
	WhisperModel   string

	// Pipeline
	TempDir              string
	ChunkDurationSeconds int
	PreferredQuality     string
	SummaryChunkChars    int
	TranslateChunkChars  int
	CaptionsFirst        bool
	StrictTranscription  bool
	StageTimeoutSeconds  int

	// API keys
	RateLimitPerHour int
	KeyExpiryDaysMax int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port: getEnvOrDefault("PORT", "8080"),
		Env:  getEnvOrDefault("ENV", "development"),

		MongoURI: mustGetEnv("MONGO_URI"),
		MongoDB:  getEnvOrDefault("MONGO_DB", "youtube_summarizer"),

		RedisURL: getEnvOrDefault("REDIS_URL", ""),

		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		WhisperBaseURL: mustGetEnv("WHISPER_BASE_URL"),
		WhisperAPIKey:  mustGetEnv("WHISPER_API_KEY"),
		WhisperModel:   getEnvOrDefault("WHISPER_MODEL", "whisper-1"),

		TempDir:              getEnvOrDefault("TEMP_DIR", os.TempDir()),
		ChunkDurationSeconds: getEnvAsIntOrDefault("CHUNK_DURATION_SECONDS", 600),
		PreferredQuality:     getEnvOrDefault("PREFERRED_QUALITY", "highest"),
		SummaryChunkChars:    getEnvAsIntOrDefault("SUMMARY_CHUNK_CHARS", 8000),
		TranslateChunkChars:  getEnvAsIntOrDefault("TRANSLATE_CHUNK_CHARS", 12000),
		CaptionsFirst:        getEnvAsBoolOrDefault("CAPTIONS_FIRST", false),
		StrictTranscription:  getEnvAsBoolOrDefault("STRICT_TRANSCRIPTION", false),
		StageTimeoutSeconds:  getEnvAsIntOrDefault("STAGE_TIMEOUT_SECONDS", 900),

		RateLimitPerHour: getEnvAsIntOrDefault("RATE_LIMIT_PER_HOUR", 100),
		KeyExpiryDaysMax: getEnvAsIntOrDefault("KEY_EXPIRY_DAYS_MAX", 365),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
