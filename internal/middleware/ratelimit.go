package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type visitor struct {
	count       int
	windowStart time.Time
}

// RateLimiter enforces a fixed-window request quota per API key. With a Redis
// client the window is shared across instances; without one it falls back to
// an in-process counter map. Redis errors fail open.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	redis    *redis.Client
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration, redisClient *redis.Client) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		redis:    redisClient,
		limit:    limit,
		window:   window,
	}

	if redisClient == nil {
		go func() {
			for {
				time.Sleep(window)
				rl.mu.Lock()
				for key, v := range rl.visitors {
					if time.Since(v.windowStart) > window {
						delete(rl.visitors, key)
					}
				}
				rl.mu.Unlock()
			}
		}()
	}

	return rl
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if apiKey := GetAPIKey(r.Context()); apiKey != nil {
			key = apiKey.Key
		}

		allowed := true
		if rl.redis != nil {
			allowed = rl.allowRedis(r, key)
		} else {
			allowed = rl.allowLocal(key)
		}

		if !allowed {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allowLocal(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists || time.Since(v.windowStart) > rl.window {
		rl.visitors[key] = &visitor{count: 1, windowStart: time.Now()}
		return true
	}

	v.count++
	return v.count <= rl.limit
}

func (rl *RateLimiter) allowRedis(r *http.Request, key string) bool {
	ctx := r.Context()
	redisKey := "ratelimit:" + key

	n, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true
	}
	if n == 1 {
		rl.redis.Expire(ctx, redisKey, rl.window)
	}
	return n <= int64(rl.limit)
}
