package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether a request for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RedisRateLimiter implements a sliding window shared by every API instance.
type RedisRateLimiter struct {
	client *redis.Client
	rate   int
	window time.Duration
	prefix string
}

func NewRedisRateLimiter(client *redis.Client, rate int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		rate:   rate,
		window: window,
		prefix: "ratelimit:",
	}
}

// allow records the request and reports whether it fits in the window.
func (rl *RedisRateLimiter) allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - int64(rl.window)
	redisKey := rl.prefix + key

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now), Member: now})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return countCmd.Val() <= int64(rl.rate), nil
}

func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, rl.prefix+key).Err()
}

// LocalRateLimiter keeps one token bucket per key in process memory.
type LocalRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*localEntry
	done     chan struct{}
	stopOnce sync.Once
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalRateLimiter allows perMinute requests per key and minute with a
// burst of the same size.
func NewLocalRateLimiter(perMinute int) *LocalRateLimiter {
	rl := &LocalRateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		limiters: make(map[string]*localEntry),
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *LocalRateLimiter) Allow(_ context.Context, key string) bool {
	rl.mu.Lock()
	e, ok := rl.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = time.Now()
	rl.mu.Unlock()

	return e.limiter.Allow()
}

func (rl *LocalRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-10 * time.Minute))
		case <-rl.done:
			return
		}
	}
}

// cleanup drops keys idle since cutoff.
func (rl *LocalRateLimiter) cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *LocalRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// HybridRateLimiter uses Redis when configured and falls back to the local
// limiter when Redis is absent or failing.
type HybridRateLimiter struct {
	redis *RedisRateLimiter
	local *LocalRateLimiter
}

func NewHybridRateLimiter(redisClient *redis.Client, perMinute int) *HybridRateLimiter {
	var redisRL *RedisRateLimiter
	if redisClient != nil {
		redisRL = NewRedisRateLimiter(redisClient, perMinute, time.Minute)
	}
	return &HybridRateLimiter{
		redis: redisRL,
		local: NewLocalRateLimiter(perMinute),
	}
}

func (hl *HybridRateLimiter) Allow(ctx context.Context, key string) bool {
	if hl.redis != nil {
		allowed, err := hl.redis.allow(ctx, key)
		if err == nil {
			return allowed
		}
		logger.FromContext(ctx).Warn("redis rate limiter unavailable, using local limiter", "error", err)
	}
	return hl.local.Allow(ctx, key)
}

func (hl *HybridRateLimiter) Stop() {
	hl.local.Stop()
}

// RateLimit throttles requests per owner, or per remote address before
// authentication.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if userID, ok := GetUserID(r.Context()); ok {
				key = userID.String()
			}

			if !limiter.Allow(r.Context(), key) {
				metrics.RecordRateLimitHit("api")
				w.Header().Set("Retry-After", "60")
				apperror.WriteJSON(w, r, apperror.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
