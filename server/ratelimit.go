// Copyright 2025 AI Farm
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"aifarm/backend/shared/logger"
)

// rateLimitEntry tracks request counts for in-memory rate limiting
// within a fixed one-minute window.
type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimiter limits requests per user per minute. With Redis
// configured it uses a sliding window over a sorted set, shared across
// instances; without Redis (or when Redis errors) it falls back to an
// in-memory fixed window, failing open rather than blocking traffic.
type RateLimiter struct {
	rdb   *redis.Client // nil means memory-only
	limit int
	log   *logger.Logger

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

// NewRateLimiter creates a limiter. redisURL may be empty for
// memory-only operation; an unreachable Redis degrades to memory with
// a warning instead of failing startup.
func NewRateLimiter(redisURL string, limitPerMinute int, log *logger.Logger) *RateLimiter {
	l := &RateLimiter{
		limit:   limitPerMinute,
		log:     log,
		entries: make(map[string]*rateLimitEntry),
	}

	if redisURL == "" {
		return l
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn("", "", "invalid REDIS_URL, using in-memory rate limiting", map[string]interface{}{
			"error": err.Error(),
		})
		return l
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("", "", "Redis unreachable, using in-memory rate limiting", map[string]interface{}{
			"error": err.Error(),
		})
		return l
	}

	l.rdb = rdb
	return l
}

// Allow reports whether one more request from key fits the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) error {
	if l.limit <= 0 {
		return nil
	}
	if l.rdb != nil {
		return l.allowRedis(ctx, key)
	}
	return l.allowMemory(key)
}

// allowRedis implements a sliding window over a sorted set of request
// timestamps.
func (l *RateLimiter) allowRedis(ctx context.Context, key string) error {
	now := time.Now()
	rkey := fmt.Sprintf("ratelimit:%s", key)

	pipe := l.rdb.Pipeline()

	// Drop timestamps older than one minute, count the rest, record
	// this request, and keep the key from lingering forever.
	minScore := now.Add(-time.Minute).UnixNano()
	pipe.ZRemRangeByScore(ctx, rkey, "0", fmt.Sprintf("%d", minScore))
	countCmd := pipe.ZCard(ctx, rkey)
	pipe.ZAdd(ctx, rkey, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, rkey, 2*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open on Redis errors.
		l.log.Warn("", "", "rate limit check failed, failing open", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil
	}

	if count := countCmd.Val(); count >= int64(l.limit) {
		return fmt.Errorf("rate limit exceeded: %d requests/minute (limit: %d)", count+1, l.limit)
	}
	return nil
}

// allowMemory implements a fixed one-minute window per key.
func (l *RateLimiter) allowMemory(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.entries[key]
	if !ok || now.After(entry.resetTime) {
		l.entries[key] = &rateLimitEntry{count: 1, resetTime: now.Add(time.Minute)}
		return nil
	}

	entry.count++
	if entry.count > l.limit {
		return fmt.Errorf("rate limit exceeded: %d requests/minute (limit: %d)", entry.count, l.limit)
	}
	return nil
}

// Close releases the Redis connection if one was established.
func (l *RateLimiter) Close() error {
	if l.rdb != nil {
		return l.rdb.Close()
	}
	return nil
}

// rateLimitMiddleware rejects callers over their per-minute budget.
// Runs after auth so the key is the authenticated user id.
func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.limiter.Allow(r.Context(), userIDFrom(r)); err != nil {
			promRateLimited.Inc()
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
