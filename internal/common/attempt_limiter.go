package common

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter bounds repeated attempts per identity inside a rolling
// window. Checklist signing uses it to throttle password re-verification,
// keyed by the acting user's id.
type AttemptLimiter interface {
	// Allow records one attempt for the identity and reports whether it is
	// still within the configured budget.
	Allow(ctx context.Context, identity string) (bool, error)

	// Reset clears the identity's counter, typically after a success.
	Reset(ctx context.Context, identity string) error
}

// RedisAttemptLimiter is the shared-store implementation: counters survive
// restarts and are shared across processes.
type RedisAttemptLimiter struct {
	client      *redis.Client
	keyPrefix   string
	maxAttempts int
	window      time.Duration
}

func NewRedisAttemptLimiter(client *redis.Client, keyPrefix string, maxAttempts int, window time.Duration) *RedisAttemptLimiter {
	return &RedisAttemptLimiter{
		client:      client,
		keyPrefix:   keyPrefix,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *RedisAttemptLimiter) key(identity string) string {
	return fmt.Sprintf("%s:%s", l.keyPrefix, identity)
}

func (l *RedisAttemptLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := l.key(identity)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("attempt limiter incr failed: %w", err)
	}

	// First attempt of a fresh window starts the clock
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("attempt limiter expire failed: %w", err)
		}
	}

	return count <= int64(l.maxAttempts), nil
}

func (l *RedisAttemptLimiter) Reset(ctx context.Context, identity string) error {
	return l.client.Del(ctx, l.key(identity)).Err()
}

// MemoryAttemptLimiter is the single-process fallback used in tests and
// local development without Redis.
type MemoryAttemptLimiter struct {
	mu          sync.Mutex
	counts      map[string]int
	windowStart map[string]time.Time
	maxAttempts int
	window      time.Duration
}

func NewMemoryAttemptLimiter(maxAttempts int, window time.Duration) *MemoryAttemptLimiter {
	return &MemoryAttemptLimiter{
		counts:      make(map[string]int),
		windowStart: make(map[string]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *MemoryAttemptLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if start, ok := l.windowStart[identity]; !ok || now.Sub(start) > l.window {
		l.windowStart[identity] = now
		l.counts[identity] = 0
	}

	l.counts[identity]++
	return l.counts[identity] <= l.maxAttempts, nil
}

func (l *MemoryAttemptLimiter) Reset(ctx context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.counts, identity)
	delete(l.windowStart, identity)
	return nil
}
