package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is one fixed-window budget: at most Limit hits per Window for each
// subject, counted under keys prefixed with Prefix.
type Policy struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// Enabled reports whether the policy enforces anything.
func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// Limiter enforces fixed-window policies using Redis counters.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

func key(p Policy, subject string) string {
	return p.Prefix + ":" + strings.ToLower(strings.TrimSpace(subject))
}

// Check reports [ErrRateLimited] when subject has exhausted its budget
// under p. It does not count as a hit.
func (l *Limiter) Check(ctx context.Context, p Policy, subject string) error {
	if !p.Enabled() || subject == "" {
		return nil
	}
	count, err := l.redis.Get(ctx, key(p, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(p.Limit) {
		return ErrRateLimited
	}
	return nil
}

// Hit records one hit for subject and returns [ErrRateLimited] once the
// count exceeds the limit.
func (l *Limiter) Hit(ctx context.Context, p Policy, subject string) error {
	if !p.Enabled() || subject == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, key(p, subject), p.Window)
	if err != nil {
		return err
	}
	if count > int64(p.Limit) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counters of the given subjects under p.
func (l *Limiter) Reset(ctx context.Context, p Policy, subjects ...string) error {
	keys := make([]string, 0, len(subjects))
	for _, s := range subjects {
		if s != "" {
			keys = append(keys, key(p, s))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for subject under p.
func (l *Limiter) Attempts(ctx context.Context, p Policy, subject string) (int, error) {
	count, err := l.redis.Get(ctx, key(p, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// incrementWithTTL seeds the window counter and bumps it in one MULTI, so a
// counter never exists without its expiry. SET NX only succeeds on the first
// hit of a window; INCR keeps the TTL it set.
func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, ttl)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}
