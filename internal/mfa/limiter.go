package mfa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlas-erp/atlas-access/internal/shared"
)

const (
	limiterMaxAttempts = 5
	limiterCooldown    = time.Minute
)

// RedisLimiter counts failed code attempts per user in Redis, with a
// cooldown that starts at the first failure.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) key(userID int64) string {
	return "mfa:att:" + strconv.FormatInt(userID, 10)
}

// Check fails with ErrTooManyAttempts once the limit is reached.
func (l *RedisLimiter) Check(ctx context.Context, userID int64) error {
	count, err := l.client.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("mfa: limiter check: %w", err)
	}
	if count >= limiterMaxAttempts {
		return shared.ErrTooManyAttempts
	}
	return nil
}

// RecordFailure increments the counter, arming the cooldown on first failure.
func (l *RedisLimiter) RecordFailure(ctx context.Context, userID int64) error {
	count, err := l.client.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("mfa: limiter incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, l.key(userID), limiterCooldown).Err(); err != nil {
			return fmt.Errorf("mfa: limiter expire: %w", err)
		}
	}
	if count >= limiterMaxAttempts {
		return shared.ErrTooManyAttempts
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *RedisLimiter) Reset(ctx context.Context, userID int64) error {
	if err := l.client.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("mfa: limiter reset: %w", err)
	}
	return nil
}

var _ Limiter = (*RedisLimiter)(nil)
