package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlas-erp/atlas-access/internal/shared"
)

const (
	throttleMaxAttempts = 10
	throttleCooldown    = time.Minute
)

// Throttle limits failed login attempts per account.
type Throttle interface {
	Check(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

// RedisThrottle counts failed logins per email in Redis. The counter is keyed
// on the submitted email, not the account, so unknown addresses are throttled
// the same as real ones and reveal nothing.
type RedisThrottle struct {
	client *redis.Client
}

// NewRedisThrottle constructs a RedisThrottle.
func NewRedisThrottle(client *redis.Client) *RedisThrottle {
	return &RedisThrottle{client: client}
}

func (t *RedisThrottle) key(email string) string {
	return "login:att:" + strings.ToLower(strings.TrimSpace(email))
}

// Check fails with ErrTooManyAttempts once the limit is reached.
func (t *RedisThrottle) Check(ctx context.Context, email string) error {
	count, err := t.client.Get(ctx, t.key(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("auth: throttle check: %w", err)
	}
	if count >= throttleMaxAttempts {
		return shared.ErrTooManyAttempts
	}
	return nil
}

// RecordFailure increments the counter, arming the cooldown on first failure.
func (t *RedisThrottle) RecordFailure(ctx context.Context, email string) error {
	count, err := t.client.Incr(ctx, t.key(email)).Result()
	if err != nil {
		return fmt.Errorf("auth: throttle incr: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, t.key(email), throttleCooldown).Err(); err != nil {
			return fmt.Errorf("auth: throttle expire: %w", err)
		}
	}
	if count >= throttleMaxAttempts {
		return shared.ErrTooManyAttempts
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *RedisThrottle) Reset(ctx context.Context, email string) error {
	if err := t.client.Del(ctx, t.key(email)).Err(); err != nil {
		return fmt.Errorf("auth: throttle reset: %w", err)
	}
	return nil
}

var _ Throttle = (*RedisThrottle)(nil)
