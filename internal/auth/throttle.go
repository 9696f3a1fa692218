package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eaxy/eaxy/internal/shared"
)

// Throttle counts failed logins per identity in Redis. A nil Throttle is a
// no-op.
type Throttle struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

// NewThrottle returns a throttle, or nil when client is nil or maxAttempts < 1.
func NewThrottle(client *redis.Client, maxAttempts int, window time.Duration) *Throttle {
	if client == nil || maxAttempts < 1 {
		return nil
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Throttle{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Locked reports whether the identity reached the failure limit.
func (t *Throttle) Locked(ctx context.Context, identity string) (bool, error) {
	if t == nil {
		return false, nil
	}
	n, err := t.client.Get(ctx, t.key(identity)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= t.maxAttempts, nil
}

// Fail records a failed attempt. The window starts at the first failure.
func (t *Throttle) Fail(ctx context.Context, identity string) error {
	if t == nil {
		return nil
	}
	key := t.key(identity)
	n, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return t.client.Expire(ctx, key, t.window).Err()
	}
	return nil
}

// Reset clears the failure counter after a successful login.
func (t *Throttle) Reset(ctx context.Context, identity string) error {
	if t == nil {
		return nil
	}
	return t.client.Del(ctx, t.key(identity)).Err()
}

func (t *Throttle) key(identity string) string {
	return shared.LoginFailuresKey(FoldIdentity(identity))
}
