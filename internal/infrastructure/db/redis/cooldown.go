package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// CooldownLimiter throttles magic link issuance per destination, backed by
// Redis. Keys are cooldown:<truncated sha256 of the destination>; the raw
// email or phone never reaches Redis.
type CooldownLimiter struct {
	client *redis.Client
}

// NewCooldownLimiter creates a CooldownLimiter wrapping the given Redis client.
func NewCooldownLimiter(client *redis.Client) *CooldownLimiter {
	return &CooldownLimiter{client: client}
}

// Reserve claims the destination's issuance slot for the window. SET NX makes
// claim and check one atomic step: it returns false while a previous claim is
// still live, true once the window has lapsed.
func (l *CooldownLimiter) Reserve(ctx context.Context, destination string, window time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(destination), "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown reserve: %w", err)
	}
	return ok, nil
}

// Release frees the destination's slot. Called once its pending link is
// redeemed, so a fresh link can be requested without waiting out the window.
func (l *CooldownLimiter) Release(ctx context.Context, destination string) error {
	if err := l.client.Del(ctx, l.key(destination)).Err(); err != nil {
		return fmt.Errorf("cooldown release: %w", err)
	}
	return nil
}

func (l *CooldownLimiter) key(destination string) string {
	return "cooldown:" + domain.HashSensitive(destination)
}
