package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/storefront/internal/config"
)

const (
	keyAuthBucket = "auth:%s:%s"
	keyCooldown   = "cooldown:%s"
)

// NewClient connects to redis when rate limiting is enabled. A nil client
// means every limiter in this package allows all calls.
func NewClient(cfg config.Config) (*redis.Client, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	}), nil
}

// AuthLimiter throttles credential endpoints per client address.
type AuthLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewAuthLimiter(cfg config.Config, client *redis.Client) (*AuthLimiter, error) {
	if client == nil {
		return nil, nil
	}
	limitCfg := cfg.RateLimit
	if limitCfg.AuthRate <= 0 || limitCfg.AuthBurst <= 0 {
		return nil, errors.New("auth rate limit must be positive")
	}
	return &AuthLimiter{
		bucket: NewTokenBucket(client),
		rate:   float64(limitCfg.AuthRate) / 60,
		burst:  limitCfg.AuthBurst,
	}, nil
}

func (l *AuthLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow spends one token from the (scope, client) bucket.
func (l *AuthLimiter) Allow(ctx context.Context, scope, clientKey string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyAuthBucket, strings.TrimSpace(scope), strings.TrimSpace(clientKey))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}

// Cooldown admits one action per key until ttl elapses.
type Cooldown struct {
	client *redis.Client
}

func NewCooldown(client *redis.Client) *Cooldown {
	if client == nil {
		return nil
	}
	return &Cooldown{client: client}
}

func (c *Cooldown) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if c == nil || c.client == nil {
		return true, nil
	}
	if key == "" {
		return false, errors.New("cooldown key is empty")
	}
	if ttl <= 0 {
		return true, nil
	}
	return c.client.SetNX(ctx, fmt.Sprintf(keyCooldown, key), uuid.NewString(), ttl).Result()
}
