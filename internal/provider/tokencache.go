package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
)

// tokenExpiryMargin is subtracted from the provider expiry so a cached token is
// never used in its last minute
const tokenExpiryMargin = 60 * time.Second

// TokenCache stores provider OAuth access tokens between requests.
// A cache failure is never fatal; the client re-authenticates.
type TokenCache interface {
	Get(ctx context.Context, p domain.Provider) (string, bool)
	Set(ctx context.Context, p domain.Provider, token string, expiresIn time.Duration)
	// Delete drops a token the provider no longer accepts
	Delete(ctx context.Context, p domain.Provider)
}

// RedisTokenCache shares tokens across instances
type RedisTokenCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisTokenCache(client *redis.Client, logger *zap.Logger) *RedisTokenCache {
	return &RedisTokenCache{client: client, logger: logger}
}

func (c *RedisTokenCache) Get(ctx context.Context, p domain.Provider) (string, bool) {
	token, err := c.client.Get(ctx, tokenKey(p)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger.Warn("Token cache read failed", zap.String("provider", string(p)), zap.Error(err))
		return "", false
	}
	return token, true
}

func (c *RedisTokenCache) Set(ctx context.Context, p domain.Provider, token string, expiresIn time.Duration) {
	ttl := expiresIn - tokenExpiryMargin
	if ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, tokenKey(p), token, ttl).Err(); err != nil {
		c.logger.Warn("Token cache write failed", zap.String("provider", string(p)), zap.Error(err))
	}
}

func (c *RedisTokenCache) Delete(ctx context.Context, p domain.Provider) {
	if err := c.client.Del(ctx, tokenKey(p)).Err(); err != nil {
		c.logger.Warn("Token cache delete failed", zap.String("provider", string(p)), zap.Error(err))
	}
}

func tokenKey(p domain.Provider) string {
	return fmt.Sprintf("payments:token:%s", p)
}

// NoopTokenCache is used when no Redis is configured
type NoopTokenCache struct{}

func (NoopTokenCache) Get(context.Context, domain.Provider) (string, bool) { return "", false }

func (NoopTokenCache) Set(context.Context, domain.Provider, string, time.Duration) {}

func (NoopTokenCache) Delete(context.Context, domain.Provider) {}
