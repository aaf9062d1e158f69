package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/readypush/newsletter-push/internal/service"
	goredis "github.com/redis/go-redis/v9"
)

var _ service.CatalogCache = (*CatalogCache)(nil)

// CatalogCache stores provider catalog payloads with a TTL.
type CatalogCache struct {
	client *goredis.Client
}

func NewCatalogCache(client *goredis.Client) (*CatalogCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &CatalogCache{client: client}, nil
}

func (c *CatalogCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, fmt.Errorf("cache key is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	return raw, true, nil
}

func (c *CatalogCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}
