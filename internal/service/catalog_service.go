package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/readypush/newsletter-push/internal/domain"
	"github.com/readypush/newsletter-push/internal/provider"
	"go.uber.org/zap"
)

const (
	defaultCatalogCacheTTL = time.Minute

	listsCacheKey     = "activecampaign:lists"
	addressesCacheKey = "activecampaign:addresses"
)

// CatalogCache is a byte-level cache for provider catalog responses.
type CatalogCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CatalogService serves read-only provider catalogs (subscriber lists and
// mailing addresses) through a short-lived cache so browsing the API does
// not eat into the provider rate budget.
type CatalogService struct {
	client provider.Client
	cache  CatalogCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCatalogService(
	client provider.Client,
	cache CatalogCache,
	ttl time.Duration,
	logger *zap.Logger,
) (*CatalogService, error) {
	if client == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CatalogService{
		client: client,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func (s *CatalogService) Lists(ctx context.Context) ([]domain.SubscriberList, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var cached []domain.SubscriberList
	if s.readCache(ctx, listsCacheKey, &cached) {
		return cached, nil
	}

	lists, err := s.client.ListAllLists(ctx)
	if err != nil {
		return nil, err
	}

	s.writeCache(ctx, listsCacheKey, lists)
	return lists, nil
}

func (s *CatalogService) Addresses(ctx context.Context) ([]domain.MailingAddress, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var cached []domain.MailingAddress
	if s.readCache(ctx, addressesCacheKey, &cached) {
		return cached, nil
	}

	addresses, err := s.client.ListAddresses(ctx)
	if err != nil {
		return nil, err
	}

	s.writeCache(ctx, addressesCacheKey, addresses)
	return addresses, nil
}

// readCache reports whether the key was served from cache. Cache failures
// degrade to a provider call.
func (s *CatalogService) readCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}

	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("catalog cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *CatalogService) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("catalog cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
