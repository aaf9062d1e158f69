package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/readypush/newsletter-push/internal/domain"
	"go.uber.org/zap"
)

func TestCatalogServiceListsCacheMissThenWrite(t *testing.T) {
	t.Parallel()

	lists := []domain.SubscriberList{{ID: "1", Name: "Weekly", SubscriberCount: 120}}

	cache := newFakeCatalogCache()
	client := &fakeProviderClient{
		listAllListsFn: func(ctx context.Context) ([]domain.SubscriberList, error) {
			return lists, nil
		},
	}

	svc, err := NewCatalogService(client, cache, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCatalogService() error = %v", err)
	}

	got, err := svc.Lists(context.Background())
	if err != nil {
		t.Fatalf("Lists() error = %v", err)
	}
	if len(got) != 1 || got[0].SubscriberCount != 120 {
		t.Fatalf("Lists() = %+v", got)
	}

	raw, ok := cache.entries["activecampaign:lists"]
	if !ok {
		t.Fatal("lists were not written to cache")
	}
	var cached []domain.SubscriberList
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatalf("cached payload invalid: %v", err)
	}
	if cached[0].Name != "Weekly" {
		t.Fatalf("cached[0].Name = %q, want Weekly", cached[0].Name)
	}
}

func TestCatalogServiceListsCacheHitSkipsProvider(t *testing.T) {
	t.Parallel()

	cache := newFakeCatalogCache()
	raw, _ := json.Marshal([]domain.SubscriberList{{ID: "2", Name: "Cached"}})
	cache.entries["activecampaign:lists"] = raw

	var providerCalled bool
	client := &fakeProviderClient{
		listAllListsFn: func(ctx context.Context) ([]domain.SubscriberList, error) {
			providerCalled = true
			return nil, nil
		},
	}

	svc, err := NewCatalogService(client, cache, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCatalogService() error = %v", err)
	}

	got, err := svc.Lists(context.Background())
	if err != nil {
		t.Fatalf("Lists() error = %v", err)
	}
	if providerCalled {
		t.Fatal("cache hit must not call the provider")
	}
	if len(got) != 1 || got[0].Name != "Cached" {
		t.Fatalf("Lists() = %+v", got)
	}
}

func TestCatalogServiceCacheErrorDegradesToProvider(t *testing.T) {
	t.Parallel()

	cache := newFakeCatalogCache()
	cache.getErr = fmt.Errorf("redis gone")

	addresses := []domain.MailingAddress{{ID: "1", CompanyName: "Acme", Display: "Acme - 1 Main St"}}
	client := &fakeProviderClient{
		listAddressesFn: func(ctx context.Context) ([]domain.MailingAddress, error) {
			return addresses, nil
		},
	}

	svc, err := NewCatalogService(client, cache, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCatalogService() error = %v", err)
	}

	got, err := svc.Addresses(context.Background())
	if err != nil {
		t.Fatalf("Addresses() error = %v", err)
	}
	if len(got) != 1 || got[0].CompanyName != "Acme" {
		t.Fatalf("Addresses() = %+v", got)
	}
}

func TestCatalogServiceCorruptCacheEntryIsIgnored(t *testing.T) {
	t.Parallel()

	cache := newFakeCatalogCache()
	cache.entries["activecampaign:lists"] = []byte("{not json")

	client := &fakeProviderClient{
		listAllListsFn: func(ctx context.Context) ([]domain.SubscriberList, error) {
			return []domain.SubscriberList{{ID: "3", Name: "Fresh"}}, nil
		},
	}

	svc, err := NewCatalogService(client, cache, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCatalogService() error = %v", err)
	}

	got, err := svc.Lists(context.Background())
	if err != nil {
		t.Fatalf("Lists() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Fresh" {
		t.Fatalf("Lists() = %+v", got)
	}
}

func TestCatalogServiceProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	client := &fakeProviderClient{
		listAllListsFn: func(ctx context.Context) ([]domain.SubscriberList, error) {
			return nil, fmt.Errorf("provider down")
		},
	}

	svc, err := NewCatalogService(client, nil, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCatalogService() error = %v", err)
	}

	if _, err := svc.Lists(context.Background()); err == nil {
		t.Fatal("expected provider error")
	}
}

type fakeCatalogCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
}

func newFakeCatalogCache() *fakeCatalogCache {
	return &fakeCatalogCache{entries: map[string][]byte{}}
}

func (f *fakeCatalogCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	raw, ok := f.entries[key]
	return raw, ok, nil
}

func (f *fakeCatalogCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}
