package redis

import (
	"context"
	"testing"
	"time"
)

func TestCatalogCacheSetGet(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	cache, err := NewCatalogCache(rdb)
	if err != nil {
		t.Fatalf("NewCatalogCache() error = %v", err)
	}

	payload := []byte(`[{"id":"1","name":"Weekly"}]`)
	if err := cache.Set(context.Background(), "activecampaign:lists", payload, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, found, err := cache.Get(context.Background(), "activecampaign:lists")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(payload) {
		t.Fatalf("Get() = %s, want %s", got, payload)
	}
}

func TestCatalogCacheMiss(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	cache, err := NewCatalogCache(rdb)
	if err != nil {
		t.Fatalf("NewCatalogCache() error = %v", err)
	}

	_, found, err := cache.Get(context.Background(), "activecampaign:missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatal("expected cache miss")
	}
}

func TestCatalogCacheValidation(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	cache, err := NewCatalogCache(rdb)
	if err != nil {
		t.Fatalf("NewCatalogCache() error = %v", err)
	}

	if _, _, err := cache.Get(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank key")
	}
	if err := cache.Set(context.Background(), "key", []byte("v"), 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}

	if _, err := NewCatalogCache(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
