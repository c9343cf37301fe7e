package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/itsneelabh/gomind/core"
)

type record struct {
	IP  string `json:"ip"`
	ASN string `json:"asn"`
}

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rc, err := core.NewRedisClient(core.RedisClientOptions{RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}

	return mr, New(rc, nil)
}

func TestCacheSetGetRoundTrip(t *testing.T) {
	mr, c := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()
	in := record{IP: "1.2.3.4", ASN: "AS1234"}

	if err := c.Set(ctx, in.IP, in, 5*time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	var out record
	found, ttl, err := c.Get(ctx, in.IP, &out)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !found {
		t.Fatal("expected cache hit")
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
	if ttl <= 0 || ttl > 5*time.Minute {
		t.Fatalf("unexpected ttl: %v", ttl)
	}
}

func TestCacheGetMiss(t *testing.T) {
	mr, c := setupTestCache(t)
	defer mr.Close()

	var out record
	found, _, err := c.Get(context.Background(), "8.8.8.8", &out)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if found {
		t.Fatal("expected cache miss")
	}
}

func TestCacheTouchExtendsTTL(t *testing.T) {
	mr, c := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()
	ip := "9.9.9.9"
	if err := c.Set(ctx, ip, record{IP: ip}, 2*time.Second); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	mr.FastForward(1800 * time.Millisecond)

	if err := c.Touch(ctx, ip, 10*time.Minute); err != nil {
		t.Fatalf("Touch returned error: %v", err)
	}

	ttl := mr.TTL(cacheKey(ip))
	if ttl < 9*time.Minute {
		t.Fatalf("expected TTL to be reset to ~10m, got %v", ttl)
	}
}

func TestCacheDeleteBatch(t *testing.T) {
	mr, c := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()
	ips := []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"}
	for _, ip := range ips {
		if err := c.Set(ctx, ip, record{IP: ip}, time.Minute); err != nil {
			t.Fatalf("Set(%s) returned error: %v", ip, err)
		}
	}

	if err := c.DeleteBatch(ctx, ips); err != nil {
		t.Fatalf("DeleteBatch returned error: %v", err)
	}

	for _, ip := range ips {
		if mr.Exists(cacheKey(ip)) {
			t.Fatalf("expected %s to be deleted", ip)
		}
	}
}

func TestCacheScanKeysStripsPrefix(t *testing.T) {
	mr, c := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "4.4.4.4", record{IP: "4.4.4.4"}, time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	var collected []string
	cursor := uint64(0)
	for {
		ips, next, err := c.ScanKeys(ctx, cursor, 10)
		if err != nil {
			t.Fatalf("ScanKeys returned error: %v", err)
		}
		collected = append(collected, ips...)
		if next == 0 {
			break
		}
		cursor = next
	}

	if len(collected) != 1 || collected[0] != "4.4.4.4" {
		t.Fatalf("expected [4.4.4.4], got %v", collected)
	}
}

func TestCacheHealthCheck(t *testing.T) {
	mr, c := setupTestCache(t)
	defer mr.Close()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}

	mr.Close()
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error after miniredis closed")
	}
}
