package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, ttl), mr
}

func TestRedisStoreContract(t *testing.T) {
	store, _ := newTestRedisStore(t, 0)
	testStoreContract(t, store, uuid.NewString())
}

func TestRedisStoreKeepsTTLAcrossUpdates(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "contract.pdf")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if ttl := mr.TTL(contractKey(id)); ttl != time.Hour {
		t.Fatalf("TTL after create = %s, want 1h", ttl)
	}
	if err := store.UpdateProgress(ctx, id, StatusProcessing, 50); err != nil {
		t.Fatalf("UpdateProgress returned error: %v", err)
	}
	if ttl := mr.TTL(contractKey(id)); ttl != time.Hour {
		t.Fatalf("TTL after update = %s, want 1h", ttl)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t, 0)
	mr.Close()

	_, err := store.Create(context.Background(), "contract.pdf")
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
