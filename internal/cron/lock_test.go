package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisStore struct {
	values map[string]string
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}}
}

func (f *fakeRedisStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedisStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "tu:lock:sweeper", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	other, _ := NewRedisLock(store, "tu:lock:sweeper", time.Minute)
	ok, err = other.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatal("second instance must not acquire a held lock")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, err = other.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestRedisLockReleaseIgnoresForeignOwner(t *testing.T) {
	store := newFakeRedisStore()
	ctx := context.Background()

	lock, _ := NewRedisLock(store, "tu:lock:sweeper", time.Minute)
	if _, err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Simulate TTL expiry plus takeover by another instance.
	store.values["tu:lock:sweeper"] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["tu:lock:sweeper"] != "someone-else" {
		t.Fatal("release must not delete a lock owned by another instance")
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "key", time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisLock(newFakeRedisStore(), "", time.Minute); err == nil {
		t.Fatal("expected error for empty key")
	}
}
