package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teamup-app/teamup-backend/pkg/redis"
)

type fakeStore struct {
	values map[string]string
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return strings.Join([]string{"tu", "idempotency", scope, id}, ":")
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestMarkProcessedClaimsOnce(t *testing.T) {
	store := newFakeStore()
	mgr, err := New(store, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claimed, err := mgr.MarkProcessed(context.Background(), "player-service", "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("first delivery should claim the marker")
	}

	claimed, err = mgr.MarkProcessed(context.Background(), "player-service", "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("second delivery must not claim the marker")
	}
}

func TestMarkersAreScopedPerConsumer(t *testing.T) {
	store := newFakeStore()
	mgr, _ := New(store, time.Minute)

	if _, err := mgr.MarkProcessed(context.Background(), "player-service", "evt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claimed, err := mgr.MarkProcessed(context.Background(), "venue-service", "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("different consumer must get its own marker")
	}
}

func TestAlreadyProcessedAndRelease(t *testing.T) {
	store := newFakeStore()
	mgr, _ := New(store, time.Minute)
	ctx := context.Background()

	seen, err := mgr.AlreadyProcessed(ctx, "player-service", "evt-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("marker should not exist yet")
	}

	if _, err := mgr.MarkProcessed(ctx, "player-service", "evt-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen, err = mgr.AlreadyProcessed(ctx, "player-service", "evt-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("marker should exist after claim")
	}

	if err := mgr.Release(ctx, "player-service", "evt-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen, _ = mgr.AlreadyProcessed(ctx, "player-service", "evt-9")
	if seen {
		t.Fatal("marker should be gone after release")
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("redis down")
	mgr, _ := New(store, time.Minute)

	if _, err := mgr.MarkProcessed(context.Background(), "player-service", "evt-1"); err == nil {
		t.Fatal("expected store error to propagate")
	}
	if _, err := mgr.AlreadyProcessed(context.Background(), "player-service", "evt-1"); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(nil, time.Minute); err == nil {
		t.Fatal("expected error for nil store")
	}
}
