package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamup-app/teamup-backend/pkg/redis"
)

const (
	processedScopePrefix = "evt:processed"
	markerValue          = "1"

	// DefaultTTL keeps processed markers long enough to cover redeliveries
	// from the broker plus sweeper replays.
	DefaultTTL = 7 * 24 * time.Hour
)

// Manager records which events a consumer has already processed. Markers are
// advisory: the database existence check remains the source of truth, the
// marker just short-circuits redeliveries without a round trip to Postgres.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// New builds a Manager. A zero ttl falls back to DefaultTTL.
func New(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency: store is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// MarkProcessed records the event for the consumer. It returns true when this
// call claimed the marker, false when another delivery already did.
func (m *Manager) MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key := m.key(consumer, eventID)
	ok, err := m.store.SetNX(ctx, key, markerValue, m.ttl)
	if err != nil {
		return false, fmt.Errorf("marking event processed: %w", err)
	}
	return ok, nil
}

// AlreadyProcessed reports whether a marker exists for the event.
func (m *Manager) AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	_, err := m.store.Get(ctx, m.key(consumer, eventID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("checking processed marker: %w", err)
	}
	return true, nil
}

// Release drops the marker so a failed handler can be retried by the next
// delivery.
func (m *Manager) Release(ctx context.Context, consumer, eventID string) error {
	if err := m.store.Del(ctx, m.key(consumer, eventID)); err != nil {
		return fmt.Errorf("releasing processed marker: %w", err)
	}
	return nil
}

func (m *Manager) key(consumer, eventID string) string {
	return m.store.IdempotencyKey(fmt.Sprintf("%s:%s", processedScopePrefix, consumer), eventID)
}
