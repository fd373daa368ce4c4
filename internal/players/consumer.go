package players

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/teamup-app/teamup-backend/pkg/db/models"
	"github.com/teamup-app/teamup-backend/pkg/enums"
	"github.com/teamup-app/teamup-backend/pkg/events"
	"github.com/teamup-app/teamup-backend/pkg/logger"
	"github.com/teamup-app/teamup-backend/pkg/metrics"
)

// ConsumerName is the idempotency scope for player provisioning.
const ConsumerName = "player-service"

type profileStore interface {
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
	Create(ctx context.Context, profile models.PlayerProfile) error
}

type idempotencyGuard interface {
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

// Consumer materializes player profiles from account-created events. Every
// path is idempotent: the Redis marker short-circuits fast redeliveries, the
// existence check covers marker expiry, and the insert itself tolerates
// conflicts.
type Consumer struct {
	store   profileStore
	guard   idempotencyGuard
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics
}

// NewConsumer builds the player provisioning consumer.
func NewConsumer(store profileStore, guard idempotencyGuard, logg *logger.Logger, m *metrics.PipelineMetrics) (*Consumer, error) {
	if store == nil {
		return nil, fmt.Errorf("profile store required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{store: store, guard: guard, logg: logg, metrics: m}, nil
}

// Process handles one delivery. A nil return acknowledges the message; an
// error nacks it for redelivery.
func (c *Consumer) Process(ctx context.Context, data []byte) error {
	event, err := events.UnmarshalUserCreated(data)
	if err != nil {
		// Redelivery cannot fix a malformed payload; drop it loudly.
		c.logg.Error(ctx, "dropping undecodable player event", err)
		return nil
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"user_id":  event.UserID.String(),
		"username": event.Username,
		"consumer": ConsumerName,
	})

	if event.Role != enums.RolePlayer {
		c.logg.Warn(logCtx, "event role does not belong on the player topic, skipping")
		return nil
	}

	eventID := event.UserID.String()
	claimed, err := c.guard.MarkProcessed(ctx, ConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if !claimed {
		c.incDuplicate()
		c.logg.Info(logCtx, "event already processed, acking duplicate")
		return nil
	}

	exists, err := c.store.Exists(ctx, event.UserID)
	if err != nil {
		c.releaseMarker(ctx, eventID)
		return fmt.Errorf("profile existence check: %w", err)
	}
	if exists {
		c.incDuplicate()
		c.logg.Info(logCtx, "player profile already exists, acking duplicate")
		return nil
	}

	profile := models.PlayerProfile{
		UserID:   event.UserID,
		Username: event.Username,
		Email:    event.Email,
	}
	if err := c.store.Create(ctx, profile); err != nil {
		c.releaseMarker(ctx, eventID)
		if c.metrics != nil {
			c.metrics.IncConsumeFailure(ConsumerName)
		}
		return fmt.Errorf("create player profile: %w", err)
	}

	if c.metrics != nil {
		c.metrics.IncConsumed(ConsumerName)
	}
	c.logg.Info(logCtx, "player profile created")
	return nil
}

func (c *Consumer) releaseMarker(ctx context.Context, eventID string) {
	if err := c.guard.Release(ctx, ConsumerName, eventID); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "failed to release idempotency marker")
	}
}

func (c *Consumer) incDuplicate() {
	if c.metrics != nil {
		c.metrics.IncDuplicate(ConsumerName)
	}
}
