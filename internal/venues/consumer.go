package venues

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

// ConsumerName is the idempotency scope for venue provisioning.
const ConsumerName = "venue-service"

type profileStore interface {
	Exists(ctx context.Context, venueID uuid.UUID) (bool, error)
	Create(ctx context.Context, profile models.VenueProfile) error
}

type idempotencyGuard interface {
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

// Consumer materializes venue profiles from account-created events.
type Consumer struct {
	store   profileStore
	guard   idempotencyGuard
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics
}

// NewConsumer builds the venue provisioning consumer.
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
		c.logg.Error(ctx, "dropping undecodable venue event", err)
		return nil
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"venue_id": event.UserID.String(),
		"name":     event.Username,
		"consumer": ConsumerName,
	})

	if event.Role != enums.RoleVenue {
		c.logg.Warn(logCtx, "event role does not belong on the venue topic, skipping")
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
		c.logg.Info(logCtx, "venue profile already exists, acking duplicate")
		return nil
	}

	profile := models.VenueProfile{
		VenueID: event.UserID,
		Name:    event.Username,
		Email:   event.Email,
	}
	if err := c.store.Create(ctx, profile); err != nil {
		c.releaseMarker(ctx, eventID)
		if c.metrics != nil {
			c.metrics.IncConsumeFailure(ConsumerName)
		}
		return fmt.Errorf("create venue profile: %w", err)
	}

	if c.metrics != nil {
		c.metrics.IncConsumed(ConsumerName)
	}
	c.logg.Info(logCtx, "venue profile created")
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
