package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/teamup-app/teamup-backend/pkg/logger"
)

// consumer handles one delivery. A nil return acknowledges the message; an
// error nacks it for redelivery.
type consumer interface {
	Process(ctx context.Context, data []byte) error
}

type subscriberLoop struct {
	name         string
	subscription *gcppubsub.Subscriber
	consumer     consumer
}

// ServiceParams configure the provisioning worker.
type ServiceParams struct {
	Logger             *logger.Logger
	PlayerSubscription *gcppubsub.Subscriber
	VenueSubscription  *gcppubsub.Subscriber
	PlayerConsumer     consumer
	VenueConsumer      consumer
}

// Service runs both provisioning consumer groups. Each subscription gets its
// own receive loop; the first loop to fail tears down the other.
type Service struct {
	logg  *logger.Logger
	loops []subscriberLoop
}

// NewService builds the provisioning worker service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.PlayerSubscription == nil {
		return nil, errors.New("player subscription is required")
	}
	if params.VenueSubscription == nil {
		return nil, errors.New("venue subscription is required")
	}
	if params.PlayerConsumer == nil {
		return nil, errors.New("player consumer is required")
	}
	if params.VenueConsumer == nil {
		return nil, errors.New("venue consumer is required")
	}
	return &Service{
		logg: params.Logger,
		loops: []subscriberLoop{
			{name: "player", subscription: params.PlayerSubscription, consumer: params.PlayerConsumer},
			{name: "venue", subscription: params.VenueSubscription, consumer: params.VenueConsumer},
		},
	}, nil
}

// Run blocks until the context is canceled or a receive loop fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(s.loops))
	for _, loop := range s.loops {
		loop := loop
		go func() {
			errCh <- s.receive(runCtx, loop)
		}()
	}

	var firstErr error
	for range s.loops {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
		}
		// Stop the sibling loop once any loop returns.
		cancel()
	}
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (s *Service) receive(ctx context.Context, loop subscriberLoop) error {
	loopCtx := s.logg.WithField(ctx, "subscription", loop.name)
	s.logg.Info(loopCtx, "consumer loop starting")

	err := loop.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		msgCtx := s.logg.WithField(innerCtx, "message_id", msg.ID)
		if procErr := loop.consumer.Process(msgCtx, msg.Data); procErr != nil {
			s.logg.Error(msgCtx, "message processing failed, nacking for redelivery", procErr)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s receive loop: %w", loop.name, err)
	}
	s.logg.Info(loopCtx, "consumer loop stopped")
	return err
}
