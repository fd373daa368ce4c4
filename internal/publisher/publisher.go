package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/teamup-app/teamup-backend/pkg/config"
	"github.com/teamup-app/teamup-backend/pkg/events"
	"github.com/teamup-app/teamup-backend/pkg/logger"
	"github.com/teamup-app/teamup-backend/pkg/metrics"
	"github.com/teamup-app/teamup-backend/pkg/pubsub"
)

const defaultPublishTimeout = 8 * time.Second

type pubSubClient interface {
	Publisher(name string) *gcppubsub.Publisher
}

type pendingStore interface {
	Insert(tx *gorm.DB, event events.UserCreatedEvent, lastError error) error
}

type publisherFactory func(topic string) messagePublisher

type messagePublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// ServiceParams configure the event publisher.
type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	PubSub           pubSubClient
	Pending          pendingStore
	Metrics          *metrics.PipelineMetrics
	PublisherFactory publisherFactory
}

// Service publishes provisioning events with a bounded wait. The caller's
// request never blocks on the broker: Publish hands the send to a background
// goroutine, and any failure lands the event in the durable retry store for
// the sweeper to replay.
type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	pending          pendingStore
	metrics          *metrics.PipelineMetrics
	publisherFactory publisherFactory
	timeout          time.Duration
	wg               sync.WaitGroup
}

// NewService builds a publisher service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Pending == nil {
		return nil, errors.New("pending repository is required")
	}
	factory := params.PublisherFactory
	if factory == nil {
		if params.PubSub == nil {
			return nil, errors.New("pubsub client is required")
		}
		factory = func(topic string) messagePublisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			return newGCPPublisher(pub)
		}
	}

	timeout := params.Config.Publisher.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		pending:          params.Pending,
		metrics:          params.Metrics,
		publisherFactory: factory,
		timeout:          timeout,
	}, nil
}

// Publish schedules an asynchronous send and returns immediately. The caller's
// transaction must already be committed: the event describes a user that
// exists.
func (s *Service) Publish(ctx context.Context, event events.UserCreatedEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	topic, err := pubsub.TopicForRole(s.cfg.PubSub, event.Role)
	if err != nil {
		return err
	}

	// Detach from the request context so an early HTTP response does not
	// cancel the in-flight send.
	sendCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sendOrStore(sendCtx, topic, event)
	}()
	return nil
}

// SendNow publishes synchronously with the configured bound. The sweeper uses
// it to replay stored events; failures are returned, never re-stored here.
func (s *Service) SendNow(ctx context.Context, event events.UserCreatedEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	topic, err := pubsub.TopicForRole(s.cfg.PubSub, event.Role)
	if err != nil {
		return err
	}
	return s.send(ctx, topic, event)
}

// Close waits for in-flight background sends to finish.
func (s *Service) Close() {
	s.wg.Wait()
}

func (s *Service) sendOrStore(ctx context.Context, topic string, event events.UserCreatedEvent) {
	fields := map[string]any{
		"topic":   topic,
		"user_id": event.UserID.String(),
		"role":    event.Role,
	}
	logCtx := s.logg.WithFields(ctx, fields)

	err := s.send(ctx, topic, event)
	if err == nil {
		s.logg.Info(logCtx, "provisioning event published")
		return
	}

	logCtx = s.logg.WithField(logCtx, "error", err.Error())
	s.logg.Warn(logCtx, "publish failed, deferring event to retry store")

	if storeErr := s.pending.Insert(nil, event, err); storeErr != nil {
		// Both the broker and the database rejected the event. Nothing
		// durable holds it anymore, so this log line is the only trace.
		lossCtx := s.logg.WithField(logCtx, "store_error", storeErr.Error())
		s.logg.Error(lossCtx, "event lost: publish failed and retry store insert failed", storeErr)
		return
	}

	if s.metrics != nil {
		s.metrics.IncDeferred(topic)
	}
	s.logg.Info(logCtx, "event deferred to retry store")
}

func (s *Service) send(ctx context.Context, topic string, event events.UserCreatedEvent) error {
	pub := s.publisherFactory(topic)
	if pub == nil {
		return fmt.Errorf("publisher not configured for topic %s", topic)
	}

	data, err := event.Marshal()
	if err != nil {
		return err
	}
	msg := &gcppubsub.Message{
		Data:       data,
		Attributes: event.Attributes(),
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("publisher returned nil result for topic %s", topic)
	}
	_, err = result.Get(publishCtx)
	if s.metrics != nil {
		s.metrics.ObservePublishLatency(topic, time.Since(start))
	}
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncPublished(topic)
	}
	return nil
}

func newGCPPublisher(p *gcppubsub.Publisher) messagePublisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
