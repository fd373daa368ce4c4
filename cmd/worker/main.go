package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/teamup-app/teamup-backend/internal/players"
	"github.com/teamup-app/teamup-backend/internal/venues"
	"github.com/teamup-app/teamup-backend/pkg/config"
	"github.com/teamup-app/teamup-backend/pkg/db"
	"github.com/teamup-app/teamup-backend/pkg/idempotency"
	"github.com/teamup-app/teamup-backend/pkg/logger"
	"github.com/teamup-app/teamup-backend/pkg/metrics"
	"github.com/teamup-app/teamup-backend/pkg/migrate"
	"github.com/teamup-app/teamup-backend/pkg/pubsub"
	"github.com/teamup-app/teamup-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "provisioning-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "provisioning-worker"

	logg = logger.New(logger.Options{
		ServiceName: "provisioning-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	playerSubscription := pubsubClient.PlayerSubscription()
	if playerSubscription == nil {
		requireResource(ctx, logg, "player subscription", errors.New("subscription not configured"))
	}
	venueSubscription := pubsubClient.VenueSubscription()
	if venueSubscription == nil {
		requireResource(ctx, logg, "venue subscription", errors.New("subscription not configured"))
	}

	guard, err := idempotency.New(redisClient, idempotency.DefaultTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	pipelineMetrics := metrics.NewPipelineMetrics(nil)

	playerConsumer, err := players.NewConsumer(players.NewRepo(dbClient.DB()), guard, logg, pipelineMetrics)
	requireResource(ctx, logg, "player consumer", err)

	venueConsumer, err := venues.NewConsumer(venues.NewRepo(dbClient.DB()), guard, logg, pipelineMetrics)
	requireResource(ctx, logg, "venue consumer", err)

	service, err := NewService(ServiceParams{
		Logger:             logg,
		PlayerSubscription: playerSubscription,
		VenueSubscription:  venueSubscription,
		PlayerConsumer:     playerConsumer,
		VenueConsumer:      venueConsumer,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "provisioning worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "provisioning worker failed", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "provisioning worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
