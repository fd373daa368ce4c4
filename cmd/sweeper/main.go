package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teamup-app/teamup-backend/internal/cron"
	"github.com/teamup-app/teamup-backend/internal/publisher"
	"github.com/teamup-app/teamup-backend/internal/sweeper"
	"github.com/teamup-app/teamup-backend/pkg/config"
	"github.com/teamup-app/teamup-backend/pkg/db"
	"github.com/teamup-app/teamup-backend/pkg/logger"
	"github.com/teamup-app/teamup-backend/pkg/metrics"
	"github.com/teamup-app/teamup-backend/pkg/migrate"
	"github.com/teamup-app/teamup-backend/pkg/pending"
	"github.com/teamup-app/teamup-backend/pkg/pubsub"
	"github.com/teamup-app/teamup-backend/pkg/redis"
)

const sweeperLockName = "sweeper"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "sweeper"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "sweeper"

	logg = logger.New(logger.Options{
		ServiceName: "sweeper",
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

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	pendingRepo := pending.NewRepository(dbClient.DB())
	poisonRepo := pending.NewPoisonRepository(dbClient.DB())

	sender, err := publisher.NewService(publisher.ServiceParams{
		Config:  cfg,
		Logger:  logg,
		PubSub:  pubsubClient,
		Pending: pendingRepo,
		Metrics: pipelineMetrics,
	})
	requireResource(ctx, logg, "event publisher", err)
	defer sender.Close()

	sweepJob, err := sweeper.NewJob(sweeper.JobParams{
		Logger:      logg,
		DB:          dbClient,
		Pending:     pendingRepo,
		Poison:      poisonRepo,
		Sender:      sender,
		Metrics:     pipelineMetrics,
		BatchSize:   cfg.Sweeper.BatchSize,
		MaxAttempts: cfg.Sweeper.MaxAttempts,
	})
	requireResource(ctx, logg, "sweep job", err)

	retentionJob, err := sweeper.NewRetentionJob(sweeper.RetentionJobParams{
		Logger:    logg,
		Poison:    poisonRepo,
		Retention: cfg.Sweeper.RetentionDays,
	})
	requireResource(ctx, logg, "retention job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(sweeperLockName), cfg.Sweeper.LockTTL)
	requireResource(ctx, logg, "sweep lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, retentionJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Sweeper.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Sweeper.Interval.String(),
	})
	logg.Info(runCtx, "starting pending-events sweeper")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "sweeper stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "sweeper shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
