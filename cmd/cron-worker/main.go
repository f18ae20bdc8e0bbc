package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/sokohub/sokohub-backend/internal/cron"
	"github.com/sokohub/sokohub-backend/internal/notifications"
	"github.com/sokohub/sokohub-backend/internal/otp"
	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/metrics"
	"github.com/sokohub/sokohub-backend/pkg/migrate"
	"github.com/sokohub/sokohub-backend/pkg/outbox"
	"github.com/sokohub/sokohub-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single maintenance cycle and exit")
	only := flag.String("jobs", "", "comma-separated job names to run (default: all)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	flushSentry, err := logger.SetupSentry(logger.SentryOptions{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.App.Env,
		ServiceName:      serviceKind,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "sentry disabled")
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service_kind": serviceKind})

	if err := run(ctx, cfg, logg, *once, jobNames(*only)); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		flushSentry()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool, only []string) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry, err := buildJobs(cfg, logg, dbClient)
	if err == nil {
		registry, err = registry.Select(only...)
	}
	if err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind), 0)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(promRegistry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	if once {
		logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "running single cron cycle")
		return service.RunOnce(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, cfg.Service.MetricsAddr, promRegistry, logg) })
	g.Go(func() error {
		logg.Info(logg.WithField(gctx, "jobs", registry.Names()), "starting cron worker")
		return service.Run(gctx)
	})
	return g.Wait()
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()

	otpPurge, err := cron.NewOTPPurgeJob(cron.OTPPurgeJobParams{
		Logger:     logg,
		Repository: otp.NewRepository(conn),
		Retention:  cfg.Cron.OTPRetention,
	})
	if err != nil {
		return nil, err
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(conn),
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(conn),
		Retention:  cfg.Cron.NotificationDays,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(otpPurge, outboxRetention, notificationCleanup), nil
}

func jobNames(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
