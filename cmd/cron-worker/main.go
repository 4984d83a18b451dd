package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradelane/marketpay-backend/internal/cron"
	"github.com/tradelane/marketpay-backend/internal/currency"
	"github.com/tradelane/marketpay-backend/internal/disputes"
	"github.com/tradelane/marketpay-backend/internal/orders"
	"github.com/tradelane/marketpay-backend/internal/payments"
	"github.com/tradelane/marketpay-backend/internal/payouts"
	"github.com/tradelane/marketpay-backend/internal/selleraccounts"
	"github.com/tradelane/marketpay-backend/internal/webhooks"
	"github.com/tradelane/marketpay-backend/pkg/config"
	"github.com/tradelane/marketpay-backend/pkg/db"
	"github.com/tradelane/marketpay-backend/pkg/logger"
	"github.com/tradelane/marketpay-backend/pkg/metrics"
	"github.com/tradelane/marketpay-backend/pkg/migrate"
	"github.com/tradelane/marketpay-backend/pkg/outbox"
	"github.com/tradelane/marketpay-backend/pkg/razorpay"
	"github.com/tradelane/marketpay-backend/pkg/redis"
	"github.com/tradelane/marketpay-backend/pkg/stripe"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	razorpayClient, err := razorpay.NewClient(razorpay.Params{
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		AccountNumber: cfg.Razorpay.AccountNumber,
		Timeout:       cfg.Razorpay.Timeout,
	}, razorpay.WithBaseURL(cfg.Razorpay.BaseURL))
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap razorpay", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	paymentsRepo := payments.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)

	rateClient, err := currency.NewRateClient(cfg.FX)
	if err != nil {
		logg.Error(context.Background(), "failed to build fx client", err)
		os.Exit(1)
	}
	rateCache, err := currency.NewRateCache(currency.RateCacheParams{
		Store:  redisClient,
		Rates:  rateClient,
		TTL:    cfg.FX.CacheTTL,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build rate cache", err)
		os.Exit(1)
	}
	snapshotter, err := currency.NewSnapshotter(currency.SnapshotterParams{
		Repo:   currency.NewSnapshotRepository(gormDB),
		Rates:  rateCache,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build snapshotter", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:      paymentsRepo,
		Orders:    ordersRepo,
		Snapshots: snapshotter,
		Stripe:    stripeClient,
		Razorpay:  razorpayClient,
		Tx:        dbClient,
		Outbox:    outboxService,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	payoutEngine, err := payouts.NewEngine(payouts.EngineParams{
		Payments:      paymentsRepo,
		Payouts:       payouts.NewRepository(gormDB),
		Orders:        ordersRepo,
		Disputes:      disputes.NewRepository(gormDB),
		Accounts:      selleraccounts.NewRepository(gormDB),
		Snapshots:     currency.NewSnapshotRepository(gormDB),
		Payout:        razorpayClient,
		Stripe:        stripeClient,
		Razorpay:      razorpayClient,
		Transitions:   paymentsService,
		Tx:            dbClient,
		Outbox:        outboxService,
		Logger:        logg,
		CommissionBps: cfg.Escrow.CommissionBps,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout engine", err)
		os.Exit(1)
	}

	autoReleaseJob, err := cron.NewAutoReleaseJob(cron.AutoReleaseJobParams{
		Logger:          logg,
		Payments:        paymentsRepo,
		Engine:          payoutEngine,
		AutoReleaseDays: cfg.Escrow.AutoReleaseDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-release job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewWebhookRetentionJob(cron.WebhookRetentionJobParams{
		Logger:    logg,
		Events:    webhooks.NewEventRepository(gormDB),
		Retention: cfg.Escrow.EventRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	registry.Register(autoReleaseJob)
	registry.Register(retentionJob)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Escrow.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
