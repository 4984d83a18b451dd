package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradelane/marketpay-backend/api/routes"
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
	"github.com/tradelane/marketpay-backend/pkg/migrate"
	"github.com/tradelane/marketpay-backend/pkg/outbox"
	"github.com/tradelane/marketpay-backend/pkg/razorpay"
	"github.com/tradelane/marketpay-backend/pkg/redis"
	"github.com/tradelane/marketpay-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
		Repo:   currency.NewSnapshotRepository(dbClient.DB()),
		Rates:  rateCache,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build snapshotter", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	paymentsRepo := payments.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	payoutsRepo := payouts.NewRepository(gormDB)

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
		Payouts:       payoutsRepo,
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

	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		Events:   webhooks.NewEventRepository(gormDB),
		Payments: paymentsService,
		Payouts:  payoutsRepo,
		Stripe:   stripeClient,
		Razorpay: razorpayClient,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Payments: paymentsService,
			Payouts:  payoutEngine,
			Webhooks: webhookService,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
