package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/sokohub/sokohub-backend/api/routes"
	"github.com/sokohub/sokohub-backend/internal/auth"
	"github.com/sokohub/sokohub-backend/internal/cart"
	"github.com/sokohub/sokohub-backend/internal/checkout"
	"github.com/sokohub/sokohub-backend/internal/notifications"
	"github.com/sokohub/sokohub-backend/internal/orders"
	"github.com/sokohub/sokohub-backend/internal/otp"
	"github.com/sokohub/sokohub-backend/internal/products"
	"github.com/sokohub/sokohub-backend/internal/promotions"
	"github.com/sokohub/sokohub-backend/internal/users"
	"github.com/sokohub/sokohub-backend/internal/wallet"
	"github.com/sokohub/sokohub-backend/pkg/auth/session"
	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/ids"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/mail"
	"github.com/sokohub/sokohub-backend/pkg/metrics"
	"github.com/sokohub/sokohub-backend/pkg/migrate"
	"github.com/sokohub/sokohub-backend/pkg/outbox"
	"github.com/sokohub/sokohub-backend/pkg/redis"
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
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	flushSentry, err := logger.SetupSentry(logger.SentryOptions{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.App.Env,
		ServiceName:      "api",
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "sentry disabled")
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped with error", err)
		flushSentry()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sender, err := mail.NewSender(cfg.Mail, cfg.App.IsDev(), logg)
	if err != nil {
		return err
	}
	mailer := mail.NewAsyncSender(sender, logg, cfg.Mail.SendTimeout)
	defer func() { err = multierr.Append(err, mailer.Close()) }()

	handler, err := buildRouter(cfg, logg, dbClient, redisClient, mailer, registry)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildRouter(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, mailer mail.Sender, registry *prometheus.Registry) (http.Handler, error) {
	conn := dbClient.DB()

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return nil, err
	}
	idGen, err := ids.NewGenerator(cfg.IDs)
	if err != nil {
		return nil, err
	}
	events := outbox.NewService(outbox.NewRepository(conn), logg)

	userRepo := users.NewRepository(conn)
	userService, err := users.NewService(userRepo)
	if err != nil {
		return nil, err
	}

	otpService, err := otp.NewService(otp.ServiceParams{
		Repo:      otp.NewRepository(conn),
		Mailer:    mailer,
		Limiter:   redisClient,
		Logger:    logg,
		OTP:       cfg.OTP,
		RateLimit: cfg.AuthRateLimit,
		MailFrom:  cfg.Mail.From,
	})
	if err != nil {
		return nil, err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		OTP:            otpService,
		Limiter:        redisClient,
		Logger:         logg,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		RateLimit:      cfg.AuthRateLimit,
	})
	if err != nil {
		return nil, err
	}

	productRepo := products.NewRepository(conn)
	productService, err := products.NewService(productRepo)
	if err != nil {
		return nil, err
	}

	cartService, err := cart.NewService(cart.NewRepository(conn), productRepo)
	if err != nil {
		return nil, err
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	walletService, err := wallet.NewService(wallet.ServiceParams{
		Repo:     wallet.NewRepository(conn),
		TxRunner: dbClient,
		Outbox:   events,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	promotionService, err := promotions.NewService(promotions.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	orderRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		TxRunner: dbClient,
		Outbox:   events,
		Notifier: notificationService,
		Wallet:   walletService,
		IDs:      idGen,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		TxRunner:     dbClient,
		Carts:        cartService,
		Products:     productRepo,
		Orders:       orderRepo,
		Wallet:       walletService,
		Promotions:   promotionService,
		Notifier:     notificationService,
		Outbox:       events,
		IDs:          idGen,
		Metrics:      metrics.NewCheckoutMetrics(registry),
		Logger:       logg,
		DiscountRate: cfg.Checkout.PromotionRate(),
	})
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Sessions:      sessions,
		Gatherer:      registry,
		Metrics:       metrics.NewHTTPMetrics(registry),
		Auth:          authService,
		Users:         userService,
		Products:      productService,
		Cart:          cartService,
		Checkout:      checkoutService,
		Orders:        orderService,
		Wallet:        walletService,
		Notifications: notificationService,
	}), nil
}
