package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/bookstore/internal"
	"github.com/dukerupert/bookstore/internal/billing"
	"github.com/dukerupert/bookstore/internal/email"
	"github.com/dukerupert/bookstore/internal/events"
	"github.com/dukerupert/bookstore/internal/handler"
	"github.com/dukerupert/bookstore/internal/handler/admin"
	"github.com/dukerupert/bookstore/internal/handler/api"
	"github.com/dukerupert/bookstore/internal/handler/webhook"
	"github.com/dukerupert/bookstore/internal/idempotency"
	"github.com/dukerupert/bookstore/internal/middleware"
	"github.com/dukerupert/bookstore/internal/repository"
	"github.com/dukerupert/bookstore/internal/router"
	"github.com/dukerupert/bookstore/internal/routes"
	"github.com/dukerupert/bookstore/internal/service"
	"github.com/dukerupert/bookstore/internal/telemetry"
	"github.com/dukerupert/bookstore/internal/worker"
)

const receiptMaxRetries = 3

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Storage
	var (
		store  repository.Store
		pinger handler.Pinger
	)
	if cfg.DatabaseUrl == internal.MemoryDatabaseURL {
		logger.Warn("Using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore(cfg.Checkout.LockTimeout)
		if err := seedCatalog(ctx, mem); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		store = mem
	} else {
		logger.Info("Running database migrations...")
		sqlDB, err := internal.OpenMigrationDB(cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		err = internal.RunMigrations(sqlDB)
		sqlDB.Close()
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database migrations completed successfully")

		pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		pg := repository.NewPostgresStore(pool, cfg.Checkout.LockTimeout)
		if err := pg.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		store, pinger = pg, pg
	}

	// Payment provider
	var provider billing.Provider
	switch cfg.Stripe.Provider {
	case "mock":
		logger.Warn("Using mock billing provider; online payments are simulated")
		provider = billing.NewMockProvider()
	default:
		sp, err := billing.NewStripeProvider(billing.StripeConfig{
			APIKey:        cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Currency:      cfg.Checkout.Currency,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize stripe: %w", err)
		}
		provider = sp
	}

	// Order events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer np.Close()
		publisher = np
		logger.Info("Publishing order events to NATS", "url", cfg.NATS.URL)
	}

	// Webhook de-duplication
	var seen idempotency.Store
	if cfg.Redis.URL != "" {
		rs, err := idempotency.NewRedisStoreFromURL(ctx, cfg.Redis.URL, idempotency.DefaultTTL)
		if err != nil {
			return err
		}
		defer rs.Close()
		seen = rs
	} else {
		seen = idempotency.NewMemoryStore(idempotency.DefaultTTL)
	}

	// Email
	var sender email.Sender
	if cfg.Email.Host != "" {
		sender = email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	} else {
		logger.Warn("SMTP_HOST not set; receipts are logged instead of sent")
		sender = email.NewLogSender(logger)
	}
	emailService, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Metrics
	businessMetrics := telemetry.NewBusinessMetrics("bookstore", prometheus.DefaultRegisterer)
	httpMetrics := middleware.NewMetrics("bookstore", prometheus.DefaultRegisterer)

	// Services
	stockService, err := service.NewStockService(store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize stock service: %w", err)
	}
	cartService, err := service.NewCartService(store, businessMetrics, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cart service: %w", err)
	}
	checkoutService, err := service.NewCheckoutService(store, provider, publisher, businessMetrics, logger, service.CheckoutConfig{
		BaseURL:        cfg.BaseURL,
		Currency:       cfg.Checkout.Currency,
		SessionTimeout: cfg.Checkout.LockTimeout * 4 / 5,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize checkout service: %w", err)
	}
	paymentService, err := service.NewPaymentService(store, provider, publisher, businessMetrics, logger, service.PaymentConfig{
		Currency:          cfg.Checkout.Currency,
		ReceiptMaxRetries: receiptMaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize payment service: %w", err)
	}
	orderService, err := service.NewOrderService(store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize order service: %w", err)
	}

	// Background worker
	w := worker.NewWorker(store, emailService, businessMetrics, worker.Config{
		PollInterval:   cfg.Worker.PollInterval,
		MaxConcurrency: cfg.Worker.Concurrency,
	}, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker stopped", "error", err)
		}
	}()

	// Rate limiting
	checkoutLimiter := middleware.NewRateLimiter(middleware.CheckoutRateLimiterConfig())
	defer checkoutLimiter.Stop()

	// Router
	r := router.New(
		middleware.RequestID,
		middleware.WithIdentity,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
		router.Recovery(logger),
		httpMetrics.Middleware,
		telemetry.SentryMiddleware(),
	)

	routes.RegisterSystemRoutes(r, routes.SystemDeps{
		HealthHandler:  handler.NewHealthHandler(pinger, logger),
		MetricsHandler: httpMetrics.Handler(),
	})
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		CartHandler:     api.NewCartHandler(cartService, logger),
		CheckoutHandler: api.NewCheckoutHandler(checkoutService, logger),
		OrderHandler:    api.NewOrderHandler(orderService),
		CheckoutLimit:   checkoutLimiter.Middleware,
	})
	routes.RegisterPaymentRoutes(r, routes.PaymentDeps{
		PaymentHandler: api.NewPaymentHandler(paymentService, businessMetrics, logger),
	})
	routes.RegisterAdminRoutes(r, routes.AdminDeps{
		OrderHandler: admin.NewOrderHandler(orderService, logger),
		StockHandler: admin.NewStockHandler(stockService, logger),
	})
	stripeHandler := webhook.NewStripeHandler(provider, paymentService, seen, businessMetrics, logger)
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: stripeHandler.HandleWebhook,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           routes.Handler(r, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-workerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	<-workerDone
	return nil
}

// seedCatalog gives the in-memory store a few books to sell.
func seedCatalog(ctx context.Context, mem *repository.MemoryStore) error {
	books := []struct {
		title, author, genre, price string
		stock                       int32
	}{
		{"Dune", "Frank Herbert", "Science Fiction", "9.99", 10},
		{"Emma", "Jane Austen", "Classics", "7.50", 3},
		{"The Hobbit", "J.R.R. Tolkien", "Fantasy", "12.00", 5},
	}

	for _, b := range books {
		id, err := mem.AddBook(ctx, b.title, b.author, b.genre, decimal.RequireFromString(b.price))
		if err != nil {
			return err
		}
		err = mem.ExecTx(ctx, func(q repository.Querier) error {
			_, err := q.UpsertStock(ctx, repository.UpsertStockParams{BookID: id, Quantity: b.stock})
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
