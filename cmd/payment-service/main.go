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

	"github.com/Attaullahwazir/Payzenix/internal/alerts"
	"github.com/Attaullahwazir/Payzenix/internal/cipher"
	paycmd "github.com/Attaullahwazir/Payzenix/internal/command"
	"github.com/Attaullahwazir/Payzenix/internal/config"
	"github.com/Attaullahwazir/Payzenix/internal/events"
	"github.com/Attaullahwazir/Payzenix/internal/fraud"
	"github.com/Attaullahwazir/Payzenix/internal/handler"
	"github.com/Attaullahwazir/Payzenix/internal/logging"
	"github.com/Attaullahwazir/Payzenix/internal/metrics"
	"github.com/Attaullahwazir/Payzenix/internal/middleware"
	"github.com/Attaullahwazir/Payzenix/internal/payment"
	payqry "github.com/Attaullahwazir/Payzenix/internal/query"
	"github.com/Attaullahwazir/Payzenix/internal/ratelimit"
	redisClient "github.com/Attaullahwazir/Payzenix/internal/redis"
	"github.com/Attaullahwazir/Payzenix/internal/repository"
	"github.com/Attaullahwazir/Payzenix/internal/settlement"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("payment service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// Database connection
	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.Driver == repository.DriverPostgres && cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("database schema applied", "driver", cfg.Database.Driver)
	}

	// Card cipher
	key, err := cipher.ParseKey(cfg.Security.CardKey)
	if err != nil {
		return fmt.Errorf("card key: %w", err)
	}
	sealer, err := cipher.New(key)
	if err != nil {
		return fmt.Errorf("card cipher: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	deps, err := wireBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	// CQRS: write repo, read repo, view cache
	writeRepo := repository.NewTransactionWriteRepository(db)
	readRepo := repository.NewTransactionReadRepository(db, deps.viewCache)

	orchestrator := payment.NewOrchestrator(
		payment.Config{
			FraudThreshold:   cfg.Fraud.Threshold,
			OperationTimeout: cfg.Payments.OperationTimeout,
		},
		sealer,
		fraud.NewScorer(readRepo, cfg.FraudPolicy()),
		settlement.NewSimulator(cfg.Payments.DeclineCards),
		writeRepo,
		logger,
	)

	// Command + Query services
	commandSvc := paycmd.NewPaymentCommandService(orchestrator, deps.limiter, paycmd.Options{
		Cache:     readRepo,
		Publisher: deps.publisher,
		Stream:    cfg.Events.Stream,
		Metrics:   m,
		Logger:    logger,
	})
	querySvc := payqry.NewPaymentQueryService(readRepo, deps.alertFeed)

	paymentHandler := handler.NewPaymentHandler(commandSvc, querySvc)
	router := newRouter(paymentHandler, m, []byte(cfg.Security.JWTSecret), logger)

	// Fraud alert consumer
	if deps.subscriber != nil {
		go func() {
			if err := deps.subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("alert subscriber stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("payment service starting", "addr", srv.Addr, "events", cfg.Events.Backend, "redis", cfg.Redis.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// backends holds the collaborators whose implementation depends on whether
// Redis and an event bus are configured.
type backends struct {
	limiter    ratelimit.Limiter
	viewCache  *repository.TransactionViewCache
	publisher  events.Publisher
	alertFeed  payqry.AlertLister
	subscriber events.Subscriber
	closers    []func() error
}

func (b *backends) close(logger *slog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warn("failed to close backend", "error", err)
		}
	}
}

func wireBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	limiterCfg := ratelimit.Config{Limit: cfg.Payments.RateLimit, Window: cfg.Payments.RateWindow}
	deps := &backends{limiter: ratelimit.NewMemoryLimiter(limiterCfg)}

	if !cfg.Redis.Enabled {
		logger.Warn("redis disabled: using in-process rate limiting, no view cache")
	} else {
		rdb, err := redisClient.NewClient(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, rdb.Close)
		deps.limiter = ratelimit.NewRedisLimiter(rdb.Client, limiterCfg)
		deps.viewCache = repository.NewTransactionViewCache(rdb.Client, cfg.Redis.CacheTTL, logger)

		if cfg.Events.AlertsEnabled {
			store := alerts.NewStore(rdb.Client, cfg.Events.AlertCapacity)
			deps.alertFeed = store
			consumer := subscriberConfig(cfg, alerts.NewConsumer(store, logger).Handle, logger)
			switch cfg.Events.Backend {
			case "redis":
				deps.subscriber = events.NewRedisSubscriber(rdb.Client, consumer)
			case "kafka":
				deps.subscriber = events.NewKafkaSubscriber(cfg.Events.KafkaBrokers, consumer)
			}
		}

		if cfg.Events.Backend == "redis" {
			deps.publisher = events.NewRedisPublisher(rdb.Client, cfg.Events.StreamMaxLen)
		}
	}

	if cfg.Events.Backend == "kafka" {
		kp := events.NewKafkaPublisher(cfg.Events.KafkaBrokers)
		deps.closers = append(deps.closers, kp.Close)
		deps.publisher = kp
	}

	return deps, nil
}

func subscriberConfig(cfg config.Config, h events.Handler, logger *slog.Logger) events.SubscriberConfig {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "payment-service"
	}
	return events.SubscriberConfig{
		Group:         cfg.Events.ConsumerGroup,
		Consumer:      hostname,
		Stream:        cfg.Events.Stream,
		Handler:       h,
		BlockDuration: 5 * time.Second,
		Logger:        logger,
	}
}

func newRouter(h *handler.PaymentHandler, m *metrics.Metrics, jwtSecret []byte, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger), m.GinMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Payment routes
	v1 := router.Group("/v1/payments", middleware.AuthMiddleware(jwtSecret))
	{
		v1.POST("", h.ProcessPayment)
		v1.GET("", h.ListTransactions)
		v1.GET("/stats", h.GetStats)
		v1.GET("/:transactionId", h.GetTransaction)
	}

	admin := router.Group("/v1/admin", middleware.AuthMiddleware(jwtSecret))
	admin.GET("/fraud-alerts", h.ListFraudAlerts)

	return router
}
