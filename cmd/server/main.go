package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/di"
	"github.com/sitemilenibarros/backend/internal/events"
	"github.com/sitemilenibarros/backend/internal/gateway"
	"github.com/sitemilenibarros/backend/internal/router"
	"github.com/sitemilenibarros/backend/internal/service"
	"github.com/sitemilenibarros/backend/internal/worker"
	"github.com/sitemilenibarros/backend/pkg/config"
	"github.com/sitemilenibarros/backend/pkg/database"
	"github.com/sitemilenibarros/backend/pkg/logger"
	pkgmiddleware "github.com/sitemilenibarros/backend/pkg/middleware"
	pkgredis "github.com/sitemilenibarros/backend/pkg/redis"
	"github.com/sitemilenibarros/backend/pkg/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:        logLevel(cfg),
		ServiceName:  cfg.App.Name,
		Development:  cfg.IsDevelopment(),
		OutputPath:   "stdout",
		OTLPEnabled:  cfg.OTel.Enabled,
		OTLPEndpoint: cfg.OTel.CollectorAddr,
		OTLPInsecure: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTel.Enabled {
		if _, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.OTel.ServiceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			CollectorAddr:  cfg.OTel.CollectorAddr,
		}); err != nil {
			log.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = telemetry.Shutdown(shutdownCtx)
			}()
		}
	}

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	var redisClient *pkgredis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = pkgredis.NewRedis(ctx, &pkgredis.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, reset codes fall back to memory", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Brokers[0] != "" {
		kafkaPub, err := events.NewKafkaPublisher(cfg.Kafka.Brokers)
		if err != nil {
			log.Warn("kafka unavailable, status events disabled", zap.Error(err))
			publisher = events.NewNoOpPublisher()
		} else {
			publisher = kafkaPub
		}
	} else {
		publisher = events.NewNoOpPublisher()
	}
	defer publisher.Close()

	var prefGateway gateway.PreferenceGateway
	if cfg.Payment.AccessToken != "" {
		prefGateway = gateway.NewHTTPPreferenceGateway(cfg.Payment.BaseURL, cfg.Payment.AccessToken)
	} else {
		log.Warn("no payment access token configured, using no-op gateway")
		prefGateway = gateway.NewNoOpPreferenceGateway()
	}

	checkoutGateway := gateway.NewStripeCheckoutGateway(
		cfg.Stripe.SecretKey,
		cfg.Stripe.WebhookSecret,
		cfg.Stripe.Currency,
	)

	container := di.NewContainer(&di.ContainerConfig{
		DB:                db,
		Redis:             redisClient,
		Publisher:         publisher,
		PreferenceGateway: prefGateway,
		CheckoutGateway:   checkoutGateway,
		BackURLs: service.BackURLConfig{
			Success:         cfg.Payment.SuccessURL,
			Failure:         cfg.Payment.FailureURL,
			Pending:         cfg.Payment.PendingURL,
			NotificationURL: cfg.Payment.NotificationURL,
		},
		CheckoutURLs: service.CheckoutURLConfig{
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
		},
		Sweeper: worker.SweeperConfig{
			Interval:  cfg.Sweeper.Interval,
			MinAge:    cfg.Sweeper.MinAge,
			BatchSize: cfg.Sweeper.BatchSize,
		},
		Logger: log.Logger,
	})

	if cfg.Sweeper.Enabled {
		container.Sweeper.Start(ctx)
		defer container.Sweeper.Stop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	auditLogger := pkgmiddleware.NewAuditLogger(pkgmiddleware.DefaultAuditConfig(db.Pool()))
	defer auditLogger.Close()
	engine.Use(pkgmiddleware.AuditMiddleware(auditLogger))

	router.SetupRoutes(engine, container, &router.Config{JWTSecret: cfg.JWT.Secret})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.App.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func logLevel(cfg *config.Config) string {
	if cfg.App.Debug {
		return "debug"
	}
	return "info"
}
