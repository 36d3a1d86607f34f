package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toko-orders/internal/app"
	"toko-orders/internal/config"
	"toko-orders/internal/idempotency"
	"toko-orders/internal/logger"
	"toko-orders/internal/middleware"
	"toko-orders/internal/repositories"
	"toko-orders/internal/services"
	"toko-orders/pkg/rabbitmq"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "toko-orders: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repositories.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	products := repositories.NewGORMProductRepository(db)
	orders := repositories.NewGORMOrderRepository(db, cfg.CommitTimeout)
	users := repositories.NewGORMUserRepository(db)

	g, gctx := errgroup.WithContext(ctx)

	cache, closeCache, err := newIdempotencyCache(gctx, g, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log.Named("rabbitmq"))
		if err != nil {
			return err
		}
		defer mq.Close()
		publisher = mq

		g.Go(func() error {
			return mq.ConsumeOrderEvents(gctx, rabbitmq.LoggingHandler(log.Named("consumer")))
		})
	} else {
		log.Warn("RABBITMQ_URL is empty, order events are not published")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	g.Go(func() error {
		limiter.Run(gctx, time.Minute)
		return nil
	})

	application, svc := app.New(app.Deps{
		Products:    products,
		Orders:      orders,
		Users:       users,
		Idempotency: cache,
		Publisher:   publisher,
		Limiter:     limiter,
		Retry:       services.RetryPolicy{MaxRetries: cfg.CommitMaxRetries, Backoff: cfg.CommitRetryBackoff},
		JWTSecret:   cfg.JWTSecret,
		Log:         log,
	})

	if cfg.SeedDemoData {
		if err := app.Seed(ctx, products, users, svc.Auth, cfg.SeedAdminPassword, log.Named("seed")); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	g.Go(func() error {
		log.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("env", cfg.AppEnv))
		return application.Listen(cfg.AppPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		return application.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server gracefully stopped")
	return nil
}

// newIdempotencyCache builds the configured backend. The in-process cache
// gets a janitor goroutine in g; Redis expires keys on its own.
func newIdempotencyCache(ctx context.Context, g *errgroup.Group, cfg config.Config, log *zap.Logger) (idempotency.Cache, func(), error) {
	switch cfg.IdempotencyBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		cache, err := idempotency.NewRedisCache(rdb, idempotency.RedisOptions{
			Window:    cfg.IdempotencyWindow,
			Retention: cfg.IdempotencyRetention,
		})
		if err != nil {
			rdb.Close()
			return nil, nil, err
		}
		log.Info("idempotency backend: redis", zap.String("addr", cfg.RedisAddr))
		return cache, func() { _ = rdb.Close() }, nil

	default:
		cache, err := idempotency.NewMemoryCache(idempotency.Options{
			Window:    cfg.IdempotencyWindow,
			Retention: cfg.IdempotencyRetention,
			Capacity:  cfg.IdempotencyCapacity,
		}, log.Named("idempotency"))
		if err != nil {
			return nil, nil, err
		}
		g.Go(func() error {
			cache.Run(ctx, cfg.IdempotencySweepInterval)
			return nil
		})
		log.Info("idempotency backend: memory", zap.Int("capacity", cfg.IdempotencyCapacity))
		return cache, func() {}, nil
	}
}
