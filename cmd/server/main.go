package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"storefront/internal/config"
	httpctl "storefront/internal/controllers/http"
	mysqlinfra "storefront/internal/infra/mysql"
	"storefront/internal/infra/rabbitmq"
	rediscache "storefront/internal/infra/redis"
	"storefront/internal/repository"
	"storefront/internal/repository/memory"
	mysqlrepo "storefront/internal/repository/mysql"
	"storefront/internal/services"
	"storefront/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	var (
		store  repository.Store
		health = func(context.Context) error { return nil }
	)
	switch cfg.DBDriver {
	case "memory":
		slog.Warn("using in-memory store, data is lost on exit")
		store = memory.NewStore()
	default:
		db, err := mysqlinfra.Open(cfg.MySQL)
		if err != nil {
			return err
		}
		defer func() {
			if err := mysqlinfra.Close(db); err != nil {
				slog.Error("closing mysql pool", "error", err)
			}
		}()
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		store = mysqlrepo.NewStore(db)
		health = sqlDB.PingContext
	}

	var cache services.OrderCache
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			DB:           cfg.Redis.DB,
			PoolSize:     200,
			MinIdleConns: 20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		defer client.Close()
		cache = rediscache.NewOrderCache(client, cfg.Redis.OrderTTL)
	}

	var publisher rabbitmq.PublisherInterface = rabbitmq.NoopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		publisher = pub
	} else {
		slog.Warn("RABBITMQ_URL not set, events are dropped")
	}

	orders := services.NewOrderService(store, publisher, cfg.ReturnWindow)
	payments := services.NewPaymentService(store, orders, publisher)
	if cache != nil {
		orders.SetCache(cache)
		payments.SetCache(cache)
	}

	handler := httpctl.NewHandler(
		services.NewCartService(store),
		orders,
		payments,
		services.NewProductService(store, cfg.LowStockThreshold),
	)
	handler.SetHealthCheck(health)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), httpctl.Telemetry(tp))
	handler.RegisterRoutes(r, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting storefront", "port", cfg.Port, "db_driver", cfg.DBDriver)
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

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
