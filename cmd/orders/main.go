package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront-orders/internal/addresses"
	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/cart"
	"github.com/joao-fontenele/storefront-orders/internal/config"
	"github.com/joao-fontenele/storefront-orders/internal/discounts"
	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
	"github.com/joao-fontenele/storefront-orders/internal/idempotency"
	"github.com/joao-fontenele/storefront-orders/internal/inventory"
	"github.com/joao-fontenele/storefront-orders/internal/messaging"
	"github.com/joao-fontenele/storefront-orders/internal/orders"
	"github.com/joao-fontenele/storefront-orders/internal/postgres"
	"github.com/joao-fontenele/storefront-orders/internal/pricing"
	"github.com/joao-fontenele/storefront-orders/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8081")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	tel, err := telemetry.Init(ctx, "orders", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(ctx) }()

	db, err := postgres.Connect(ctx, cfg.PostgresURL, postgres.DefaultPool)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	engine, err := pricing.NewEngine(cfg.TaxRate, cfg.ShippingFee)
	if err != nil {
		logger.Error("invalid pricing configuration", "error", err)
		os.Exit(1)
	}

	metrics, err := orders.NewMetrics(otel.Meter("orders"))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	opts := []orders.Option{
		orders.WithDiscounts(discounts.NewRepository(db)),
		orders.WithMetrics(metrics),
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicOrderEvents)
		defer func() { _ = producer.Close() }()
		opts = append(opts, orders.WithPublisher(producer))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events are disabled")
	}

	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		idemStore = idempotency.NewRedisStore(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, idempotency keys are kept in memory")
	}

	products := inventory.NewProductRepository(db)
	service := orders.NewService(orders.NewOrderRepository(db), products, addresses.NewRepository(db), engine, logger, opts...)
	cartService := cart.NewService(cart.NewRepository(db), products, engine)

	mux := http.NewServeMux()
	orders.RegisterRoutes(mux, orders.Routes{
		Orders:      orders.NewHandler(service, logger),
		Cart:        cart.NewHandler(cartService, logger),
		Auth:        auth.NewAuthenticator(cfg.JWTSecret, logger),
		Idempotency: idempotency.Middleware(idemStore, logger, 24*time.Hour),
		Logger:      logger,
	})
	mux.Handle("GET /metrics", tel.MetricsHandler)
	mux.HandleFunc("GET /healthz", httpx.Healthz)

	server := httpx.NewServer(cfg.Port, telemetry.InstrumentHandler(mux, "orders"))
	if err := httpx.Run(logger, "orders", server); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
