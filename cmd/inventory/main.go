package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/config"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
	"github.com/joao-fontenele/storefront-orders/internal/inventory"
	"github.com/joao-fontenele/storefront-orders/internal/postgres"
	"github.com/joao-fontenele/storefront-orders/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8082")
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

	tel, err := telemetry.Init(ctx, "inventory", cfg.ServiceVersion)
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

	authn := auth.NewAuthenticator(cfg.JWTSecret, logger)
	handler := inventory.NewHandler(inventory.NewProductRepository(db), logger)

	mux := http.NewServeMux()
	inventory.RegisterRoutes(mux, handler, authn, logger)
	mux.Handle("GET /metrics", tel.MetricsHandler)
	mux.HandleFunc("GET /healthz", httpx.Healthz)

	server := httpx.NewServer(cfg.Port, telemetry.InstrumentHandler(mux, "inventory"))
	if err := httpx.Run(logger, "inventory", server); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
