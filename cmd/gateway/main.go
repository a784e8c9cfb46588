package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joao-fontenele/storefront-orders/internal/config"
	"github.com/joao-fontenele/storefront-orders/internal/gateway"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
	"github.com/joao-fontenele/storefront-orders/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8080")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	tel, err := telemetry.Init(ctx, "gateway", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(ctx) }()

	httpClient := telemetry.NewHTTPClient(10 * time.Second)
	handler := gateway.NewHandler(
		gateway.NewServiceProxy(cfg.OrdersServiceURL, httpClient),
		gateway.NewServiceProxy(cfg.InventoryServiceURL, httpClient),
		logger,
	)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", tel.MetricsHandler)

	server := httpx.NewServer(cfg.Port, telemetry.InstrumentHandler(mux, "gateway"))
	if err := httpx.Run(logger, "gateway", server); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
