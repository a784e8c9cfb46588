package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/joao-fontenele/storefront-orders/internal/config"
	"github.com/joao-fontenele/storefront-orders/internal/email"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
	"github.com/joao-fontenele/storefront-orders/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8084")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	tel, err := telemetry.Init(ctx, "email", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = tel.Shutdown(ctx) }()

	var sender email.Sender = email.NewLogSender(logger)
	if cfg.SMTP.Enabled() {
		smtp, err := email.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logger.Error("failed to configure smtp", "error", err)
			os.Exit(1)
		}
		sender = smtp
		logger.Info("delivering email over smtp", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
	} else {
		logger.Warn("SMTP_HOST not set, emails are only logged")
	}

	handler := email.NewHandler(sender, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", telemetry.WithHTTPRoute(handler.HandleSend))
	mux.Handle("GET /metrics", tel.MetricsHandler)
	mux.HandleFunc("GET /healthz", httpx.Healthz)

	server := httpx.NewServer(cfg.Port, telemetry.InstrumentHandler(mux, "email"))
	if err := httpx.Run(logger, "email", server); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
