// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port           string
	PostgresURL    string
	KafkaBrokers   []string
	RedisAddr      string
	JWTSecret      string
	TaxRate        decimal.Decimal
	ShippingFee    decimal.Decimal
	MigrationsPath string
	ServiceVersion string

	OrdersServiceURL    string
	InventoryServiceURL string
	EmailServiceURL     string

	SMTP SMTPConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled is false when no SMTP host is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// Load reads a .env file when present, then the process environment.
// defaultPort is the listening port used when PORT is unset.
func Load(defaultPort string) (Config, error) {
	_ = godotenv.Load()

	taxRate, err := getDecimal("TAX_RATE", "0.07")
	if err != nil {
		return Config{}, err
	}
	shippingFee, err := getDecimal("SHIPPING_FEE", "5.99")
	if err != nil {
		return Config{}, err
	}
	smtpPort, err := getInt("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Port:           getenv("PORT", defaultPort),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		KafkaBrokers:   splitCSV(os.Getenv("KAFKA_BROKERS")),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TaxRate:        taxRate,
		ShippingFee:    shippingFee,
		MigrationsPath: getenv("MIGRATIONS_PATH", "file://migrations"),
		ServiceVersion: getenv("SERVICE_VERSION", "1.0.0"),

		OrdersServiceURL:    getenv("ORDERS_SERVICE_URL", "http://localhost:8081"),
		InventoryServiceURL: getenv("INVENTORY_SERVICE_URL", "http://localhost:8082"),
		EmailServiceURL:     os.Getenv("EMAIL_SERVICE_URL"),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     smtpPort,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getenv("SMTP_FROM", "orders@storefront.local"),
		},
	}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDecimal(k, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getenv(k, def))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", k, err)
	}
	return d, nil
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", k, err)
	}
	return n, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
