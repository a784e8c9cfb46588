package orders

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records checkout outcomes. A nil *Metrics records nothing.
type Metrics struct {
	created   metric.Int64Counter
	failed    metric.Int64Counter
	conflicts metric.Int64Counter
	value     metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	created, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders committed"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("orders_failed_total",
		metric.WithDescription("Order placements rejected, by error code"))
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter("order_stock_conflicts_total",
		metric.WithDescription("Order placements that lost a stock race or failed the stock pre-check"))
	if err != nil {
		return nil, err
	}

	value, err := meter.Float64Histogram("order_value",
		metric.WithDescription("Final price of committed orders"),
		metric.WithExplicitBucketBoundaries(10, 25, 50, 100, 250, 500, 1000, 2500),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{created: created, failed: failed, conflicts: conflicts, value: value}, nil
}

func (m *Metrics) OrderCreated(ctx context.Context, finalPrice decimal.Decimal) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1)
	m.value.Record(ctx, finalPrice.InexactFloat64())
}

func (m *Metrics) OrderFailed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) StockConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}
