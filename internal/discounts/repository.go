// Package discounts looks up discount codes.
package discounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/postgres"
)

type Repository struct {
	db postgres.DBTX
}

func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// GetActive returns the discount for code when it is active at now, or nil.
// Codes are matched case-insensitively.
func (r *Repository) GetActive(ctx context.Context, code string, now time.Time) (*domain.Discount, error) {
	d := &domain.Discount{}
	var startsAt, endsAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, discount_type, discount_value, start_date, end_date, is_active
		FROM discounts
		WHERE UPPER(code) = $1
	`, strings.ToUpper(strings.TrimSpace(code))).Scan(&d.ID, &d.Code, &d.Type, &d.Value, &startsAt, &endsAt, &d.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get discount %q: %w", code, err)
	}

	d.StartsAt = startsAt.Time
	d.EndsAt = endsAt.Time
	if !d.ActiveAt(now) {
		return nil, nil
	}
	return d, nil
}
