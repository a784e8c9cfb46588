// Package addresses reads the owner-scoped address book.
package addresses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/postgres"
)

type Repository struct {
	db postgres.DBTX
}

func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// GetForOwner returns nil when the address does not exist or belongs to
// someone else.
func (r *Repository) GetForOwner(ctx context.Context, id, ownerID int64) (*domain.Address, error) {
	a := &domain.Address{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, address_type, address_line1, address_line2, landmark,
		       city, state, pin_code, is_default
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`, id, ownerID).Scan(&a.ID, &a.OwnerUserID, &a.AddressType, &a.Line1, &a.Line2, &a.Landmark,
		&a.City, &a.State, &a.PinCode, &a.IsDefault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get address %d: %w", id, err)
	}
	return a, nil
}
