package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sokoni/storefront/internal/core/domain"
)

// StockLedger owns every mutation of Product.stock. Reservation is a
// conditional decrement checked by rows-affected, so two concurrent
// checkouts on the same product serialize at the row and neither can
// drive stock negative. There is no release: a failed checkout rolls
// back the enclosing transaction, which undoes the reservation.
type StockLedger struct{}

// Reserve decrements stock by quantity inside tx and returns the new
// value. On insufficient stock it makes no change and returns
// InsufficientStockError with the persisted availability.
func (StockLedger) Reserve(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) (int, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, updated_at = NOW()
		WHERE id = ? AND stock >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var available int
		err := tx.QueryRowxContext(ctx,
			`SELECT stock FROM products WHERE id = ?`, productID,
		).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("read stock: %w", err)
		}
		return 0, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: available,
		}
	}

	var newStock int
	if err := tx.QueryRowxContext(ctx,
		`SELECT stock FROM products WHERE id = ?`, productID,
	).Scan(&newStock); err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return newStock, nil
}
