package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sokoni/storefront/internal/core/domain"
)

type snapshotRow struct {
	ID           int64          `db:"id"`
	UserID       int64          `db:"user_id"`
	ProductID    int64          `db:"product_id"`
	Quantity     int            `db:"quantity"`
	CreatedAt    time.Time      `db:"created_at"`
	ProductName  string         `db:"product_name"`
	ProductPrice int64          `db:"product_price"`
	ProductStock int            `db:"product_stock"`
	ProductImage sql.NullString `db:"product_image"`
	CategoryID   int64          `db:"category_id"`
	CategoryName string         `db:"category_name"`
}

func (a *MySQLAdapter) Snapshot(ctx context.Context, userID int64) (*domain.CartSnapshot, error) {
	var rows []snapshotRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at,
		       p.name AS product_name, p.price AS product_price, p.stock AS product_stock,
		       p.image_url AS product_image,
		       c.id AS category_id, c.name AS category_name
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE ci.user_id = ?
		ORDER BY ci.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("cart snapshot: %w", classify(err))
	}

	snapshot := &domain.CartSnapshot{Items: make([]domain.CartItem, 0, len(rows))}
	for _, r := range rows {
		snapshot.Total += r.ProductPrice * int64(r.Quantity)
		snapshot.Items = append(snapshot.Items, domain.CartItem{
			ID:        r.ID,
			UserID:    r.UserID,
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			CreatedAt: r.CreatedAt,
			Product: &domain.Product{
				ID:         r.ProductID,
				Name:       r.ProductName,
				Price:      r.ProductPrice,
				Stock:      r.ProductStock,
				ImageURL:   r.ProductImage,
				CategoryID: r.CategoryID,
				Category:   &domain.Category{ID: r.CategoryID, Name: r.CategoryName},
			},
		})
	}
	return snapshot, nil
}

func (a *MySQLAdapter) AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error) {
	var product domain.Product
	err := a.db.GetContext(ctx, &product, `
		SELECT id, name, description, price, stock, category_id, image_url, created_at, updated_at
		FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", classify(err))
	}

	// Availability check only. Stock is reserved at checkout by the
	// ledger; decrementing here would double-count.
	if product.Stock < quantity {
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.Stock,
		}
	}

	// The (user_id, product_id) unique key turns a repeat add into a
	// quantity bump.
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		userID, productID, quantity, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert cart item: %w", classify(err))
	}

	return a.getCartItem(ctx, userID, productID)
}

func (a *MySQLAdapter) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*domain.CartItem, error) {
	var item domain.CartItem
	err := a.db.GetContext(ctx, &item, `
		SELECT id, user_id, product_id, quantity, created_at
		FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", classify(err))
	}

	if quantity < 1 {
		if _, err := a.db.ExecContext(ctx,
			`DELETE FROM cart_items WHERE id = ?`, item.ID,
		); err != nil {
			return nil, fmt.Errorf("delete cart item: %w", classify(err))
		}
		return nil, nil
	}

	if _, err := a.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ? WHERE id = ?`, quantity, item.ID,
	); err != nil {
		return nil, fmt.Errorf("update cart item: %w", classify(err))
	}

	return a.getCartItem(ctx, userID, item.ProductID)
}

func (a *MySQLAdapter) RemoveItem(ctx context.Context, userID, itemID int64) error {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", classify(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (a *MySQLAdapter) Clear(ctx context.Context, userID int64) error {
	if _, err := a.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("clear cart: %w", classify(err))
	}
	return nil
}

func (a *MySQLAdapter) getCartItem(ctx context.Context, userID, productID int64) (*domain.CartItem, error) {
	var r snapshotRow
	err := a.db.GetContext(ctx, &r, `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at,
		       p.name AS product_name, p.price AS product_price, p.stock AS product_stock,
		       p.image_url AS product_image,
		       c.id AS category_id, c.name AS category_name
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE ci.user_id = ? AND ci.product_id = ?`,
		userID, productID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", classify(err))
	}

	return &domain.CartItem{
		ID:        r.ID,
		UserID:    r.UserID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		CreatedAt: r.CreatedAt,
		Product: &domain.Product{
			ID:         r.ProductID,
			Name:       r.ProductName,
			Price:      r.ProductPrice,
			Stock:      r.ProductStock,
			ImageURL:   r.ProductImage,
			CategoryID: r.CategoryID,
			Category:   &domain.Category{ID: r.CategoryID, Name: r.CategoryName},
		},
	}, nil
}
