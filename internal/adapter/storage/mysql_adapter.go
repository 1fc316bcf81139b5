package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/sokoni/storefront/internal/core/domain"
)

// MySQLAdapter implements port.OrderRepository and port.CartRepository
// against a single MySQL database. All multi-row invariants (order +
// items + stock + cart deletion) are enforced inside one transaction.
type MySQLAdapter struct {
	db     *sqlx.DB
	ledger StockLedger
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// MySQL error numbers for deadlock and lock wait timeout; both mean
// the unit of work is safe to retry.
const (
	mysqlErrLockDeadlock    = 1213
	mysqlErrLockWaitTimeout = 1205
)

func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == mysqlErrLockDeadlock || me.Number == mysqlErrLockWaitTimeout) {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	return err
}

type checkoutLine struct {
	ProductID int64 `db:"product_id"`
	Quantity  int   `db:"quantity"`
	Price     int64 `db:"price"`
}

func (a *MySQLAdapter) PlaceOrder(ctx context.Context, userID int64, shippingAddress string, method domain.PaymentMethod) (*domain.Order, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", classify(err))
	}
	defer tx.Rollback()

	// Price snapshot: cart lines joined to current catalog prices.
	// Ordered by product id so concurrent checkouts touch product rows
	// in the same sequence.
	var lines []checkoutLine
	err = tx.SelectContext(ctx, &lines, `
		SELECT ci.product_id, ci.quantity, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = ?
		ORDER BY ci.product_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", classify(err))
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	var total int64
	for _, l := range lines {
		total += l.Price * int64(l.Quantity)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, total, status, payment_method, payment_status, shipping_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, total, domain.OrderStatusPending, method, domain.PaymentStatusPending,
		shippingAddress, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", classify(err))
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("order id: %w", err)
	}

	order := &domain.Order{
		ID:              orderID,
		UserID:          userID,
		Total:           total,
		Status:          domain.OrderStatusPending,
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentStatusPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase)
			VALUES (?, ?, ?, ?)`,
			orderID, l.ProductID, l.Quantity, l.Price,
		); err != nil {
			return nil, fmt.Errorf("insert order item: %w", classify(err))
		}

		if _, err := a.ledger.Reserve(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return nil, classify(err)
		}

		order.Items = append(order.Items, domain.OrderItem{
			OrderID:         orderID,
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Price,
		})
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ?`, userID,
	); err != nil {
		return nil, fmt.Errorf("clear cart: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", classify(err))
	}
	return order, nil
}

func (a *MySQLAdapter) FinalizePayment(ctx context.Context, orderID int64, outcome domain.PaymentOutcome) (bool, error) {
	status, paymentStatus := domain.StatusAfter(outcome)

	// Forward-only: the guard on payment_status makes duplicate
	// webhooks and replayed finalizations a no-op.
	result, err := a.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, payment_status = ?, updated_at = ?
		WHERE id = ? AND payment_status = ?`,
		status, paymentStatus, time.Now().UTC(), orderID, domain.PaymentStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("finalize payment: %w", classify(err))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		err := a.db.QueryRowxContext(ctx,
			`SELECT COUNT(*) FROM orders WHERE id = ?`, orderID,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("check order: %w", classify(err))
		}
		if exists == 0 {
			return false, domain.ErrOrderNotFound
		}
		return false, nil
	}
	return true, nil
}

func (a *MySQLAdapter) GetOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	query := `SELECT id, user_id, total, status, payment_method, payment_status, shipping_address, created_at, updated_at
		FROM orders WHERE id = ?`
	args := []interface{}{orderID}
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	var order domain.Order
	err := a.db.GetContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", classify(err))
	}

	items, err := a.loadItems(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return &order, nil
}

func (a *MySQLAdapter) ListOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	var orders []domain.Order
	err := a.db.SelectContext(ctx, &orders, `
		SELECT id, user_id, total, status, payment_method, payment_status, shipping_address, created_at, updated_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", classify(err))
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := a.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (a *MySQLAdapter) ListOrphanedOrders(ctx context.Context, olderThan time.Time, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := a.db.SelectContext(ctx, &orders, `
		SELECT id, user_id, total, status, payment_method, payment_status, shipping_address, created_at, updated_at
		FROM orders
		WHERE status = ? AND payment_status = ? AND created_at < ?
		ORDER BY created_at
		LIMIT ?`,
		domain.OrderStatusPending, domain.PaymentStatusPending, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orphaned orders: %w", classify(err))
	}
	return orders, nil
}

type hydratedItemRow struct {
	ID              int64          `db:"id"`
	OrderID         int64          `db:"order_id"`
	ProductID       int64          `db:"product_id"`
	Quantity        int            `db:"quantity"`
	PriceAtPurchase int64          `db:"price_at_purchase"`
	ProductName     string         `db:"product_name"`
	ProductPrice    int64          `db:"product_price"`
	ProductImage    sql.NullString `db:"product_image"`
	CategoryID      int64          `db:"category_id"`
	CategoryName    string         `db:"category_name"`
}

func (a *MySQLAdapter) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	query, args, err := sqlx.In(`
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_purchase,
		       p.name AS product_name, p.price AS product_price, p.image_url AS product_image,
		       c.id AS category_id, c.name AS category_name
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE oi.order_id IN (?)
		ORDER BY oi.id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	var rows []hydratedItemRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load order items: %w", classify(err))
	}

	out := make(map[int64][]domain.OrderItem, len(orderIDs))
	for _, r := range rows {
		out[r.OrderID] = append(out[r.OrderID], domain.OrderItem{
			ID:              r.ID,
			OrderID:         r.OrderID,
			ProductID:       r.ProductID,
			Quantity:        r.Quantity,
			PriceAtPurchase: r.PriceAtPurchase,
			Product: &domain.Product{
				ID:         r.ProductID,
				Name:       r.ProductName,
				Price:      r.ProductPrice,
				ImageURL:   r.ProductImage,
				CategoryID: r.CategoryID,
				Category: &domain.Category{
					ID:   r.CategoryID,
					Name: r.CategoryName,
				},
			},
		})
	}
	return out, nil
}
