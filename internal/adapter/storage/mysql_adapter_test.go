package storage

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokoni/storefront/internal/core/domain"
)

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLAdapter(sqlx.NewDb(db, "mysql")), mock
}

func TestPlaceOrder_Success(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ci.product_id, ci.quantity, p.price")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "price"}).
			AddRow(1, 2, 50).
			AddRow(2, 1, 30))

	// Total must come from the snapshot: 2*50 + 1*30.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(int64(7), int64(130), string(domain.OrderStatusPending), string(domain.PaymentMethodCard),
			string(domain.PaymentStatusPending), "12 Moi Ave", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(int64(42), int64(1), 2, int64(50)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WithArgs(2, int64(1), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM products WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(8))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(int64(42), int64(2), 1, int64(30)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WithArgs(1, int64(2), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM products WHERE id = ?")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(4))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE user_id = ?")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	order, err := adapter.PlaceOrder(ctx, 7, "12 Moi Ave", domain.PaymentMethodCard)
	require.NoError(t, err)

	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, int64(130), order.Total)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(50), order.Items[0].PriceAtPurchase)
	assert.Equal(t, int64(30), order.Items[1].PriceAtPurchase)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ci.product_id, ci.quantity, p.price")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "price"}))
	mock.ExpectRollback()

	_, err := adapter.PlaceOrder(context.Background(), 7, "", domain.PaymentMethodCard)
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ci.product_id, ci.quantity, p.price")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "price"}).
			AddRow(1, 3, 100))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Conditional decrement misses: stock < requested.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WithArgs(3, int64(1), 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM products WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(1))
	mock.ExpectRollback()

	_, err := adapter.PlaceOrder(context.Background(), 7, "", domain.PaymentMethodCard)

	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(1), ise.ProductID)
	assert.Equal(t, 3, ise.Requested)
	assert.Equal(t, 1, ise.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrder_DeadlockIsTransient(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ci.product_id, ci.quantity, p.price")).
		WithArgs(int64(7)).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	_, err := adapter.PlaceOrder(context.Background(), 7, "", domain.PaymentMethodCard)
	require.ErrorIs(t, err, domain.ErrTransientStore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizePayment_Applied(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WithArgs(string(domain.OrderStatusProcessing), string(domain.PaymentStatusCompleted),
			sqlmock.AnyArg(), int64(42), string(domain.PaymentStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := adapter.FinalizePayment(context.Background(), 42, domain.PaymentOutcomeCompleted)
	require.NoError(t, err)
	assert.True(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizePayment_AlreadyFinalizedIsNoOp(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE id = ?")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	applied, err := adapter.FinalizePayment(context.Background(), 42, domain.PaymentOutcomeFailed)
	require.NoError(t, err)
	assert.False(t, applied, "duplicate finalization must be a no-op")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizePayment_UnknownOrder(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE id = ?")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := adapter.FinalizePayment(context.Background(), 99, domain.PaymentOutcomeCompleted)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetOrder_ScopedToUser(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? AND user_id = ?")).
		WithArgs(int64(42), int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := adapter.GetOrder(context.Background(), 42, 7)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestAddItem_RejectsOversell(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "price", "stock", "category_id", "image_url", "created_at", "updated_at"}).
			AddRow(1, "P", nil, 100, 2, 1, nil, time.Now(), time.Now()))

	_, err := adapter.AddItem(context.Background(), 7, 1, 5)

	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 2, ise.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}
