package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokoni/storefront/internal/core/domain"
)

func beginMockTx(t *testing.T) (*sqlx.Tx, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectBegin()
	tx, err := sqlx.NewDb(db, "mysql").BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	return tx, mock
}

func TestReserve_DecrementsAndReturnsNewStock(t *testing.T) {
	tx, mock := beginMockTx(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WithArgs(3, int64(9), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM products WHERE id = ?")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(7))

	var ledger StockLedger
	newStock, err := ledger.Reserve(context.Background(), tx, 9, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, newStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_InsufficientStockMakesNoChange(t *testing.T) {
	tx, mock := beginMockTx(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WithArgs(5, int64(9), 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM products WHERE id = ?")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(2))

	var ledger StockLedger
	_, err := ledger.Reserve(context.Background(), tx, 9, 5)

	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(9), ise.ProductID)
	assert.Equal(t, 5, ise.Requested)
	assert.Equal(t, 2, ise.Available)
}

func TestReserve_UnknownProduct(t *testing.T) {
	tx, mock := beginMockTx(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WithArgs(1, int64(404), 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock FROM products WHERE id = ?")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}))

	var ledger StockLedger
	_, err := ledger.Reserve(context.Background(), tx, 404, 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}
