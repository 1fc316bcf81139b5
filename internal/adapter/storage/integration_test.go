package storage

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/sokoni/storefront/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

type fixture struct {
	db        *sqlx.DB
	productID int64
}

func setupFixture(t *testing.T, stock int, price int64) *fixture {
	t.Helper()
	db := getMySQLDB(t)
	ctx := context.Background()

	var categoryID int64
	res, err := db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`,
		"it-"+time.Now().Format("20060102150405.000"))
	if err != nil {
		t.Fatalf("setup category: %v", err)
	}
	categoryID, _ = res.LastInsertId()

	res, err = db.ExecContext(ctx, `
		INSERT INTO products (name, price, stock, category_id) VALUES (?, ?, ?, ?)`,
		"it-product", price, stock, categoryID)
	if err != nil {
		t.Fatalf("setup product: %v", err)
	}
	productID, _ := res.LastInsertId()

	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM order_items WHERE product_id = ?`, productID)
		db.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = ?`, productID)
		db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID)
		db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, categoryID)
		db.Close()
	})
	return &fixture{db: db, productID: productID}
}

func (f *fixture) fillCart(t *testing.T, userID int64, quantity int) {
	t.Helper()
	_, err := f.db.Exec(`
		INSERT INTO cart_items (user_id, product_id, quantity) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
		userID, f.productID, quantity)
	if err != nil {
		t.Fatalf("fill cart: %v", err)
	}
}

func TestPlaceOrder_ConcurrentLastUnit_Integration(t *testing.T) {
	f := setupFixture(t, 1, 100)
	adapter := NewMySQLAdapter(f.db)
	ctx := context.Background()

	userA := time.Now().UnixNano()
	userB := userA + 1
	f.fillCart(t, userA, 1)
	f.fillCart(t, userB, 1)
	t.Cleanup(func() {
		f.db.Exec(`DELETE FROM orders WHERE user_id IN (?, ?)`, userA, userB)
	})

	type result struct {
		order *domain.Order
		err   error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for _, uid := range []int64{userA, userB} {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			o, err := adapter.PlaceOrder(ctx, uid, "", domain.PaymentMethodCard)
			results <- result{o, err}
		}(uid)
	}
	wg.Wait()
	close(results)

	var successes, stockFailures int
	for r := range results {
		switch {
		case r.err == nil:
			successes++
			if r.order.Total != 100 {
				t.Errorf("expected total 100, got %d", r.order.Total)
			}
		case domain.IsInsufficientStock(r.err):
			stockFailures++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if successes != 1 || stockFailures != 1 {
		t.Errorf("expected 1 success and 1 stock failure, got %d/%d", successes, stockFailures)
	}

	var stock int
	f.db.QueryRow(`SELECT stock FROM products WHERE id = ?`, f.productID).Scan(&stock)
	if stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
}

func TestPlaceOrder_PriceFreeze_Integration(t *testing.T) {
	f := setupFixture(t, 10, 50)
	adapter := NewMySQLAdapter(f.db)
	ctx := context.Background()

	userID := time.Now().UnixNano()
	f.fillCart(t, userID, 2)

	order, err := adapter.PlaceOrder(ctx, userID, "", domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Total != 100 {
		t.Fatalf("expected total 100, got %d", order.Total)
	}
	t.Cleanup(func() {
		f.db.Exec(`DELETE FROM order_items WHERE order_id = ?`, order.ID)
		f.db.Exec(`DELETE FROM orders WHERE id = ?`, order.ID)
	})

	if _, err := f.db.Exec(`UPDATE products SET price = 9999 WHERE id = ?`, f.productID); err != nil {
		t.Fatalf("reprice: %v", err)
	}

	reread, err := adapter.GetOrder(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if reread.Total != 100 {
		t.Errorf("catalog drift leaked into order total: %d", reread.Total)
	}
	if reread.Items[0].PriceAtPurchase != 50 {
		t.Errorf("expected frozen price 50, got %d", reread.Items[0].PriceAtPurchase)
	}
}

func TestFinalizePayment_ForwardOnly_Integration(t *testing.T) {
	f := setupFixture(t, 10, 50)
	adapter := NewMySQLAdapter(f.db)
	ctx := context.Background()

	userID := time.Now().UnixNano()
	f.fillCart(t, userID, 1)

	order, err := adapter.PlaceOrder(ctx, userID, "", domain.PaymentMethodMpesa)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	t.Cleanup(func() {
		f.db.Exec(`DELETE FROM order_items WHERE order_id = ?`, order.ID)
		f.db.Exec(`DELETE FROM orders WHERE id = ?`, order.ID)
	})

	applied, err := adapter.FinalizePayment(ctx, order.ID, domain.PaymentOutcomeCompleted)
	if err != nil || !applied {
		t.Fatalf("first finalize: applied=%v err=%v", applied, err)
	}

	// Replay and a late FAILED must both be no-ops.
	for _, outcome := range []domain.PaymentOutcome{domain.PaymentOutcomeCompleted, domain.PaymentOutcomeFailed} {
		applied, err = adapter.FinalizePayment(ctx, order.ID, outcome)
		if err != nil {
			t.Fatalf("replay finalize: %v", err)
		}
		if applied {
			t.Errorf("outcome %s must not re-apply", outcome)
		}
	}

	final, err := adapter.GetOrder(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if final.PaymentStatus != domain.PaymentStatusCompleted || final.Status != domain.OrderStatusProcessing {
		t.Errorf("unexpected final state %s/%s", final.Status, final.PaymentStatus)
	}
}
