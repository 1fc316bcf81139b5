package port

import (
	"context"
	"time"

	"github.com/sokoni/storefront/internal/core/domain"
)

type OrderRepository interface {
	// PlaceOrder runs the checkout unit of work in one transaction:
	// price-snapshots the user's cart, creates the order and its
	// items, reserves stock per line and deletes the cart lines.
	// Nothing is visible to other requests until commit; any failure
	// rolls the whole unit back.
	PlaceOrder(ctx context.Context, userID int64, shippingAddress string, method domain.PaymentMethod) (*domain.Order, error)

	// FinalizePayment applies a gateway outcome to an order. The state
	// machine only moves forward: once payment_status has left
	// PENDING the call is a no-op and reports applied=false.
	FinalizePayment(ctx context.Context, orderID int64, outcome domain.PaymentOutcome) (applied bool, err error)

	// GetOrder returns a hydrated order (items, product, category).
	// userID scopes the lookup; pass 0 for a privileged, unscoped read.
	GetOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error)

	// ListOrders returns a user's orders, newest first, hydrated.
	ListOrders(ctx context.Context, userID int64) ([]domain.Order, error)

	// ListOrphanedOrders finds orders whose checkout committed but
	// whose payment outcome was never recorded (PENDING/PENDING older
	// than the cutoff).
	ListOrphanedOrders(ctx context.Context, olderThan time.Time, limit int) ([]domain.Order, error)
}

type CartRepository interface {
	// Snapshot joins the user's cart lines to current catalog rows and
	// computes a display total.
	Snapshot(ctx context.Context, userID int64) (*domain.CartSnapshot, error)

	// AddItem upserts a cart line for (userID, productID). It checks
	// availability but never touches stock; stock moves only when the
	// checkout transaction reserves it.
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error)

	// UpdateItem sets a cart line's quantity; quantity < 1 removes it.
	UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*domain.CartItem, error)

	RemoveItem(ctx context.Context, userID, itemID int64) error

	Clear(ctx context.Context, userID int64) error
}
