package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusFailed     OrderStatus = "FAILED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodCard  PaymentMethod = "CARD"
	PaymentMethodMpesa PaymentMethod = "MPESA"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodMpesa
}

// PaymentOutcome is the result of a single gateway charge attempt.
type PaymentOutcome string

const (
	PaymentOutcomeCompleted PaymentOutcome = "COMPLETED"
	PaymentOutcomePending   PaymentOutcome = "PENDING"
	PaymentOutcomeFailed    PaymentOutcome = "FAILED"
)

// Order is the immutable record of a checkout. Total and the item
// prices are frozen at creation; only Status and PaymentStatus move
// afterward, and only forward.
type Order struct {
	ID              int64         `db:"id" json:"id"`
	UserID          int64         `db:"user_id" json:"user_id"`
	Total           int64         `db:"total" json:"total"`
	Status          OrderStatus   `db:"status" json:"status"`
	PaymentMethod   PaymentMethod `db:"payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"payment_status"`
	ShippingAddress string        `db:"shipping_address" json:"shipping_address,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

type OrderItem struct {
	ID              int64 `db:"id" json:"id"`
	OrderID         int64 `db:"order_id" json:"order_id"`
	ProductID       int64 `db:"product_id" json:"product_id"`
	Quantity        int   `db:"quantity" json:"quantity"`
	PriceAtPurchase int64 `db:"price_at_purchase" json:"price_at_purchase"`

	Product *Product `db:"-" json:"product,omitempty"`
}

// StatusAfter derives the order status that accompanies a payment
// outcome: PROCESSING only once payment completed, otherwise the order
// stays PENDING for retry or reconciliation.
func StatusAfter(outcome PaymentOutcome) (OrderStatus, PaymentStatus) {
	switch outcome {
	case PaymentOutcomeCompleted:
		return OrderStatusProcessing, PaymentStatusCompleted
	case PaymentOutcomeFailed:
		return OrderStatusPending, PaymentStatusFailed
	default:
		return OrderStatusPending, PaymentStatusPending
	}
}
