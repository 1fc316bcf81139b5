package port

import (
	"context"
	"time"
)

// OrderConfirmedEvent is published after an order reaches PROCESSING.
type OrderConfirmedEvent struct {
	OrderID          int64           `json:"order_id"`
	Total            int64           `json:"total"`
	CreatedAt        time.Time       `json:"created_at"`
	LineItems        []ConfirmedLine `json:"line_items"`
	RecipientAddress string          `json:"recipient_address"`
}

type ConfirmedLine struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

type Notifier interface {
	// OrderConfirmed is best-effort: failures are logged by the caller
	// and never affect the checkout result.
	OrderConfirmed(ctx context.Context, event OrderConfirmedEvent) error
}
