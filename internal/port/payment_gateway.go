package port

import (
	"context"

	"github.com/sokoni/storefront/internal/core/domain"
)

// ChargeRequest carries everything a gateway needs for one attempt.
// The idempotency key is derived from the order id so a retried call
// can never double-charge.
type ChargeRequest struct {
	OrderID        int64
	AmountMinor    int64
	Currency       string
	Method         domain.PaymentMethod
	IdempotencyKey string
}

type PaymentGateway interface {
	// Charge attempts to authorize and capture the amount. Callers
	// must treat any error, including timeout, as a FAILED outcome,
	// never as COMPLETED.
	Charge(ctx context.Context, req ChargeRequest) (domain.PaymentOutcome, error)
}
