package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")

	// ErrTransientStore marks lock contention or deadlock in the
	// relational store; the whole checkout unit of work is safe to
	// retry.
	ErrTransientStore = errors.New("transient store error")
)

// InsufficientStockError reports a failed stock reservation. The
// reservation made no change; available is the persisted stock at the
// moment of the attempt.
type InsufficientStockError struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}
