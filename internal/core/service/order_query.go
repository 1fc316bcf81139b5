package service

import (
	"context"

	"github.com/sokoni/storefront/internal/core/domain"
	"github.com/sokoni/storefront/internal/port"
)

// OrderQueryService is the read-only path over persisted orders.
type OrderQueryService struct {
	orders port.OrderRepository
}

func NewOrderQueryService(orders port.OrderRepository) *OrderQueryService {
	return &OrderQueryService{orders: orders}
}

// GetOrder fetches a hydrated order scoped to the requesting user;
// privileged callers see any order.
func (s *OrderQueryService) GetOrder(ctx context.Context, orderID, userID int64, privileged bool) (*domain.Order, error) {
	if privileged {
		userID = 0
	}
	return s.orders.GetOrder(ctx, orderID, userID)
}

func (s *OrderQueryService) ListOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.orders.ListOrders(ctx, userID)
}
