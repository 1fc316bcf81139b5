package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/sokoni/storefront/internal/core/domain"
	"github.com/sokoni/storefront/internal/port"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

type CartService struct {
	carts  port.CartRepository
	logger zerolog.Logger
}

func NewCartService(carts port.CartRepository, logger zerolog.Logger) *CartService {
	return &CartService{
		carts:  carts,
		logger: logger.With().Str("component", "cart").Logger(),
	}
}

func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.CartSnapshot, error) {
	return s.carts.Snapshot(ctx, userID)
}

func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.carts.AddItem(ctx, userID, productID, quantity)
}

// UpdateItem sets the quantity of a cart line; a quantity below one
// removes the line and returns nil.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*domain.CartItem, error) {
	return s.carts.UpdateItem(ctx, userID, itemID, quantity)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	return s.carts.RemoveItem(ctx, userID, itemID)
}

func (s *CartService) Clear(ctx context.Context, userID int64) error {
	return s.carts.Clear(ctx, userID)
}
