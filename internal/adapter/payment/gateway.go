package payment

import (
	"context"
	"fmt"

	"github.com/sokoni/storefront/internal/core/domain"
	"github.com/sokoni/storefront/internal/port"
)

// Selector routes a charge to the gateway for its payment method, so
// method-specific behavior never leaks into the orchestrator.
type Selector struct {
	gateways map[domain.PaymentMethod]port.PaymentGateway
}

func NewSelector(card, mpesa port.PaymentGateway) *Selector {
	return &Selector{
		gateways: map[domain.PaymentMethod]port.PaymentGateway{
			domain.PaymentMethodCard:  card,
			domain.PaymentMethodMpesa: mpesa,
		},
	}
}

func (s *Selector) Charge(ctx context.Context, req port.ChargeRequest) (domain.PaymentOutcome, error) {
	gw, ok := s.gateways[req.Method]
	if !ok {
		return domain.PaymentOutcomeFailed, fmt.Errorf("unsupported payment method %q", req.Method)
	}
	return gw.Charge(ctx, req)
}
