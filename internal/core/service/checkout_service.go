package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sokoni/storefront/internal/core/domain"
	"github.com/sokoni/storefront/internal/metrics"
	"github.com/sokoni/storefront/internal/port"
)

const (
	// Lock contention retries for the checkout unit of work. Payment
	// is never retried here; a failed charge is recorded and left for
	// the user or the reconciler.
	placeOrderRetries = 2
)

type CheckoutService struct {
	orders        port.OrderRepository
	gateway       port.PaymentGateway
	notifier      port.Notifier
	dedupe        port.Deduplicator
	logger        zerolog.Logger
	metrics       *metrics.CheckoutMetrics
	chargeTimeout time.Duration
	currency      string
}

func NewCheckoutService(
	orders port.OrderRepository,
	gateway port.PaymentGateway,
	notifier port.Notifier,
	dedupe port.Deduplicator,
	logger zerolog.Logger,
	m *metrics.CheckoutMetrics,
	chargeTimeout time.Duration,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		orders:        orders,
		gateway:       gateway,
		notifier:      notifier,
		dedupe:        dedupe,
		logger:        logger.With().Str("component", "checkout").Logger(),
		metrics:       m,
		chargeTimeout: chargeTimeout,
		currency:      currency,
	}
}

// Checkout converts the user's cart into an order. The store-side unit
// of work (price snapshot, order + items, stock reservation, cart
// deletion) commits first; the gateway is charged after commit so its
// latency never extends lock hold time. Whatever the gateway reports
// is persisted before returning.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64, shippingAddress string, method domain.PaymentMethod) (*domain.Order, domain.PaymentOutcome, error) {
	if !method.Valid() {
		return nil, "", fmt.Errorf("unsupported payment method %q", method)
	}

	var order *domain.Order
	var err error
	for attempt := 0; ; attempt++ {
		order, err = s.orders.PlaceOrder(ctx, userID, shippingAddress, method)
		if err == nil || !errors.Is(err, domain.ErrTransientStore) || attempt >= placeOrderRetries {
			break
		}
		s.logger.Warn().Err(err).Int64("user_id", userID).Int("attempt", attempt+1).
			Msg("transient store error, retrying checkout")
	}
	if err != nil {
		s.countCheckout("rejected")
		return nil, "", err
	}

	outcome := s.charge(ctx, order)

	applied, err := s.orders.FinalizePayment(ctx, order.ID, outcome)
	if err != nil {
		// The order row exists with stock reserved and cart cleared;
		// the reconciler will pick it up from PENDING/PENDING.
		s.logger.Error().Err(err).Int64("order_id", order.ID).
			Msg("failed to record payment outcome; order left for reconciliation")
	}

	hydrated, err := s.orders.GetOrder(ctx, order.ID, userID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("order_id", order.ID).Msg("failed to hydrate order")
		hydrated = order
	}

	if applied && outcome == domain.PaymentOutcomeCompleted {
		s.notifyConfirmed(hydrated)
	}

	s.countCheckout(string(outcome))
	return hydrated, outcome, nil
}

// ApplyPaymentCallback finalizes an order from an out-of-band gateway
// settlement (mobile-money). Replays are no-ops: Redis dedupe is the
// fast path and the forward-only guard in the store is the authority.
func (s *CheckoutService) ApplyPaymentCallback(ctx context.Context, orderID int64, outcome domain.PaymentOutcome) error {
	key := fmt.Sprintf("callback:%d:%s", orderID, outcome)
	if first, err := s.dedupe.FirstSeen(ctx, key); err != nil {
		s.logger.Warn().Err(err).Int64("order_id", orderID).Msg("callback dedupe unavailable")
	} else if !first {
		return nil
	}

	applied, err := s.orders.FinalizePayment(ctx, orderID, outcome)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Debug().Int64("order_id", orderID).Str("outcome", string(outcome)).
			Msg("callback ignored, order already finalized")
		return nil
	}

	if outcome == domain.PaymentOutcomeCompleted {
		if order, err := s.orders.GetOrder(ctx, orderID, 0); err == nil {
			s.notifyConfirmed(order)
		}
	}
	return nil
}

// RetryPayment re-charges an orphaned order with the same idempotency
// key, so a charge that actually went through before the crash is not
// made twice. Stock is never touched: it was reserved when the order
// committed.
func (s *CheckoutService) RetryPayment(ctx context.Context, order *domain.Order) error {
	outcome := s.charge(ctx, order)

	applied, err := s.orders.FinalizePayment(ctx, order.ID, outcome)
	if err != nil {
		return err
	}
	if applied && outcome == domain.PaymentOutcomeCompleted {
		if hydrated, err := s.orders.GetOrder(ctx, order.ID, 0); err == nil {
			s.notifyConfirmed(hydrated)
		}
	}
	return nil
}

// charge invokes the gateway with a bounded timeout. Every failure
// path, including timeout, maps to FAILED: an unknown gateway outcome
// must never be recorded as COMPLETED.
func (s *CheckoutService) charge(ctx context.Context, order *domain.Order) domain.PaymentOutcome {
	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	defer cancel()

	outcome, err := s.gateway.Charge(chargeCtx, port.ChargeRequest{
		OrderID:        order.ID,
		AmountMinor:    order.Total,
		Currency:       s.currency,
		Method:         order.PaymentMethod,
		IdempotencyKey: fmt.Sprintf("order-%d", order.ID),
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("order_id", order.ID).Msg("payment attempt failed")
		outcome = domain.PaymentOutcomeFailed
	}

	if s.metrics != nil {
		s.metrics.PaymentAttempts.WithLabelValues(string(order.PaymentMethod), string(outcome)).Inc()
	}
	return outcome
}

// notifyConfirmed queues a best-effort notification once an order has
// reached PROCESSING. It runs detached from the request so a slow or
// dead broker cannot fail the checkout.
func (s *CheckoutService) notifyConfirmed(order *domain.Order) {
	event := port.OrderConfirmedEvent{
		OrderID:          order.ID,
		Total:            order.Total,
		CreatedAt:        order.CreatedAt,
		RecipientAddress: order.ShippingAddress,
	}
	for _, item := range order.Items {
		line := port.ConfirmedLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.PriceAtPurchase,
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
		}
		event.LineItems = append(event.LineItems, line)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.notifier.OrderConfirmed(ctx, event); err != nil {
			s.logger.Error().Err(err).Int64("order_id", event.OrderID).Msg("order confirmation notify failed")
		}
	}()
}

func (s *CheckoutService) countCheckout(result string) {
	if s.metrics != nil {
		s.metrics.Checkouts.WithLabelValues(result).Inc()
	}
}
