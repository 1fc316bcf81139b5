package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sokoni/storefront/internal/port"
)

// Reconciler sweeps for orphaned orders: checkouts whose transaction
// committed (stock reserved, cart cleared) but whose payment outcome
// was never recorded, typically after a crash between commit and
// gateway response. It retries payment only; it never re-touches
// stock.
type Reconciler struct {
	orders   port.OrderRepository
	checkout *CheckoutService
	logger   zerolog.Logger
	interval time.Duration
	minAge   time.Duration
	batch    int
}

func NewReconciler(orders port.OrderRepository, checkout *CheckoutService, logger zerolog.Logger, interval, minAge time.Duration, batch int) *Reconciler {
	return &Reconciler{
		orders:   orders,
		checkout: checkout,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		interval: interval,
		minAge:   minAge,
		batch:    batch,
	}
}

// Run loops until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.minAge)
	orders, err := r.orders.ListOrphanedOrders(ctx, cutoff, r.batch)
	if err != nil {
		r.logger.Error().Err(err).Msg("orphan scan failed")
		return
	}

	for i := range orders {
		order := orders[i]
		if err := r.checkout.RetryPayment(ctx, &order); err != nil {
			r.logger.Error().Err(err).Int64("order_id", order.ID).Msg("orphan payment retry failed")
			continue
		}
		r.logger.Info().Int64("order_id", order.ID).Msg("orphaned order reconciled")
	}
}
