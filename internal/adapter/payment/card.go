package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sokoni/storefront/internal/core/domain"
	"github.com/sokoni/storefront/internal/port"
)

// CardGateway charges a payment-intents style processor synchronously.
// Any transport error, non-2xx response or timeout maps to FAILED: the
// state machine must bias toward under-charging, so an unknown outcome
// is never reported as COMPLETED.
type CardGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewCardGateway(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *CardGateway {
	return &CardGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("gateway", "card").Logger(),
	}
}

type cardChargeRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
	Confirm   bool   `json:"confirm"`
}

type cardChargeResponse struct {
	Status string `json:"status"`
}

func (g *CardGateway) Charge(ctx context.Context, req port.ChargeRequest) (domain.PaymentOutcome, error) {
	body, err := json.Marshal(cardChargeRequest{
		Amount:    req.AmountMinor,
		Currency:  req.Currency,
		Reference: fmt.Sprintf("order-%d", req.OrderID),
		Confirm:   true,
	})
	if err != nil {
		return domain.PaymentOutcomeFailed, fmt.Errorf("encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return domain.PaymentOutcomeFailed, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Warn().Err(err).Int64("order_id", req.OrderID).Msg("charge request failed")
		return domain.PaymentOutcomeFailed, fmt.Errorf("charge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warn().Int("status", resp.StatusCode).Int64("order_id", req.OrderID).Msg("charge rejected")
		return domain.PaymentOutcomeFailed, fmt.Errorf("charge rejected: status %d", resp.StatusCode)
	}

	var out cardChargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PaymentOutcomeFailed, fmt.Errorf("decode charge response: %w", err)
	}

	switch out.Status {
	case "succeeded":
		return domain.PaymentOutcomeCompleted, nil
	case "processing", "requires_action":
		return domain.PaymentOutcomePending, nil
	default:
		return domain.PaymentOutcomeFailed, nil
	}
}
