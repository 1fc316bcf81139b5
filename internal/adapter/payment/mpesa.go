package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sokoni/storefront/internal/core/domain"
	"github.com/sokoni/storefront/internal/port"
)

// MpesaGateway initiates an STK push. Settlement is asynchronous: a
// successful initiation yields PENDING and the final outcome arrives
// on the payment callback endpoint, where it is applied through the
// same forward-only finalization as every other outcome.
type MpesaGateway struct {
	baseURL     string
	shortCode   string
	callbackURL string
	client      *http.Client
	logger      zerolog.Logger
}

func NewMpesaGateway(baseURL, shortCode, callbackURL string, timeout time.Duration, logger zerolog.Logger) *MpesaGateway {
	return &MpesaGateway{
		baseURL:     baseURL,
		shortCode:   shortCode,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With().Str("gateway", "mpesa").Logger(),
	}
}

type stkPushRequest struct {
	ShortCode        string `json:"short_code"`
	Amount           int64  `json:"amount"`
	AccountReference string `json:"account_reference"`
	CheckoutID       string `json:"checkout_id"`
	CallbackURL      string `json:"callback_url"`
}

type stkPushResponse struct {
	ResponseCode string `json:"response_code"`
}

func (g *MpesaGateway) Charge(ctx context.Context, req port.ChargeRequest) (domain.PaymentOutcome, error) {
	checkoutID := uuid.NewString()

	body, err := json.Marshal(stkPushRequest{
		ShortCode:        g.shortCode,
		Amount:           req.AmountMinor,
		AccountReference: req.IdempotencyKey,
		CheckoutID:       checkoutID,
		CallbackURL:      g.callbackURL,
	})
	if err != nil {
		return domain.PaymentOutcomeFailed, fmt.Errorf("encode stk push: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return domain.PaymentOutcomeFailed, fmt.Errorf("build stk push: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Warn().Err(err).Int64("order_id", req.OrderID).Msg("stk push failed")
		return domain.PaymentOutcomeFailed, fmt.Errorf("stk push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.PaymentOutcomeFailed, fmt.Errorf("stk push rejected: status %d", resp.StatusCode)
	}

	var out stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PaymentOutcomeFailed, fmt.Errorf("decode stk push response: %w", err)
	}
	if out.ResponseCode != "0" {
		return domain.PaymentOutcomeFailed, nil
	}

	g.logger.Info().Int64("order_id", req.OrderID).Str("checkout_id", checkoutID).Msg("stk push accepted")
	return domain.PaymentOutcomePending, nil
}
