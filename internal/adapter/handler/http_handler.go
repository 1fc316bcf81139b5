package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sokoni/storefront/internal/core/domain"
	"github.com/sokoni/storefront/internal/core/service"
	"github.com/sokoni/storefront/internal/metrics"
	"github.com/sokoni/storefront/internal/port"
)

type HTTPHandler struct {
	checkout *service.CheckoutService
	carts    *service.CartService
	orders   *service.OrderQueryService
	logger   zerolog.Logger
}

func NewHTTPHandler(checkout *service.CheckoutService, carts *service.CartService, orders *service.OrderQueryService, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		checkout: checkout,
		carts:    carts,
		orders:   orders,
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

// NewRouter wires routes and middleware. The payment callback route is
// unauthenticated: it is called by the gateway, not a user, and the
// forward-only state machine makes replays harmless.
func NewRouter(h *HTTPHandler, limiter port.RateLimiter, m *metrics.ServerMetrics, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger(logger))

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/payments/mpesa/callback", Instrument(m, "payment_callback", h.PaymentCallback)).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(RateLimit(limiter, logger), Identity)
	api.HandleFunc("/checkout", Instrument(m, "checkout", h.Checkout)).Methods(http.MethodPost)
	api.HandleFunc("/checkout/{orderID:[0-9]+}", Instrument(m, "get_checkout", h.GetCheckout)).Methods(http.MethodGet)
	api.HandleFunc("/orders", Instrument(m, "list_orders", h.ListOrders)).Methods(http.MethodGet)
	api.HandleFunc("/cart", Instrument(m, "get_cart", h.GetCart)).Methods(http.MethodGet)
	api.HandleFunc("/cart", Instrument(m, "add_to_cart", h.AddToCart)).Methods(http.MethodPost)
	api.HandleFunc("/cart/{itemID:[0-9]+}", Instrument(m, "update_cart", h.UpdateCartItem)).Methods(http.MethodPut)
	api.HandleFunc("/cart/{itemID:[0-9]+}", Instrument(m, "remove_from_cart", h.RemoveCartItem)).Methods(http.MethodDelete)
	api.HandleFunc("/cart", Instrument(m, "clear_cart", h.ClearCart)).Methods(http.MethodDelete)

	return r
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

type checkoutResponse struct {
	Success       bool                  `json:"success"`
	Order         *domain.Order         `json:"order"`
	PaymentStatus domain.PaymentOutcome `json:"payment_status"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Stock interface{} `json:"stock,omitempty"`
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported payment method"})
		return
	}

	order, outcome, err := h.checkout.Checkout(r.Context(), userIDFrom(r.Context()), req.ShippingAddress, method)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		Success:       true,
		Order:         order,
		PaymentStatus: outcome,
	})
}

func (h *HTTPHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderID"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID, userIDFrom(r.Context()), privilegedFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// paymentCallback is the mobile-money settlement webhook. A result
// code of zero means the charge settled; anything else is a failure.
type paymentCallback struct {
	OrderID    int64 `json:"order_id"`
	ResultCode int   `json:"result_code"`
}

func (h *HTTPHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var cb paymentCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid callback body"})
		return
	}

	outcome := domain.PaymentOutcomeCompleted
	if cb.ResultCode != 0 {
		outcome = domain.PaymentOutcomeFailed
	}

	if err := h.checkout.ApplyPaymentCallback(r.Context(), cb.OrderID, outcome); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.carts.GetCart(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.carts.AddItem(r.Context(), userIDFrom(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(mux.Vars(r)["itemID"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid item id"})
		return
	}

	var req updateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	item, err := h.carts.UpdateItem(r.Context(), userIDFrom(r.Context()), itemID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if item == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "item removed"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(mux.Vars(r)["itemID"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid item id"})
		return
	}

	if err := h.carts.RemoveItem(r.Context(), userIDFrom(r.Context()), itemID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), userIDFrom(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var ise *domain.InsufficientStockError

	switch {
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "insufficient stock", Stock: ise})
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "your cart is empty"})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
	case errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
	case errors.Is(err, domain.ErrCartItemNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "item not found"})
	case errors.Is(err, service.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must be positive"})
	case errors.Is(err, domain.ErrTransientStore):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporary contention, please retry"})
	default:
		h.logger.Error().Err(err).Msg("internal error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
