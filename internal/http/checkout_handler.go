package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/voucher"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	sessions Sessions
	checkout CheckoutService
	vouchers VoucherQuoter
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutHandler(sessions Sessions, checkout CheckoutService, vouchers VoucherQuoter, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		checkout: checkout,
		vouchers: vouchers,
		timeout:  timeout,
		logger:   logger,
	}
}

type CheckoutRequestDTO struct {
	VoucherCode string `json:"voucher_code,omitempty"`
	Email       string `json:"email,omitempty"`
}

type PaymentRequestDTO struct {
	Outcome string `json:"outcome"`
}

// Quote prices the session cart with a voucher without redeeming it.
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Open(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}

	quote, err := h.vouchers.Quote(ctx, chi.URLParam(r, "code"), s.Cart().TotalPrice())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s, err := h.sessions.Open(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}

	creq := checkout.Request{
		SessionID:   s.ID(),
		Email:       req.Email,
		VoucherCode: req.VoucherCode,
		Cart:        s.Cart(),
		History:     s.History(),
	}
	if id, ok := s.Identity(); ok {
		creq.UserID = id.UserID
		if creq.Email == "" {
			creq.Email = id.Email
		}
	}

	order, err := h.checkout.Checkout(ctx, creq)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// CompletePayment records the payment provider's verdict for an order of this session.
func (h *CheckoutHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	var req PaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s, err := h.sessions.Open(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	if _, ok := s.History().Get(orderID); !ok {
		respondError(w, http.StatusNotFound, "order_not_found", "order not found in this session")
		return
	}

	order, err := h.checkout.CompletePayment(ctx, orderID, checkout.PaymentOutcome(req.Outcome))
	if err != nil {
		handleError(w, err)
		return
	}

	s.History().Merge([]domain.Order{*order})
	if err := s.History().Save(ctx); err != nil {
		h.logger.Warn("failed to persist order history", zap.String("order_id", orderID.String()), zap.Error(err))
	}

	respondJSON(w, http.StatusOK, order)
}

var _ VoucherQuoter = (*voucher.Service)(nil)
