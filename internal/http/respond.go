package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/breaker"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/voucher"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var (
		httpStatus int
		code       string
	)

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, checkout.ErrInvalidPaymentOutcome):
		httpStatus, code = http.StatusBadRequest, "invalid_outcome"
	case errors.Is(err, checkout.ErrPaymentSettled):
		httpStatus, code = http.StatusConflict, "payment_settled"
	case errors.Is(err, session.ErrInvalidToken):
		httpStatus, code = http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, voucher.ErrVoucherNotFound):
		httpStatus, code = http.StatusNotFound, "voucher_not_found"
	case errors.Is(err, voucher.ErrVoucherInactive),
		errors.Is(err, voucher.ErrVoucherNotStarted),
		errors.Is(err, voucher.ErrVoucherExpired),
		errors.Is(err, voucher.ErrVoucherExhausted),
		errors.Is(err, voucher.ErrBelowMinimum):
		httpStatus, code = http.StatusUnprocessableEntity, "voucher_not_applicable"
	case errors.Is(err, catalog.ErrProductNotFound):
		httpStatus, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, repository.ErrOrderNotFound):
		httpStatus, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, breaker.ErrUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
