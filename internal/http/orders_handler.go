package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	sessions Sessions
	remote   RemoteOrders
	timeout  time.Duration
	logger   *zap.Logger
}

func NewOrdersHandler(sessions Sessions, remote RemoteOrders, timeout time.Duration, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		sessions: sessions,
		remote:   remote,
		timeout:  timeout,
		logger:   logger,
	}
}

type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// List returns the session's order history, merged with the account's
// orders when the session is signed in. A failing backend degrades to the
// local history.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Open(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}

	list := s.History().List()
	if id, ok := s.Identity(); ok {
		remote, err := h.remote.ListOrdersByUserID(ctx, id.UserID)
		if err != nil {
			h.logger.Warn("failed to load account orders", zap.String("user_id", id.UserID), zap.Error(err))
		} else {
			values := make([]domain.Order, 0, len(remote))
			for _, o := range remote {
				values = append(values, *o)
			}
			list = s.History().Merge(values)
			if err := s.History().Save(ctx); err != nil {
				h.logger.Warn("failed to persist order history", zap.Error(err))
			}
		}
	}

	if list == nil {
		list = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: list})
}

func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	s, err := h.sessions.Open(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}

	if order, ok := s.History().Get(orderID); ok {
		respondJSON(w, http.StatusOK, order)
		return
	}

	id, ok := s.Identity()
	if !ok {
		handleError(w, repository.ErrOrderNotFound)
		return
	}
	order, err := h.remote.GetOrderByID(ctx, orderID)
	if err != nil {
		handleError(w, err)
		return
	}
	// orders of other accounts are indistinguishable from missing ones
	if order.UserID != id.UserID {
		handleError(w, repository.ErrOrderNotFound)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
