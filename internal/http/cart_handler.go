package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	sessions Sessions
	catalog  catalog.Reader
	timeout  time.Duration
}

func NewCartHandler(sessions Sessions, catalog catalog.Reader, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  catalog,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	SessionID     string                    `json:"session_id"`
	Items         []domain.CartItem         `json:"items"`
	ItemCount     int                       `json:"item_count"`
	Total         float64                   `json:"total"`
	Phase         string                    `json:"phase"`
	Notifications []storefront.Notification `json:"notifications,omitempty"`
}

func cartResponse(s *storefront.Session) CartResponse {
	items := s.Cart().Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponse{
		SessionID:     s.ID(),
		Items:         items,
		ItemCount:     s.Cart().ItemCount(),
		Total:         s.Cart().TotalPrice(),
		Phase:         s.Cart().Phase().String(),
		Notifications: s.Notifications(),
	}
}

func (h *CartHandler) open(ctx context.Context, w http.ResponseWriter, r *http.Request) (*storefront.Session, bool) {
	s, err := h.sessions.Open(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return s, true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// AddItem prices the line from the catalog; clients only send ids.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleError(w, err)
		return
	}

	item := domain.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.ImageURL,
		Quantity:  req.Quantity,
	}

	if req.VariantID != "" {
		variants, err := h.catalog.GetVariantsByIDs(ctx, []string{req.VariantID})
		if err != nil {
			handleError(w, err)
			return
		}
		variant, ok := variants[req.VariantID]
		if !ok || variant.ProductID != product.ID {
			respondError(w, http.StatusNotFound, "variant_not_found", "variant not found for product")
			return
		}
		item.VariantID = variant.ID
		item.Color = variant.Color
		item.Size = variant.Size
		if variant.Price != nil {
			item.Price = *variant.Price
		}
		if variant.ImageURL != "" {
			item.Image = variant.ImageURL
		}
	}

	s, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	s.AddItem(ctx, item)

	respondJSON(w, http.StatusCreated, cartResponse(s))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID := itemIDParam(r)

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	s.UpdateQuantity(ctx, itemID, req.Quantity)

	respondJSON(w, http.StatusOK, cartResponse(s))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	s.RemoveItem(ctx, itemIDParam(r))

	respondJSON(w, http.StatusOK, cartResponse(s))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	s.Clear(ctx)

	respondJSON(w, http.StatusOK, cartResponse(s))
}

// itemIDParam decodes the line id, which may arrive with an escaped ':'.
func itemIDParam(r *http.Request) string {
	raw := chi.URLParam(r, "item_id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}
