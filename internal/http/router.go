package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Session  *SessionHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Products *ProductHandler
}

func NewRouter(h Handlers, requestTimeout time.Duration, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(SessionMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/", h.Session.SignIn)
			r.Delete("/", h.Session.SignOut)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{item_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{item_id}", h.Cart.RemoveItem)
		})
		r.Get("/vouchers/{code}/quote", h.Checkout.Quote)
		r.Post("/checkout", h.Checkout.Checkout)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.List)
			r.Get("/{order_id}", h.Orders.Get)
			r.Post("/{order_id}/payment", h.Checkout.CompletePayment)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{product_id}", h.Products.Get)
		})
	})

	return r
}
