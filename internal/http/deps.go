package http

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/fjod/go_cart/storefront/internal/voucher"
	"github.com/google/uuid"
)

type Sessions interface {
	Open(ctx context.Context, sessionID string) (*storefront.Session, error)
}

type Authenticator interface {
	SignIn(ctx context.Context, sessionID, token string) (session.Identity, error)
	SignOut(ctx context.Context, sessionID string)
}

type VoucherQuoter interface {
	Quote(ctx context.Context, code string, subtotal float64) (*voucher.Quote, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (*domain.Order, error)
	CompletePayment(ctx context.Context, orderID uuid.UUID, outcome checkout.PaymentOutcome) (*domain.Order, error)
}

// RemoteOrders is the backend's order table.
type RemoteOrders interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}
