package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrItemNotFound     = errors.New("item not found in cart")
	ErrVoucherNotFound  = errors.New("voucher not found")
	ErrVoucherExhausted = errors.New("voucher usage limit reached")
	ErrDuplicateVoucher = errors.New("voucher code already exists")
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrder   = errors.New("order already exists")
)

// CartRepository defines the interface for server-held cart operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.ItemLine) error
	UpdateItemQuantity(ctx context.Context, userID, productID, variantID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID, variantID string) error
	DeleteCart(ctx context.Context, userID string) error
}

type VoucherRepository interface {
	GetVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error)
	CreateVoucher(ctx context.Context, v *domain.Voucher) error
	IncrementVoucherUsage(ctx context.Context, id string) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, payment domain.PaymentStatus) error
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}
