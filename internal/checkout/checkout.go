package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/voucher"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInvalidPaymentOutcome = errors.New("payment outcome must be paid or failed")
	ErrPaymentSettled        = errors.New("order payment already settled")
)

// Cart is the session cart. TakeItems must read and empty it atomically.
type Cart interface {
	TakeItems() []domain.CartItem
	Restore(items []domain.CartItem)
	Save(ctx context.Context) error
}

type History interface {
	Add(order domain.Order)
	Save(ctx context.Context) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, payment domain.PaymentStatus) error
}

type Vouchers interface {
	Quote(ctx context.Context, code string, subtotal float64) (*voucher.Quote, error)
	Redeem(ctx context.Context, v *domain.Voucher) error
}

type EventPublisher interface {
	PublishCheckoutCompleted(ctx context.Context, sessionID string, order *domain.Order) error
}

type ServerCart interface {
	ClearCart(ctx context.Context, userID string) error
}

// Request carries one session's checkout. UserID is empty for guests.
type Request struct {
	SessionID   string
	UserID      string
	Email       string
	VoucherCode string
	Cart        Cart
	History     History
}

type Service struct {
	orders     OrderRepository
	vouchers   Vouchers
	events     EventPublisher
	serverCart ServerCart
	now        func() time.Time
	logger     *zap.Logger
}

func NewService(orders OrderRepository, vouchers Vouchers, events EventPublisher, serverCart ServerCart, logger *zap.Logger) *Service {
	return &Service{
		orders:     orders,
		vouchers:   vouchers,
		events:     events,
		serverCart: serverCart,
		now:        time.Now,
		logger:     logger,
	}
}

// Checkout turns the session cart into a pending order, then empties the cart
// and records the order in the session history.
func (s *Service) Checkout(ctx context.Context, req Request) (*domain.Order, error) {
	items := req.Cart.TakeItems()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order, err := s.placeOrder(ctx, req, items)
	if err != nil {
		req.Cart.Restore(items)
		if errSave := req.Cart.Save(ctx); errSave != nil {
			s.logger.Warn("failed to persist restored cart", zap.String("session_id", req.SessionID), zap.Error(errSave))
		}
		return nil, err
	}

	log := s.logger.With(zap.String("order_id", order.ID.String()), zap.String("session_id", req.SessionID))

	if err := s.events.PublishCheckoutCompleted(ctx, req.SessionID, order); err != nil {
		log.Error("failed to publish checkout event", zap.Error(err))
	}

	if err := req.Cart.Save(ctx); err != nil {
		log.Warn("failed to persist cleared cart", zap.Error(err))
	}
	if req.UserID != "" {
		if err := s.serverCart.ClearCart(ctx, req.UserID); err != nil {
			log.Warn("failed to clear server cart", zap.Error(err))
		}
	}

	req.History.Add(*order)
	if err := req.History.Save(ctx); err != nil {
		log.Warn("failed to persist order history", zap.Error(err))
	}

	log.Info("checkout completed", zap.Float64("total", order.Total))
	return order, nil
}

// placeOrder prices items, redeems the voucher and persists the order.
func (s *Service) placeOrder(ctx context.Context, req Request, items []domain.CartItem) (*domain.Order, error) {
	subtotal := cart.Subtotal(items)
	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Email:         req.Email,
		Subtotal:      subtotal,
		Total:         subtotal,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Items:         freeze(items),
	}

	if req.VoucherCode != "" {
		quote, err := s.vouchers.Quote(ctx, req.VoucherCode, subtotal)
		if err != nil {
			return nil, fmt.Errorf("apply voucher: %w", err)
		}
		if err := s.vouchers.Redeem(ctx, quote.Voucher); err != nil {
			return nil, err
		}
		order.VoucherCode = quote.Voucher.Code
		order.Discount = quote.Discount
		order.Total = quote.Total
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

type PaymentOutcome string

const (
	PaymentPaid   PaymentOutcome = "paid"
	PaymentFailed PaymentOutcome = "failed"
)

// CompletePayment settles a pending order: paid completes it, failed cancels it.
func (s *Service) CompletePayment(ctx context.Context, orderID uuid.UUID, outcome PaymentOutcome) (*domain.Order, error) {
	var (
		status  domain.OrderStatus
		payment domain.PaymentStatus
	)
	switch outcome {
	case PaymentPaid:
		status, payment = domain.OrderStatusCompleted, domain.PaymentStatusPaid
	case PaymentFailed:
		status, payment = domain.OrderStatusCancelled, domain.PaymentStatusFailed
	default:
		return nil, ErrInvalidPaymentOutcome
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		return nil, ErrPaymentSettled
	}

	if err := s.orders.UpdatePaymentStatus(ctx, orderID, status, payment); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	order.Status = status
	order.PaymentStatus = payment
	order.UpdatedAt = s.now()
	return order, nil
}

func freeze(items []domain.CartItem) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return out
}
