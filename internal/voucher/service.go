package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/breaker"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Repository is the voucher table of the backend.
type Repository interface {
	GetVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error)
	IncrementVoucherUsage(ctx context.Context, id string) error
}

type Quote struct {
	Voucher  *domain.Voucher `json:"voucher"`
	Subtotal float64         `json:"subtotal"`
	Discount float64         `json:"discount"`
	Total    float64         `json:"total"`
}

type Service struct {
	repo   Repository
	cb     *gobreaker.CircuitBreaker[*domain.Voucher]
	now    func() time.Time
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	settings := breaker.DefaultSettings()
	settings.IsSuccessful = func(err error) bool { return errors.Is(err, ErrVoucherNotFound) }

	return &Service{
		repo:   repo,
		cb:     breaker.New[*domain.Voucher]("vouchers", settings, logger),
		now:    time.Now,
		logger: logger,
	}
}

// Lookup fetches a voucher by its user-facing code. Codes are case-insensitive.
func (s *Service) Lookup(ctx context.Context, code string) (*domain.Voucher, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrVoucherNotFound
	}
	return breaker.Execute(s.cb, func() (*domain.Voucher, error) {
		return s.repo.GetVoucherByCode(ctx, code)
	})
}

// Quote prices subtotal with the voucher behind code.
func (s *Service) Quote(ctx context.Context, code string, subtotal float64) (*Quote, error) {
	v, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := Validate(v, subtotal, s.now()); err != nil {
		return nil, err
	}

	discount := CalculateDiscount(v, subtotal)
	return &Quote{
		Voucher:  v,
		Subtotal: subtotal,
		Discount: discount,
		Total:    PayableTotal(subtotal, discount),
	}, nil
}

// Redeem counts one use of the voucher.
func (s *Service) Redeem(ctx context.Context, v *domain.Voucher) error {
	if err := s.repo.IncrementVoucherUsage(ctx, v.ID); err != nil {
		s.logger.Warn("voucher redeem failed", zap.String("code", v.Code), zap.Error(err))
		return fmt.Errorf("redeem voucher %s: %w", v.Code, err)
	}
	return nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
