package voucher

import (
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	ErrVoucherNotFound   = repository.ErrVoucherNotFound
	ErrVoucherInactive   = errors.New("voucher is not active")
	ErrVoucherNotStarted = errors.New("voucher is not valid yet")
	ErrVoucherExpired    = errors.New("voucher has expired")
	ErrVoucherExhausted  = repository.ErrVoucherExhausted
	ErrBelowMinimum      = errors.New("order is below the voucher minimum amount")
)

var hundred = decimal.NewFromInt(100)

// CalculateDiscount returns the discount a voucher grants on subtotal.
//
// Percentage vouchers take value% of the subtotal, fixed vouchers take value.
// A subtotal below the minimum order amount yields 0 regardless of the
// computed amount, and the result is capped at the maximum discount amount.
// The result is never negative. It is NOT capped at the subtotal: callers that
// need discount <= subtotal must clamp themselves.
func CalculateDiscount(v *domain.Voucher, subtotal float64) float64 {
	if v == nil {
		return 0
	}

	sub := decimal.NewFromFloat(subtotal)
	value := decimal.NewFromFloat(v.DiscountValue)

	var discount decimal.Decimal
	switch v.DiscountType {
	case domain.DiscountPercentage:
		discount = sub.Mul(value).Div(hundred)
	case domain.DiscountFixed:
		discount = value
	default:
		return 0
	}

	if v.MinOrderAmount != nil && sub.LessThan(decimal.NewFromFloat(*v.MinOrderAmount)) {
		return 0
	}

	if v.MaxDiscountAmount != nil {
		discount = decimal.Min(discount, decimal.NewFromFloat(*v.MaxDiscountAmount))
	}

	if discount.IsNegative() {
		return 0
	}
	return discount.Round(2).InexactFloat64()
}

// Validate reports why a voucher cannot be used at now for subtotal.
func Validate(v *domain.Voucher, subtotal float64, now time.Time) error {
	if v == nil {
		return ErrVoucherNotFound
	}
	if !v.IsActive {
		return ErrVoucherInactive
	}
	if v.StartsAt != nil && now.Before(*v.StartsAt) {
		return ErrVoucherNotStarted
	}
	if v.ExpiresAt != nil && now.After(*v.ExpiresAt) {
		return ErrVoucherExpired
	}
	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return ErrVoucherExhausted
	}
	if v.MinOrderAmount != nil && subtotal < *v.MinOrderAmount {
		return ErrBelowMinimum
	}
	return nil
}

// PayableTotal is subtotal minus discount, never below zero.
func PayableTotal(subtotal, discount float64) float64 {
	total := decimal.NewFromFloat(subtotal).Sub(decimal.NewFromFloat(discount))
	if total.IsNegative() {
		return 0
	}
	return total.Round(2).InexactFloat64()
}
