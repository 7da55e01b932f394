package domain

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Voucher is a discount code. Nil pointers mean "not set".
type Voucher struct {
	ID                string       `json:"id"`
	Code              string       `json:"code"`
	DiscountType      DiscountType `json:"discount_type"`
	DiscountValue     float64      `json:"discount_value"`
	MinOrderAmount    *float64     `json:"minimum_order_amount,omitempty"`
	MaxDiscountAmount *float64     `json:"maximum_discount_amount,omitempty"`
	StartsAt          *time.Time   `json:"starts_at,omitempty"`
	ExpiresAt         *time.Time   `json:"expires_at,omitempty"`
	UsageLimit        *int         `json:"usage_limit,omitempty"`
	UsageCount        int          `json:"usage_count"`
	IsActive          bool         `json:"is_active"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}
