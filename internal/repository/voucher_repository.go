package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const voucherColumns = `id, code, discount_type, discount_value, minimum_order_amount, maximum_discount_amount,
	starts_at, expires_at, usage_limit, usage_count, is_active, created_at, updated_at`

func (r *Repository) GetVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`

	var (
		v           domain.Voucher
		minAmount   sql.NullFloat64
		maxDiscount sql.NullFloat64
		startsAt    sql.NullTime
		expiresAt   sql.NullTime
		usageLimit  sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&v.ID,
		&v.Code,
		&v.DiscountType,
		&v.DiscountValue,
		&minAmount,
		&maxDiscount,
		&startsAt,
		&expiresAt,
		&usageLimit,
		&v.UsageCount,
		&v.IsActive,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query voucher by code: %w", err)
	}

	if minAmount.Valid {
		v.MinOrderAmount = &minAmount.Float64
	}
	if maxDiscount.Valid {
		v.MaxDiscountAmount = &maxDiscount.Float64
	}
	if startsAt.Valid {
		v.StartsAt = &startsAt.Time
	}
	if expiresAt.Valid {
		v.ExpiresAt = &expiresAt.Time
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		v.UsageLimit = &limit
	}

	return &v, nil
}

// CreateVoucher inserts v and fills in its generated id and timestamps.
func (r *Repository) CreateVoucher(ctx context.Context, v *domain.Voucher) error {
	query := `INSERT INTO vouchers (code, discount_type, discount_value, minimum_order_amount, maximum_discount_amount,
	              starts_at, expires_at, usage_limit, usage_count, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	          RETURNING id, created_at, updated_at`

	var usageLimit sql.NullInt64
	if v.UsageLimit != nil {
		usageLimit = sql.NullInt64{Int64: int64(*v.UsageLimit), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		v.Code,
		v.DiscountType,
		v.DiscountValue,
		v.MinOrderAmount,
		v.MaxDiscountAmount,
		v.StartsAt,
		v.ExpiresAt,
		usageLimit,
		v.UsageCount,
		v.IsActive,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVoucher
		}
		return fmt.Errorf("insert voucher: %w", err)
	}
	return nil
}

// IncrementVoucherUsage counts one use, refusing once the usage limit is reached.
func (r *Repository) IncrementVoucherUsage(ctx context.Context, id string) error {
	query := `UPDATE vouchers
	          SET usage_count = usage_count + 1, updated_at = NOW()
	          WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment voucher usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment voucher usage: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM vouchers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check voucher: %w", err)
	}
	if !exists {
		return ErrVoucherNotFound
	}
	return ErrVoucherExhausted
}
