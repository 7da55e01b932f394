package voucher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/breaker"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRepository struct {
	vouchers  map[string]*domain.Voucher
	err       error
	lookups   []string
	redeemed  []string
	redeemErr error
}

func (m *mockRepository) GetVoucherByCode(_ context.Context, code string) (*domain.Voucher, error) {
	m.lookups = append(m.lookups, code)
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.vouchers[code]
	if !ok {
		return nil, ErrVoucherNotFound
	}
	return v, nil
}

func (m *mockRepository) IncrementVoucherUsage(_ context.Context, id string) error {
	if m.redeemErr != nil {
		return m.redeemErr
	}
	m.redeemed = append(m.redeemed, id)
	return nil
}

func newTestService(repo Repository) *Service {
	s := NewService(repo, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestQuote_Success(t *testing.T) {
	v := tenPercent()
	repo := &mockRepository{vouchers: map[string]*domain.Voucher{"GLOW10": v}}
	sut := newTestService(repo)

	q, err := sut.Quote(context.Background(), " glow10 ", 150)
	require.NoError(t, err)
	assert.Equal(t, 15.0, q.Discount)
	assert.Equal(t, 135.0, q.Total)
	assert.Equal(t, 150.0, q.Subtotal)
	assert.Equal(t, []string{"GLOW10"}, repo.lookups)
}

func TestQuote_FixedLargerThanSubtotal(t *testing.T) {
	v := &domain.Voucher{ID: "v2", Code: "FLAT25", DiscountType: domain.DiscountFixed, DiscountValue: 25, IsActive: true}
	sut := newTestService(&mockRepository{vouchers: map[string]*domain.Voucher{"FLAT25": v}})

	q, err := sut.Quote(context.Background(), "FLAT25", 10)
	require.NoError(t, err)
	assert.Equal(t, 25.0, q.Discount)
	assert.Equal(t, 0.0, q.Total)
}

func TestQuote_Ineligible(t *testing.T) {
	sut := newTestService(&mockRepository{vouchers: map[string]*domain.Voucher{"GLOW10": tenPercent()}})

	_, err := sut.Quote(context.Background(), "GLOW10", 50)
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestQuote_NotFound(t *testing.T) {
	sut := newTestService(&mockRepository{vouchers: map[string]*domain.Voucher{}})

	_, err := sut.Quote(context.Background(), "NOPE", 50)
	assert.ErrorIs(t, err, ErrVoucherNotFound)

	_, err = sut.Quote(context.Background(), "   ", 50)
	assert.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestLookup_NotFoundDoesNotTripBreaker(t *testing.T) {
	repo := &mockRepository{vouchers: map[string]*domain.Voucher{}}
	sut := newTestService(repo)

	for i := 0; i < 10; i++ {
		_, err := sut.Lookup(context.Background(), "MISSING")
		require.ErrorIs(t, err, ErrVoucherNotFound)
	}
	assert.Len(t, repo.lookups, 10)
}

func TestLookup_BackendErrorsTripBreaker(t *testing.T) {
	repo := &mockRepository{err: errors.New("connection refused")}
	sut := newTestService(repo)

	for i := 0; i < 5; i++ {
		_, err := sut.Lookup(context.Background(), "GLOW10")
		require.ErrorContains(t, err, "connection refused")
	}

	_, err := sut.Lookup(context.Background(), "GLOW10")
	assert.ErrorIs(t, err, breaker.ErrUnavailable)
	assert.Len(t, repo.lookups, 5)
}

func TestRedeem(t *testing.T) {
	repo := &mockRepository{}
	sut := newTestService(repo)

	require.NoError(t, sut.Redeem(context.Background(), &domain.Voucher{ID: "v1", Code: "GLOW10"}))
	assert.Equal(t, []string{"v1"}, repo.redeemed)

	repo.redeemErr = ErrVoucherExhausted
	err := sut.Redeem(context.Background(), &domain.Voucher{ID: "v1", Code: "GLOW10"})
	assert.ErrorIs(t, err, ErrVoucherExhausted)
}
