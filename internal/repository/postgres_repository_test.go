package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func ptr[T any](v T) *T { return &v }

func TestGetVoucherByCode_Seeded(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	v, err := repo.GetVoucherByCode(context.Background(), "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, domain.DiscountPercentage, v.DiscountType)
	assert.Equal(t, 10.0, v.DiscountValue)
	require.NotNil(t, v.MinOrderAmount)
	assert.Equal(t, 100.0, *v.MinOrderAmount)
	require.NotNil(t, v.MaxDiscountAmount)
	assert.Equal(t, 20.0, *v.MaxDiscountAmount)
	assert.Nil(t, v.UsageLimit)
	assert.True(t, v.IsActive)
}

func TestGetVoucherByCode_NotFound(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	_, err := repo.GetVoucherByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestCreateVoucher_Duplicate(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	v := &domain.Voucher{Code: "SPRING", DiscountType: domain.DiscountFixed, DiscountValue: 5, IsActive: true}
	require.NoError(t, repo.CreateVoucher(ctx, v))
	assert.NotEmpty(t, v.ID)

	dup := &domain.Voucher{Code: "SPRING", DiscountType: domain.DiscountFixed, DiscountValue: 5, IsActive: true}
	assert.ErrorIs(t, repo.CreateVoucher(ctx, dup), ErrDuplicateVoucher)
}

func TestIncrementVoucherUsage_RespectsLimit(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	v := &domain.Voucher{
		Code:          "ONCE",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 50,
		UsageLimit:    ptr(1),
		ExpiresAt:     ptr(time.Now().Add(24 * time.Hour)),
		IsActive:      true,
	}
	require.NoError(t, repo.CreateVoucher(ctx, v))

	require.NoError(t, repo.IncrementVoucherUsage(ctx, v.ID))
	assert.ErrorIs(t, repo.IncrementVoucherUsage(ctx, v.ID), ErrVoucherExhausted)

	fetched, err := repo.GetVoucherByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.UsageCount)
	require.NotNil(t, fetched.ExpiresAt)
}

func TestIncrementVoucherUsage_NotFound(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	err := repo.IncrementVoucherUsage(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrVoucherNotFound)
}

func newTestOrder(userID string) *domain.Order {
	return &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Email:         "buyer@example.com",
		Subtotal:      150,
		Discount:      15,
		Total:         135,
		VoucherCode:   "WELCOME10",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Items: []domain.OrderItem{
			{ProductID: "tee", VariantID: "red-m", Name: "Tee", Price: 75, Quantity: 2},
		},
	}
}

func TestCreateOrder_Success(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-123")
	require.NoError(t, repo.CreateOrder(ctx, order))

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, order.UserID, fetched.UserID)
	assert.Equal(t, order.Total, fetched.Total)
	assert.Equal(t, order.Discount, fetched.Discount)
	assert.Equal(t, order.VoucherCode, fetched.VoucherCode)
	assert.Equal(t, domain.PaymentStatusPending, fetched.PaymentStatus)
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, "red-m", fetched.Items[0].VariantID)
}

func TestCreateOrder_Duplicate(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-123")
	require.NoError(t, repo.CreateOrder(ctx, order))

	assert.ErrorIs(t, repo.CreateOrder(ctx, order), ErrDuplicateOrder)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	_, err := repo.GetOrderByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrdersByUserID(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	first := newTestOrder("user-1")
	require.NoError(t, repo.CreateOrder(ctx, first))
	time.Sleep(10 * time.Millisecond)
	second := newTestOrder("user-1")
	require.NoError(t, repo.CreateOrder(ctx, second))
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder("user-2")))

	orders, err := repo.ListOrdersByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestUpdatePaymentStatus(t *testing.T) {
	repo, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-1")
	require.NoError(t, repo.CreateOrder(ctx, order))

	err := repo.UpdatePaymentStatus(ctx, order.ID, domain.OrderStatusCompleted, domain.PaymentStatusPaid)
	require.NoError(t, err)

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, fetched.Status)
	assert.Equal(t, domain.PaymentStatusPaid, fetched.PaymentStatus)

	err = repo.UpdatePaymentStatus(ctx, uuid.New(), domain.OrderStatusCompleted, domain.PaymentStatusPaid)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
