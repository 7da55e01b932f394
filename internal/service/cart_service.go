package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/breaker"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Catalog is the part of the product catalog needed to price cart lines.
type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	GetVariantsByIDs(ctx context.Context, ids []string) (map[string]*domain.Variant, error)
}

type catalogPage struct {
	products map[string]*domain.Product
	variants map[string]*domain.Variant
}

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog Catalog
	cb      *gobreaker.CircuitBreaker[catalogPage]
	sfg     singleflight.Group // Prevents cache stampede
	logger  *zap.Logger
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog Catalog, logger *zap.Logger) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		cb:      breaker.New[catalogPage]("catalog", breaker.DefaultSettings(), logger),
		logger:  logger,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get error", zap.String("user_id", userID), zap.Error(err))
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{
				UserID:    userID,
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			errSet := s.cache.Set(context.Background(), userID, cart)
			if errSet != nil {
				s.logger.Warn("cache set error", zap.String("user_id", userID), zap.Error(errSet))
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// FetchCartRows returns the user's cart lines priced from the catalog.
// Variant price and image override the product's. Lines whose product no
// longer exists are dropped.
func (s *CartService) FetchCartRows(ctx context.Context, userID string) ([]domain.CartRow, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, nil
	}

	productIDs := make([]string, 0, len(cart.Items))
	variantIDs := make([]string, 0, len(cart.Items))
	for _, line := range cart.Items {
		productIDs = append(productIDs, line.ProductID)
		if line.VariantID != "" {
			variantIDs = append(variantIDs, line.VariantID)
		}
	}

	page, err := breaker.Execute(s.cb, func() (catalogPage, error) {
		products, err := s.catalog.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return catalogPage{}, err
		}
		variants, err := s.catalog.GetVariantsByIDs(ctx, variantIDs)
		if err != nil {
			return catalogPage{}, err
		}
		return catalogPage{products: products, variants: variants}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load catalog for cart: %w", err)
	}

	rows := make([]domain.CartRow, 0, len(cart.Items))
	for _, line := range cart.Items {
		product, ok := page.products[line.ProductID]
		if !ok {
			s.logger.Debug("dropping cart line for missing product",
				zap.String("user_id", userID), zap.String("product_id", line.ProductID))
			continue
		}

		row := domain.CartRow{
			ItemLine: line,
			Name:     product.Name,
			Price:    product.Price,
			Image:    product.ImageURL,
		}
		if variant, ok := page.variants[line.VariantID]; ok && variant.ProductID == product.ID {
			if variant.Price != nil {
				row.Price = *variant.Price
			}
			if variant.ImageURL != "" {
				row.Image = variant.ImageURL
			}
			if row.Color == "" {
				row.Color = variant.Color
			}
			if row.Size == "" {
				row.Size = variant.Size
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (s *CartService) AddItem(ctx context.Context, userID string, item domain.ItemLine) error {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	errAdd := s.repo.AddItem(ctx, userID, item)
	if errAdd != nil {
		s.logger.Error("repo add item error", zap.String("user_id", userID), zap.Error(errAdd))
		return errAdd
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID, variantID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	errUpdate := s.repo.UpdateItemQuantity(ctx, userID, productID, variantID, quantity)
	if errUpdate != nil {
		s.logger.Error("repo update item quantity error", zap.String("user_id", userID), zap.Error(errUpdate))
		return errUpdate
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID, variantID string) error {
	errRemove := s.repo.RemoveItem(ctx, userID, productID, variantID)
	if errRemove != nil {
		s.logger.Error("repo remove item error", zap.String("user_id", userID), zap.Error(errRemove))
		return errRemove
	}

	s.invalidateCache(userID)
	return nil
}

// ClearCart deletes the server cart. A user without a cart is already clear.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	errDelete := s.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, repository.ErrCartNotFound) {
		s.logger.Error("repo delete cart error", zap.String("user_id", userID), zap.Error(errDelete))
		return errDelete
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := s.cache.Delete(ctx, userID)
	if errInvalidate != nil {
		s.logger.Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(errInvalidate))
	}
}
