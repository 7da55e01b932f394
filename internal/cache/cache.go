package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CartCache is the read-through cache in front of the server-held carts.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// SnapshotStore keeps the serialized per-session state (cart-storage,
// order-storage) across restarts.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")

const (
	CartStorage  = "cart-storage"
	OrderStorage = "order-storage"
)

func SnapshotKey(storage, sessionID string) string {
	return storage + ":" + sessionID
}
