package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

type snapshot struct {
	Orders  []domain.Order `json:"orders"`
	Version int            `json:"version"`
}

// History holds the orders placed from one storefront session, including
// guest orders that are not tied to an account. It shares nothing with the
// cart; checkout reads the cart and then records here.
type History struct {
	mu       sync.RWMutex
	orders   []domain.Order
	hydrated bool
	key      string
	storage  cache.SnapshotStore
}

func NewHistory(sessionID string, storage cache.SnapshotStore) *History {
	return &History{
		key:     cache.SnapshotKey(cache.OrderStorage, sessionID),
		storage: storage,
	}
}

// Add records an order as the newest entry, replacing an entry with the same id.
func (h *History) Add(order domain.Order) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.orders = slices.DeleteFunc(h.orders, func(o domain.Order) bool { return o.ID == order.ID })
	h.orders = slices.Insert(h.orders, 0, order)
}

func (h *History) Get(id uuid.UUID) (domain.Order, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	i := slices.IndexFunc(h.orders, func(o domain.Order) bool { return o.ID == id })
	if i < 0 {
		return domain.Order{}, false
	}
	return h.orders[i], true
}

// List returns the orders newest first.
func (h *History) List() []domain.Order {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.orders)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orders = nil
}

// Merge reconciles the local history with the orders the backend knows for
// the signed-in user. Remote entries win on id collisions; local-only entries
// (guest checkouts) are kept.
func (h *History) Merge(remote []domain.Order) []domain.Order {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID := make(map[uuid.UUID]domain.Order, len(h.orders)+len(remote))
	for _, o := range h.orders {
		byID[o.ID] = o
	}
	for _, o := range remote {
		byID[o.ID] = o
	}

	merged := make([]domain.Order, 0, len(byID))
	for _, o := range byID {
		merged = append(merged, o)
	}
	slices.SortStableFunc(merged, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(b.ID[:], a.ID[:])
	})

	h.orders = merged
	return slices.Clone(merged)
}

// Hydrate restores the persisted history once; later calls are no-ops.
func (h *History) Hydrate(ctx context.Context) error {
	h.mu.RLock()
	hydrated := h.hydrated
	h.mu.RUnlock()
	if hydrated {
		return nil
	}

	data, err := h.storage.Load(ctx, h.key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return fmt.Errorf("load order snapshot: %w", err)
	}

	var snap snapshot
	if err == nil {
		if errUnmarshal := json.Unmarshal(data, &snap); errUnmarshal != nil {
			return fmt.Errorf("unmarshal order snapshot: %w", errUnmarshal)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hydrated {
		return nil
	}
	// orders recorded before hydration stay on top
	h.orders = append(h.orders, snap.Orders...)
	h.hydrated = true
	return nil
}

func (h *History) Save(ctx context.Context) error {
	data, err := json.Marshal(snapshot{Orders: h.List(), Version: 1})
	if err != nil {
		return fmt.Errorf("marshal order snapshot: %w", err)
	}
	if err := h.storage.Save(ctx, h.key, data); err != nil {
		return fmt.Errorf("save order snapshot: %w", err)
	}
	return nil
}
