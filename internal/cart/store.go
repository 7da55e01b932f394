package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Phase tracks where the cart contents came from.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseHydrated
	PhaseSynced
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseHydrated:
		return "hydrated"
	case PhaseSynced:
		return "synced"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Notifier receives the user-visible confirmation of AddItem.
type Notifier interface {
	ItemAdded(item domain.CartItem)
}

type NotifierFunc func(item domain.CartItem)

func (f NotifierFunc) ItemAdded(item domain.CartItem) { f(item) }

type snapshot struct {
	Items   []domain.CartItem `json:"items"`
	Version int               `json:"version"`
}

const snapshotVersion = 1

// Store is the cart of one storefront session. Mutations only touch memory;
// Save and Hydrate move the state to and from the snapshot store.
type Store struct {
	mu       sync.RWMutex
	items    []domain.CartItem
	phase    Phase
	key      string
	storage  cache.SnapshotStore
	notifier Notifier
}

func NewStore(sessionID string, storage cache.SnapshotStore, notifier Notifier) *Store {
	if notifier == nil {
		notifier = NotifierFunc(func(domain.CartItem) {})
	}
	return &Store{
		key:      cache.SnapshotKey(cache.CartStorage, sessionID),
		storage:  storage,
		notifier: notifier,
	}
}

func (s *Store) AddItem(item domain.CartItem) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	s.mu.Lock()
	if i := s.indexOf(item.ID()); i >= 0 {
		s.items[i].Quantity += item.Quantity
	} else {
		s.items = append(s.items, item)
	}
	s.mu.Unlock()

	s.notifier.ItemAdded(item)
}

func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
	}
}

// UpdateQuantity sets the quantity of a line; values below 1 become 1.
func (s *Store) UpdateQuantity(id string, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.items[i].Quantity = quantity
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// TakeItems empties the cart and returns what it held in one step, so two
// checkouts of the same cart cannot both see the items.
func (s *Store) TakeItems() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items
	s.items = nil
	return items
}

// Restore puts taken items back ahead of anything added since, summing
// quantities of lines present in both.
func (s *Store) Restore(items []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := slices.Clone(items)
	for _, cur := range s.items {
		i := slices.IndexFunc(merged, func(item domain.CartItem) bool { return item.ID() == cur.ID() })
		if i >= 0 {
			merged[i].Quantity += cur.Quantity
			continue
		}
		merged = append(merged, cur)
	}
	s.items = merged
}

// Replace overwrites the cart wholesale with server state.
func (s *Store) Replace(items []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.Clone(items)
	s.phase = PhaseSynced
}

func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Store) Get(id string) (domain.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return domain.CartItem{}, false
}

func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

func (s *Store) TotalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Subtotal(s.items)
}

func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Hydrate restores the persisted snapshot. It only applies to a freshly
// created store; once hydrated or synced the call is a no-op.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.RLock()
	phase := s.phase
	s.mu.RUnlock()
	if phase != PhaseCreated {
		return nil
	}

	data, err := s.storage.Load(ctx, s.key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return fmt.Errorf("load cart snapshot: %w", err)
	}

	var snap snapshot
	if err == nil {
		if errUnmarshal := json.Unmarshal(data, &snap); errUnmarshal != nil {
			return fmt.Errorf("unmarshal cart snapshot: %w", errUnmarshal)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a sync may have landed while the snapshot was loading
	if s.phase != PhaseCreated {
		return nil
	}
	s.items = snap.Items
	s.phase = PhaseHydrated
	return nil
}

func (s *Store) Save(ctx context.Context) error {
	data, err := json.Marshal(snapshot{Items: s.Items(), Version: snapshotVersion})
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}
	if err := s.storage.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(item domain.CartItem) bool {
		return item.ID() == id
	})
}

// Subtotal is Σ price × quantity, summed in decimal.
func Subtotal(items []domain.CartItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.InexactFloat64()
}
