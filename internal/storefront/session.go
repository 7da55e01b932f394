package storefront

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
)

const maxPendingNotifications = 20

type Notification struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	ProductID string    `json:"product_id"`
	At        time.Time `json:"at"`
}

// Session is the per-visitor runtime: local cart, order history and the
// syncer that pulls the server cart once the visitor signs in.
type Session struct {
	id      string
	cart    *cart.Store
	history *orders.History
	ids     Identities
	mirror  CartMirror
	logger  *zap.Logger
	stop    func()
	seen    atomic.Int64

	mu            sync.Mutex
	notifications []Notification
}

func (s *Session) ID() string { return s.id }

func (s *Session) touch(now time.Time) { s.seen.Store(now.UnixNano()) }

func (s *Session) lastSeen() time.Time { return time.Unix(0, s.seen.Load()) }

func (s *Session) Cart() *cart.Store { return s.cart }

func (s *Session) History() *orders.History { return s.history }

func (s *Session) Identity() (session.Identity, bool) {
	return s.ids.Current(s.id)
}

func (s *Session) AddItem(ctx context.Context, item domain.CartItem) {
	s.cart.AddItem(item)
	s.persist(ctx)

	if id, ok := s.Identity(); ok {
		line := domain.ItemLine{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Color:     item.Color,
			Size:      item.Size,
		}
		s.mirrorErr("add item", s.mirror.AddItem(ctx, id.UserID, line))
	}
}

// UpdateQuantity is a no-op for unknown line ids.
func (s *Session) UpdateQuantity(ctx context.Context, itemID string, quantity int) {
	item, ok := s.cart.Get(itemID)
	if !ok {
		return
	}
	s.cart.UpdateQuantity(itemID, quantity)
	s.persist(ctx)

	if id, ok := s.Identity(); ok {
		s.mirrorErr("update quantity", s.mirror.UpdateQuantity(ctx, id.UserID, item.ProductID, item.VariantID, quantity))
	}
}

func (s *Session) RemoveItem(ctx context.Context, itemID string) {
	item, ok := s.cart.Get(itemID)
	if !ok {
		return
	}
	s.cart.RemoveItem(itemID)
	s.persist(ctx)

	if id, ok := s.Identity(); ok {
		s.mirrorErr("remove item", s.mirror.RemoveItem(ctx, id.UserID, item.ProductID, item.VariantID))
	}
}

func (s *Session) Clear(ctx context.Context) {
	s.cart.Clear()
	s.persist(ctx)

	if id, ok := s.Identity(); ok {
		s.mirrorErr("clear cart", s.mirror.ClearCart(ctx, id.UserID))
	}
}

// Replace applies a server cart pulled by the syncer.
func (s *Session) Replace(items []domain.CartItem) {
	s.cart.Replace(items)
}

// Persist saves the current cart snapshot, logging failures.
func (s *Session) Persist(ctx context.Context) {
	s.persist(ctx)
}

// Notifications returns and forgets the queued notifications.
func (s *Session) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notifications
	s.notifications = nil
	return out
}

// ItemAdded queues a notification for the next response.
func (s *Session) ItemAdded(item domain.CartItem) {
	n := Notification{
		Kind:      "item_added",
		Message:   fmt.Sprintf("%s added to cart", displayName(item)),
		ProductID: item.ProductID,
		At:        time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	if len(s.notifications) > maxPendingNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxPendingNotifications:]
	}
}

func (s *Session) persist(ctx context.Context) {
	if err := s.cart.Save(ctx); err != nil {
		s.logger.Warn("failed to save cart snapshot", zap.Error(err))
	}
}

func (s *Session) mirrorErr(op string, err error) {
	if err != nil {
		s.logger.Warn("server cart mirror failed", zap.String("op", op), zap.Error(err))
	}
}

func displayName(item domain.CartItem) string {
	if item.Name != "" {
		return item.Name
	}
	return item.ProductID
}
