package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/cartsync"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const hydrateTimeout = 5 * time.Second

type Identities interface {
	Current(sessionID string) (session.Identity, bool)
	Subscribe(ctx context.Context, sessionID string) <-chan session.Event
}

// CartMirror is the server-held cart of signed-in users.
type CartMirror interface {
	cartsync.CartSource
	AddItem(ctx context.Context, userID string, item domain.ItemLine) error
	UpdateQuantity(ctx context.Context, userID, productID, variantID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID, variantID string) error
	ClearCart(ctx context.Context, userID string) error
}

// Manager owns every open storefront session. Sessions idle for longer
// than the idle TTL are stopped and forgotten; their cart and order history
// stay in storage and are hydrated again on the next Open.
type Manager struct {
	ctx     context.Context
	storage cache.SnapshotStore
	ids     Identities
	mirror  CartMirror
	logger  *zap.Logger
	idleTTL time.Duration
	now     func() time.Time
	sfg     singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewManager creates a manager; syncers it starts live until ctx ends or Close.
// A positive idleTTL starts a background sweeper that evicts idle sessions.
func NewManager(ctx context.Context, storage cache.SnapshotStore, ids Identities, mirror CartMirror, idleTTL time.Duration, logger *zap.Logger) *Manager {
	m := &Manager{
		ctx:      ctx,
		storage:  storage,
		ids:      ids,
		mirror:   mirror,
		logger:   logger,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
		quit:     make(chan struct{}),
	}
	if idleTTL > 0 {
		m.wg.Add(1)
		go m.sweepLoop()
	}
	return m
}

// Open returns the session for sessionID, creating, hydrating and starting
// its syncer on first use. Concurrent first opens of one id share a single
// hydration; other ids are not blocked by it.
func (m *Manager) Open(ctx context.Context, sessionID string) (*Session, error) {
	if s, err := m.lookup(sessionID); s != nil || err != nil {
		return s, err
	}

	v, err, _ := m.sfg.Do(sessionID, func() (any, error) {
		s, err := m.lookup(sessionID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
		return m.create(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) lookup(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, context.Canceled
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	s.touch(m.now())
	return s, nil
}

func (m *Manager) create(ctx context.Context, sessionID string) (*Session, error) {
	log := m.logger.With(zap.String("session_id", sessionID))
	s := &Session{
		id:      sessionID,
		history: orders.NewHistory(sessionID, m.storage),
		ids:     m.ids,
		mirror:  m.mirror,
		logger:  log,
	}
	s.cart = cart.NewStore(sessionID, m.storage, s)

	// shared by every caller waiting on this id, so one caller going away
	// must not empty the session for the rest
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
	defer cancel()
	if err := s.cart.Hydrate(hctx); err != nil {
		log.Warn("cart hydrate failed, starting empty", zap.Error(err))
	}
	if err := s.history.Hydrate(hctx); err != nil {
		log.Warn("order history hydrate failed, starting empty", zap.Error(err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, context.Canceled
	}
	s.stop = cartsync.New(sessionID, m.mirror, m.ids, s, log).Start(m.ctx)
	s.touch(m.now())
	m.sessions[sessionID] = s
	return s, nil
}

// sweep stops sessions not opened since now minus the idle TTL and
// reports how many it evicted.
func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen()) >= m.idleTTL {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.stop()
	}
	return len(idle)
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(max(m.idleTTL/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.quit:
			return
		case <-ticker.C:
			if n := m.sweep(m.now()); n > 0 {
				m.logger.Debug("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the sweeper and every syncer, and waits for them to exit.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.quit) })
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.closed = true
	m.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
}
