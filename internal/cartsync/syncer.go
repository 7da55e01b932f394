package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
)

// CartSource returns the server-held cart of a user joined with catalog data.
type CartSource interface {
	FetchCartRows(ctx context.Context, userID string) ([]domain.CartRow, error)
}

type Sessions interface {
	Current(sessionID string) (session.Identity, bool)
	Subscribe(ctx context.Context, sessionID string) <-chan session.Event
}

const persistTimeout = 5 * time.Second

// Target receives the server cart wholesale. Replace must not block;
// Persist writes the replaced cart to durable storage.
type Target interface {
	Replace(items []domain.CartItem)
	Persist(ctx context.Context)
}

// Syncer copies the server-held cart into a session's local store whenever
// the session becomes authenticated. Only the most recently started fetch
// may apply; signing out invalidates any fetch still in flight.
type Syncer struct {
	sessionID string
	source    CartSource
	sessions  Sessions
	target    Target
	logger    *zap.Logger

	mu  sync.Mutex
	seq uint64
	wg  sync.WaitGroup
}

func New(sessionID string, source CartSource, sessions Sessions, target Target, logger *zap.Logger) *Syncer {
	return &Syncer{
		sessionID: sessionID,
		source:    source,
		sessions:  sessions,
		target:    target,
		logger:    logger.With(zap.String("session_id", sessionID)),
	}
}

// Run blocks until ctx is done and all started fetches have returned.
func (s *Syncer) Run(ctx context.Context) {
	defer s.wg.Wait()

	events := s.sessions.Subscribe(ctx, s.sessionID)

	if id, ok := s.sessions.Current(s.sessionID); ok {
		s.sync(ctx, id)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			switch evt.Type {
			case session.SignedIn:
				s.sync(ctx, evt.Identity)
			case session.SignedOut:
				s.next()
			}
		}
	}
}

// Start runs the syncer in the background. The returned stop function
// cancels it and waits for it to exit.
func (s *Syncer) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Syncer) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Syncer) sync(ctx context.Context, id session.Identity) {
	if id.UserID == "" {
		return
	}
	seq := s.next()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		rows, err := s.source.FetchCartRows(ctx, id.UserID)
		if err != nil {
			s.logger.Debug("cart sync fetch failed", zap.String("user_id", id.UserID), zap.Error(err))
			return
		}
		if len(rows) == 0 {
			s.logger.Debug("server cart empty, keeping local cart", zap.String("user_id", id.UserID))
			return
		}

		if !s.apply(ctx, seq, ToItems(rows)) {
			s.logger.Debug("discarding stale cart sync", zap.Uint64("seq", seq))
			return
		}

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		s.target.Persist(pctx)
	}()
}

// apply replaces the target cart if seq is still the latest fetch.
func (s *Syncer) apply(ctx context.Context, seq uint64, items []domain.CartItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq || ctx.Err() != nil {
		return false
	}
	s.target.Replace(items)
	return true
}

// ToItems converts joined server rows into cart items.
func ToItems(rows []domain.CartRow) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, domain.CartItem{
			ProductID: r.ProductID,
			VariantID: r.VariantID,
			Name:      r.Name,
			Price:     r.Price,
			Image:     r.Image,
			Quantity:  r.Quantity,
			Color:     r.Color,
			Size:      r.Size,
		})
	}
	return items
}
