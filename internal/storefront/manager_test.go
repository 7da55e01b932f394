package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memStorage struct {
	mu    sync.Mutex
	data  map[string][]byte
	err   error
	loads int

	// when set, loading slowKey signals loading and waits for release
	slowKey string
	loading chan struct{}
	release chan struct{}
}

func (m *memStorage) Load(_ context.Context, key string) ([]byte, error) {
	if m.slowKey != "" && key == m.slowKey {
		m.loading <- struct{}{}
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return d, nil
}

func (m *memStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = data
	return nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStorage) items(t *testing.T, sessionID string) []domain.CartItem {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[cache.SnapshotKey(cache.CartStorage, sessionID)]
	if !ok {
		return nil
	}
	var snap struct {
		Items []domain.CartItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(raw, &snap))
	return snap.Items
}

type mockMirror struct {
	mu      sync.Mutex
	rows    []domain.CartRow
	added   []domain.ItemLine
	updated []int
	removed []string
	cleared []string
	err     error
}

func (m *mockMirror) FetchCartRows(context.Context, string) ([]domain.CartRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows, nil
}

func (m *mockMirror) AddItem(_ context.Context, _ string, item domain.ItemLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, item)
	return m.err
}

func (m *mockMirror) UpdateQuantity(_ context.Context, _, _, _ string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, quantity)
	return m.err
}

func (m *mockMirror) RemoveItem(_ context.Context, _, productID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, productID)
	return m.err
}

func (m *mockMirror) ClearCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, userID)
	return m.err
}

type fixture struct {
	manager *Manager
	storage *memStorage
	mirror  *mockMirror
	tracker *session.Tracker
	auth    *session.Authenticator
}

func newFixture(t *testing.T) *fixture {
	auth := session.NewAuthenticator("secret", time.Hour)
	f := &fixture{
		storage: &memStorage{},
		mirror:  &mockMirror{},
		tracker: session.NewTracker(auth, session.NewBroker()),
		auth:    auth,
	}
	f.manager = NewManager(context.Background(), f.storage, f.tracker, f.mirror, time.Hour, zap.NewNop())
	t.Cleanup(f.manager.Close)
	return f
}

func (f *fixture) signIn(t *testing.T, sessionID, userID string) {
	t.Helper()
	token, err := f.auth.Issue(session.Identity{UserID: userID})
	require.NoError(t, err)
	_, err = f.tracker.SignIn(context.Background(), sessionID, token)
	require.NoError(t, err)
}

func TestOpen_ReturnsSameSession(t *testing.T) {
	f := newFixture(t)

	a, err := f.manager.Open(context.Background(), "s1")
	require.NoError(t, err)
	b, err := f.manager.Open(context.Background(), "s1")
	require.NoError(t, err)
	c, err := f.manager.Open(context.Background(), "s2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, cart.PhaseHydrated, a.Cart().Phase())
}

func TestOpen_HydratesPersistedCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.manager.Open(ctx, "s1")
	require.NoError(t, err)
	s.AddItem(ctx, domain.CartItem{ProductID: "tee", Name: "Tee", Price: 25, Quantity: 2})

	other := NewManager(ctx, f.storage, f.tracker, f.mirror, 0, zap.NewNop())
	defer other.Close()

	restored, err := other.Open(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, restored.Cart().Items(), 1)
	assert.Equal(t, 50.0, restored.Cart().TotalPrice())
}

func TestOpen_ConcurrentFirstOpenHydratesOnce(t *testing.T) {
	f := newFixture(t)

	const callers = 16
	got := make([]*Session, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.manager.Open(context.Background(), "s1")
			assert.NoError(t, err)
			got[i] = s
		}()
	}
	wg.Wait()

	for _, s := range got[1:] {
		assert.Same(t, got[0], s)
	}
	f.storage.mu.Lock()
	defer f.storage.mu.Unlock()
	// cart snapshot and order history snapshot, once each
	assert.Equal(t, 2, f.storage.loads)
}

func TestOpen_HydrationDoesNotBlockOtherSessions(t *testing.T) {
	f := newFixture(t)
	f.storage.slowKey = cache.SnapshotKey(cache.CartStorage, "slow")
	f.storage.loading = make(chan struct{})
	f.storage.release = make(chan struct{})

	slow := make(chan error, 1)
	go func() {
		_, err := f.manager.Open(context.Background(), "slow")
		slow <- err
	}()
	<-f.storage.loading

	opened := make(chan error, 1)
	go func() {
		_, err := f.manager.Open(context.Background(), "fast")
		opened <- err
	}()
	select {
	case err := <-opened:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("open of another session waited on a slow hydration")
	}

	close(f.storage.release)
	require.NoError(t, <-slow)
	assert.Equal(t, 2, f.manager.count())
}

func TestSweep_StopsIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := t0
	f.manager.now = func() time.Time { return clock }

	_, err := f.manager.Open(ctx, "busy")
	require.NoError(t, err)
	baseline := goleak.IgnoreCurrent()

	idle, err := f.manager.Open(ctx, "idle")
	require.NoError(t, err)
	idle.AddItem(ctx, domain.CartItem{ProductID: "tee", Price: 25, Quantity: 2})
	for _, id := range []string{"a", "b", "c"} {
		_, err := f.manager.Open(ctx, id)
		require.NoError(t, err)
	}

	clock = t0.Add(50 * time.Minute)
	_, err = f.manager.Open(ctx, "busy")
	require.NoError(t, err)

	assert.Equal(t, 4, f.manager.sweep(t0.Add(70*time.Minute)))
	assert.Equal(t, 1, f.manager.count())
	// evicted sessions' syncers have exited
	goleak.VerifyNone(t, baseline)

	reopened, err := f.manager.Open(ctx, "idle")
	require.NoError(t, err)
	assert.NotSame(t, idle, reopened)
	items := reopened.Cart().Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestSweepLoop_EvictsInBackground(t *testing.T) {
	auth := session.NewAuthenticator("secret", time.Hour)
	m := NewManager(context.Background(), &memStorage{}, session.NewTracker(auth, session.NewBroker()), &mockMirror{}, 20*time.Millisecond, zap.NewNop())
	t.Cleanup(m.Close)

	_, err := m.Open(context.Background(), "s1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return m.count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClose_Twice(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Open(context.Background(), "s1")
	require.NoError(t, err)

	f.manager.Close()
	f.manager.Close()
	assert.Equal(t, 0, f.manager.count())
}

func TestOpen_StorageDownStartsEmpty(t *testing.T) {
	f := newFixture(t)
	f.storage.err = errors.New("redis down")

	s, err := f.manager.Open(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, s.Cart().Items())
}

func TestOpen_AfterClose(t *testing.T) {
	f := newFixture(t)
	f.manager.Close()

	_, err := f.manager.Open(context.Background(), "s1")
	assert.Error(t, err)
}

func TestGuestMutations_PersistWithoutMirroring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Open(ctx, "s1")
	require.NoError(t, err)

	s.AddItem(ctx, domain.CartItem{ProductID: "tee", Name: "Tee", Price: 25, Quantity: 1})
	s.AddItem(ctx, domain.CartItem{ProductID: "mug", Price: 10, Quantity: 1})
	s.UpdateQuantity(ctx, "tee", 3)
	s.RemoveItem(ctx, "mug")
	s.UpdateQuantity(ctx, "missing", 9)

	persisted := f.storage.items(t, "s1")
	require.Len(t, persisted, 1)
	assert.Equal(t, 3, persisted[0].Quantity)

	assert.Empty(t, f.mirror.added)
	assert.Empty(t, f.mirror.updated)
	assert.Empty(t, f.mirror.removed)
}

func TestSignedInMutations_MirrorToServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Open(ctx, "s1")
	require.NoError(t, err)
	f.signIn(t, "s1", "u1")

	s.AddItem(ctx, domain.CartItem{ProductID: "tee", VariantID: "tee-black-m", Price: 25, Quantity: 2})
	s.UpdateQuantity(ctx, "tee:tee-black-m", 4)
	s.RemoveItem(ctx, "tee:tee-black-m")
	s.Clear(ctx)

	f.mirror.mu.Lock()
	defer f.mirror.mu.Unlock()
	require.Len(t, f.mirror.added, 1)
	assert.Equal(t, "tee-black-m", f.mirror.added[0].VariantID)
	assert.Equal(t, []int{4}, f.mirror.updated)
	assert.Equal(t, []string{"tee"}, f.mirror.removed)
	assert.Equal(t, []string{"u1"}, f.mirror.cleared)
}

func TestMirrorFailureDoesNotAffectLocalCart(t *testing.T) {
	f := newFixture(t)
	f.mirror.err = errors.New("mongo down")
	ctx := context.Background()
	s, err := f.manager.Open(ctx, "s1")
	require.NoError(t, err)
	f.signIn(t, "s1", "u1")

	s.AddItem(ctx, domain.CartItem{ProductID: "tee", Price: 25, Quantity: 1})
	assert.Len(t, s.Cart().Items(), 1)
}

func TestSignIn_SyncsServerCartIntoSession(t *testing.T) {
	f := newFixture(t)
	f.mirror.rows = []domain.CartRow{{
		ItemLine: domain.ItemLine{ProductID: "jacket", Quantity: 1},
		Name:     "Denim Jacket",
		Price:    149,
	}}
	ctx := context.Background()
	s, err := f.manager.Open(ctx, "s1")
	require.NoError(t, err)
	s.AddItem(ctx, domain.CartItem{ProductID: "tee", Price: 25, Quantity: 1})

	require.Eventually(t, func() bool {
		f.signIn(t, "s1", "u1")
		return s.Cart().Phase() == cart.PhaseSynced
	}, 2*time.Second, 20*time.Millisecond)

	items := s.Cart().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "jacket", items[0].ProductID)

	assert.Eventually(t, func() bool {
		persisted := f.storage.items(t, "s1")
		return len(persisted) == 1 && persisted[0].ProductID == "jacket"
	}, time.Second, 10*time.Millisecond)
}

func TestNotifications_QueuedAndDrained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Open(ctx, "s1")
	require.NoError(t, err)

	s.AddItem(ctx, domain.CartItem{ProductID: "tee", Name: "Classic Tee", Quantity: 1})
	s.AddItem(ctx, domain.CartItem{ProductID: "mug", Quantity: 1})

	notes := s.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, "Classic Tee added to cart", notes[0].Message)
	assert.Equal(t, "mug added to cart", notes[1].Message)
	assert.Empty(t, s.Notifications())
}

func TestNotifications_Bounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Open(ctx, "s1")
	require.NoError(t, err)

	for i := 0; i < maxPendingNotifications+5; i++ {
		s.ItemAdded(domain.CartItem{ProductID: "tee"})
	}
	assert.Len(t, s.Notifications(), maxPendingNotifications)
}
