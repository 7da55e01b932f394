package session

import (
	"context"
	"sync"
	"time"
)

// Tracker holds the current identity of each session and announces changes.
type Tracker struct {
	auth   *Authenticator
	broker *Broker
	now    func() time.Time

	mu         sync.RWMutex
	identities map[string]Identity
}

func NewTracker(auth *Authenticator, broker *Broker) *Tracker {
	return &Tracker{
		auth:       auth,
		broker:     broker,
		now:        time.Now,
		identities: make(map[string]Identity),
	}
}

// Current returns the session's identity. An identity whose token has
// expired is forgotten and reported as signed out.
func (t *Tracker) Current(sessionID string) (Identity, bool) {
	t.mu.RLock()
	id, ok := t.identities[sessionID]
	t.mu.RUnlock()
	if !ok || !id.Expired(t.now()) {
		return id, ok
	}

	t.mu.Lock()
	if cur, ok := t.identities[sessionID]; ok && cur.Expired(t.now()) {
		delete(t.identities, sessionID)
	}
	t.mu.Unlock()
	return Identity{}, false
}

func (t *Tracker) SignIn(ctx context.Context, sessionID, token string) (Identity, error) {
	id, err := t.auth.Verify(token)
	if err != nil {
		return Identity{}, err
	}

	t.mu.Lock()
	t.identities[sessionID] = id
	t.mu.Unlock()

	t.broker.Publish(Event{Type: SignedIn, SessionID: sessionID, Identity: id, At: t.now()})
	return id, nil
}

func (t *Tracker) SignOut(ctx context.Context, sessionID string) {
	t.mu.Lock()
	id := t.identities[sessionID]
	delete(t.identities, sessionID)
	t.mu.Unlock()

	t.broker.Publish(Event{Type: SignedOut, SessionID: sessionID, Identity: id, At: t.now()})
}

func (t *Tracker) Subscribe(ctx context.Context, sessionID string) <-chan Event {
	return t.broker.Subscribe(ctx, sessionID)
}
