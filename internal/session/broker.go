package session

import (
	"context"
	"sync"
	"time"
)

type EventType string

const (
	SignedIn  EventType = "signed_in"
	SignedOut EventType = "signed_out"
)

type Event struct {
	Type      EventType
	SessionID string
	Identity  Identity
	At        time.Time
}

type subscriber struct {
	ch   chan Event
	done <-chan struct{}
}

// Broker fans session events out to subscribers of the same session.
// A subscription lives until the context passed to Subscribe is done.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]subscriber
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]subscriber)}
}

func (b *Broker) Subscribe(ctx context.Context, sessionID string) <-chan Event {
	ch := make(chan Event, 8)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]subscriber)
	}
	b.subs[sessionID][id] = subscriber{ch: ch, done: ctx.Done()}
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[sessionID], id)
		if len(b.subs[sessionID]) == 0 {
			delete(b.subs, sessionID)
		}
	})

	return ch
}

// Publish delivers evt to every live subscriber of evt.SessionID, waiting on
// slow subscribers until they read or unsubscribe.
func (b *Broker) Publish(evt Event) {
	b.mu.Lock()
	targets := make([]subscriber, 0, len(b.subs[evt.SessionID]))
	for _, s := range b.subs[evt.SessionID] {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- evt:
		case <-s.done:
		}
	}
}

func (b *Broker) subscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}
