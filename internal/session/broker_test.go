package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroker_DeliversToSameSession(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine := b.Subscribe(ctx, "s1")
	other := b.Subscribe(ctx, "s2")

	b.Publish(Event{Type: SignedIn, SessionID: "s1", Identity: Identity{UserID: "u1"}})

	evt := receive(t, mine)
	assert.Equal(t, SignedIn, evt.Type)
	assert.Equal(t, "u1", evt.Identity.UserID)

	select {
	case evt := <-other:
		t.Fatalf("unexpected event for other session: %+v", evt)
	default:
	}
}

func TestBroker_UnsubscribesOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	b.Subscribe(ctx, "s1")
	require.Equal(t, 1, b.subscriberCount("s1"))

	cancel()
	assert.Eventually(t, func() bool { return b.subscriberCount("s1") == 0 }, time.Second, 5*time.Millisecond)

	// no subscribers: must not block
	b.Publish(Event{Type: SignedOut, SessionID: "s1"})
}

func TestBroker_PublishDoesNotBlockOnCancelledSubscriber(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	b.Subscribe(ctx, "s1")

	for i := 0; i < 8; i++ {
		b.Publish(Event{Type: SignedIn, SessionID: "s1"})
	}
	cancel()

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: SignedIn, SessionID: "s1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a cancelled subscriber")
	}
}
