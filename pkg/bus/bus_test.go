package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ S string }

func TestPublishRoutesByType(t *testing.T) {
	b := New(nil)
	defer b.Close()

	pings := Subscribe[ping](b)
	pongs := Subscribe[pong](b)

	b.Publish(ping{N: 1})
	b.Publish(pong{S: "a"})

	select {
	case got := <-pings.Events():
		assert.Equal(t, 1, got.N)
	case <-time.After(time.Second):
		t.Fatal("ping not delivered")
	}
	select {
	case got := <-pongs.Events():
		assert.Equal(t, "a", got.S)
	case <-time.After(time.Second):
		t.Fatal("pong not delivered")
	}
	assert.Len(t, pings.Events(), 0)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := SubscribeBuffered[ping](b, 1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(ping{N: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Equal(t, 0, (<-sub.Events()).N)
}

func TestUnsubscribeAndClose(t *testing.T) {
	b := New(nil)

	sub := Subscribe[ping](b)
	sub.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed after Close")
	sub.Close() // second close is a no-op

	other := Subscribe[ping](b)
	b.Close()
	_, ok = <-other.Events()
	assert.False(t, ok, "channel should be closed when bus closes")

	// Publishing and subscribing after close are no-ops.
	b.Publish(ping{N: 1})
	late := Subscribe[ping](b)
	_, ok = <-late.Events()
	assert.False(t, ok)
}

func TestSubscribeFunc(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var total atomic.Int64
	SubscribeFunc(ctx, b, func(p ping) { total.Add(int64(p.N)) })

	b.Publish(ping{N: 2})
	b.Publish(ping{N: 3})
	require.Eventually(t, func() bool { return total.Load() == 5 }, time.Second, 5*time.Millisecond)
}
