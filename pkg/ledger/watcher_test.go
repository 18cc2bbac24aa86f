package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T) (*Ledger, *bus.Bus, *bus.Subscription[models.Toast]) {
	t.Helper()
	b := bus.New(quietLogger())
	l := New(nil, b, quietLogger())
	toasts := bus.Subscribe[models.Toast](b)
	w := NewWatcher(l, b, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})
	return l, b, toasts
}

func nextToast(t *testing.T, sub *bus.Subscription[models.Toast]) models.Toast {
	t.Helper()
	select {
	case toast := <-sub.Events():
		return toast
	case <-time.After(2 * time.Second):
		t.Fatal("no toast published")
		return models.Toast{}
	}
}

func TestPairingLifecycle(t *testing.T) {
	l, b, toasts := startWatcher(t)

	b.Publish(models.PairingRequested{UID: "uid-1", Alias: "Tataru"})
	toast := nextToast(t, toasts)
	assert.Equal(t, models.ToastInfo, toast.Level)
	assert.Contains(t, toast.Message, "Tataru")
	require.Eventually(t, func() bool { return l.Count() == 1 }, time.Second, 5*time.Millisecond)

	b.Publish(models.PairingRequested{UID: "uid-1", Alias: "Tataru"})
	nextToast(t, toasts)
	assert.Equal(t, 1, l.Count(), "repeat request replaces the entry")

	b.Publish(models.PairingResolved{UID: "uid-1"})
	require.Eventually(t, func() bool { return l.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPeerNamesAreSanitized(t *testing.T) {
	l, b, toasts := startWatcher(t)

	b.Publish(models.PairingRequested{UID: "uid-9", Alias: "\x1b[2J\x1b[31mMallory\nroot"})
	toast := nextToast(t, toasts)
	assert.Equal(t, "Mallory root wants to pair with you", toast.Message)

	b.Publish(models.PairingRequested{UID: "uid-10", Alias: "\x1b[0m"})
	toast = nextToast(t, toasts)
	assert.Equal(t, "uid-10 wants to pair with you", toast.Message)
	require.Eventually(t, func() bool { return l.Count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSyncshellVisibility(t *testing.T) {
	l, b, toasts := startWatcher(t)

	b.Publish(models.SyncshellVisibilityChanged{GroupID: "g-1", Name: "Moogle Club", Visible: false})
	toast := nextToast(t, toasts)
	assert.Contains(t, toast.Message, "Moogle Club is now hidden")

	require.Eventually(t, func() bool { return l.Count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.CategorySyncshell, l.Entries()[0].Category)
}

func TestConnectionLostEntryAndRecoveryToast(t *testing.T) {
	l, b, toasts := startWatcher(t)

	b.Publish(models.Reconnected{})
	b.Publish(models.Disconnected{Attempt: 3, Reason: "connection refused"})
	toast := nextToast(t, toasts)
	assert.Equal(t, models.ToastWarning, toast.Level, "initial connect raises no toast")
	assert.Equal(t, "Connection lost", toast.Title)

	require.Eventually(t, func() bool { return l.Count() == 1 }, time.Second, 5*time.Millisecond)
	e := l.Entries()[0]
	assert.Equal(t, models.CategoryConnection, e.Category)
	assert.Equal(t, ConnectionLostID, e.ID)

	b.Publish(models.Reconnected{Recovered: true})
	toast = nextToast(t, toasts)
	assert.Equal(t, models.ToastSuccess, toast.Level)
	assert.Equal(t, 1, l.Count(), "the durable entry survives reconnection")
}

func TestRecoveryToastIgnoresDeliveryOrder(t *testing.T) {
	_, b, toasts := startWatcher(t)

	const rounds = 20
	for i := 0; i < rounds; i++ {
		b.Publish(models.Disconnected{Attempt: 3, Reason: "eof"})
		b.Publish(models.Reconnected{Recovered: true})
	}

	counts := map[models.ToastLevel]int{}
	for i := 0; i < 2*rounds; i++ {
		counts[nextToast(t, toasts).Level]++
	}
	assert.Equal(t, rounds, counts[models.ToastWarning])
	assert.Equal(t, rounds, counts[models.ToastSuccess])
}
