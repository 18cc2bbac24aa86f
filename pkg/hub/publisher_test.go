package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu        sync.Mutex
	connected bool
	frames    [][]byte
}

func (s *fakeSender) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return errors.NotConnected()
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func snapshot(pass, fp string) *models.Snapshot {
	return &models.Snapshot{
		PassID:      pass,
		Data:        json.RawMessage(`{"player":"me"}`),
		Fingerprint: fp,
		BuiltAt:     time.Now(),
	}
}

func TestPublisherSkipsUnchangedSnapshot(t *testing.T) {
	sender := &fakeSender{connected: true}
	p := NewSnapshotPublisher(sender, quietLogger())
	ctx := context.Background()

	require.NoError(t, p.Offer(ctx, snapshot("a", "fp1")))
	require.NoError(t, p.Offer(ctx, snapshot("b", "fp1")))
	assert.Equal(t, 1, sender.count())

	require.NoError(t, p.Offer(ctx, snapshot("c", "fp2")))
	assert.Equal(t, 2, sender.count())
	assert.Equal(t, "fp2", p.LastSent())

	var frame SnapshotFrame
	require.NoError(t, json.Unmarshal(sender.frames[1], &frame))
	assert.Equal(t, "snapshot", frame.Type)
	assert.Equal(t, "c", frame.Snapshot.PassID)
}

func TestPublisherResendsAfterReconnect(t *testing.T) {
	sender := &fakeSender{connected: true}
	p := NewSnapshotPublisher(sender, quietLogger())
	ctx := context.Background()

	require.NoError(t, p.Offer(ctx, snapshot("a", "fp1")))
	require.NoError(t, p.Resync(ctx))
	assert.Equal(t, 2, sender.count())
}

func TestPublisherHoldsSnapshotWhileDisconnected(t *testing.T) {
	sender := &fakeSender{}
	p := NewSnapshotPublisher(sender, quietLogger())
	ctx := context.Background()

	err := p.Offer(ctx, snapshot("a", "fp1"))
	assert.True(t, errors.Is(err, errors.ErrCodeNotConnected))
	assert.Empty(t, p.LastSent())

	sender.mu.Lock()
	sender.connected = true
	sender.mu.Unlock()

	require.NoError(t, p.Resync(ctx))
	assert.Equal(t, 1, sender.count())
	assert.Equal(t, "fp1", p.LastSent())
}

func TestPublisherRunConsumesChannels(t *testing.T) {
	sender := &fakeSender{connected: true}
	p := NewSnapshotPublisher(sender, quietLogger())

	builds := make(chan models.BuildCompleted, 2)
	reconnects := make(chan models.Reconnected, 1)
	builds <- models.BuildCompleted{Snapshot: snapshot("a", "fp1")}
	builds <- models.BuildCompleted{Snapshot: snapshot("b", "fp1")}
	close(builds)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), builds, reconnects)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
	reconnects <- models.Reconnected{}
	assert.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 5*time.Millisecond)

	close(reconnects)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channels closed")
	}
}
