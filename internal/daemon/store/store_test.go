package store

import (
	"context"
	"testing"
	"time"

	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpdate(t *testing.T) {
	st := New()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	snap := &models.Snapshot{PassID: "p1", Fingerprint: "abc"}
	st.ApplyUpdate(Update{Type: UpdateBuildFailed, Payload: &BuildError{PassID: "p0", Reason: "boom"}})
	st.ApplyUpdate(Update{Type: UpdateSnapshot, Payload: snap})
	st.ApplyUpdate(Update{Type: UpdateConnection, Payload: models.StateConnected})
	st.ApplyUpdate(Update{Type: UpdateSession, Payload: &models.SessionInfo{UID: "u1"}})
	st.ApplyUpdate(Update{Type: UpdateHalt, Payload: true})
	st.ApplyUpdate(Update{Type: UpdateNotifications, Payload: 7})

	state := st.Get()
	assert.Equal(t, snap, state.Snapshot)
	assert.Nil(t, state.LastBuildError, "a successful pass clears the last error")
	assert.Equal(t, models.StateConnected, state.Connection)
	require.NotNil(t, state.Session)
	assert.Equal(t, "u1", state.Session.UID)
	assert.True(t, state.Halted)
	assert.Equal(t, 7, state.Notifications)
	assert.Len(t, ch, 6)

	st.ApplyUpdate(Update{Type: UpdateConnection, Payload: models.StateReconnecting})
	assert.Nil(t, st.Get().Session)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	st := New()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	for i := 0; i < 250; i++ {
		st.ApplyUpdate(Update{Type: UpdateNotifications, Payload: i})
	}
	assert.Equal(t, 249, st.Get().Notifications)
	assert.Len(t, ch, 100)
}

func TestUnsubscribeTwice(t *testing.T) {
	st := New()
	ch := st.Subscribe()
	st.Unsubscribe(ch)
	st.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestFeedMirrorsBus(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	b := bus.New(logrus.NewEntry(logger))
	defer b.Close()

	st := New()
	feed := NewFeed(st, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	b.Publish(models.HaltChanged{Halted: true})
	b.Publish(models.NotificationCountChanged{Count: 3})
	b.Publish(models.ConnectionStateChanged{From: models.StateDisconnected, To: models.StateConnecting})
	b.Publish(models.BuildFailed{PassID: "p9", Reason: "kaboom", Kinds: []models.ChangeKind{models.KindPet}})

	require.Eventually(t, func() bool {
		s := st.Get()
		return s.Halted && s.Notifications == 3 && s.Connection == models.StateConnecting && s.LastBuildError != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "kaboom", st.Get().LastBuildError.Reason)
}
