package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/peersync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []any
}

func (r *recorder) Publish(msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) completed() []*models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Snapshot
	for _, m := range r.msgs {
		if c, ok := m.(models.BuildCompleted); ok {
			out = append(out, c.Snapshot)
		}
	}
	return out
}

func (r *recorder) failed() []models.BuildFailed {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BuildFailed
	for _, m := range r.msgs {
		if f, ok := m.(models.BuildFailed); ok {
			out = append(out, f)
		}
	}
	return out
}

func handlesOf(entries []models.ChangeSignal) map[models.ChangeKind]string {
	out := make(map[models.ChangeKind]string, len(entries))
	for _, e := range entries {
		out[e.Kind] = e.Handle
	}
	return out
}

func TestBurstCoalescesIntoOnePass(t *testing.T) {
	rec := &recorder{}
	c := NewCollector(WithDebounce(40*time.Millisecond, 20*time.Millisecond))
	b := NewBuilder(c, nil, rec, nil)
	defer b.Close()

	c.Notify(models.KindPlayer, "p1")
	c.Notify(models.KindPet, "pet1")
	c.Notify(models.KindPlayer, "p2")
	c.Notify(models.KindCompanion, "c1")

	require.Eventually(t, func() bool { return len(rec.completed()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// No further pass fires once the burst is drained.
	time.Sleep(120 * time.Millisecond)
	snaps := rec.completed()
	require.Len(t, snaps, 1)

	assert.Equal(t, map[models.ChangeKind]string{
		models.KindPlayer:    "p2",
		models.KindPet:       "pet1",
		models.KindCompanion: "c1",
	}, handlesOf(snaps[0].Entries))
	assert.Equal(t, []models.ChangeKind{models.KindPlayer, models.KindPet, models.KindCompanion}, snaps[0].Kinds())
	assert.NotEmpty(t, snaps[0].PassID)
	assert.Equal(t, Fingerprint(snaps[0].Entries, snaps[0].Data), snaps[0].Fingerprint)
	assert.Equal(t, 0, c.Len())
}

func TestNotifyRestartsDebounce(t *testing.T) {
	rec := &recorder{}
	c := NewCollector(WithDebounce(150*time.Millisecond, 0))
	b := NewBuilder(c, nil, rec, nil)
	defer b.Close()

	c.Notify(models.KindPlayer, "p1")
	time.Sleep(100 * time.Millisecond)
	c.Notify(models.KindPet, "pet1")
	time.Sleep(100 * time.Millisecond)

	// 200ms after the first signal but only 100ms after the last one.
	assert.Empty(t, rec.completed(), "debounce should restart on every signal")

	require.Eventually(t, func() bool { return len(rec.completed()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, rec.completed()[0].Entries, 2)
}

func TestFastKindUsesShortWindow(t *testing.T) {
	rec := &recorder{}
	c := NewCollector(WithDebounce(time.Hour, 30*time.Millisecond), WithFastKinds(models.KindPlayer))
	b := NewBuilder(c, nil, rec, nil)
	defer b.Close()

	c.Notify(models.KindPlayer, "p1")
	require.Eventually(t, func() bool { return len(rec.completed()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestPassesNeverOverlap(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	var running, maxRunning atomic.Int32
	var calls atomic.Int32

	build := func(ctx context.Context, entries []models.ChangeSignal) (json.RawMessage, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			old := maxRunning.Load()
			if n <= old || maxRunning.CompareAndSwap(old, n) {
				break
			}
		}
		if calls.Add(1) == 1 {
			<-release
		}
		return HandleMapBuild(ctx, entries)
	}

	c := NewCollector(WithDebounce(time.Hour, time.Hour))
	b := NewBuilder(c, build, rec, nil)
	defer b.Close()

	c.Notify(models.KindPlayer, "p1")
	require.True(t, b.Tick())
	require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, time.Millisecond)

	// Signals arriving mid-pass are held for the next pass.
	c.Notify(models.KindPlayer, "p2")
	c.Notify(models.KindPet, "pet1")
	assert.False(t, b.Tick(), "a second pass must not start while one is running")
	assert.Equal(t, 2, c.Len())

	close(release)
	require.Eventually(t, func() bool { return len(rec.completed()) == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return b.Tick() }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.completed()) == 2 }, time.Second, time.Millisecond)

	snaps := rec.completed()
	assert.Equal(t, map[models.ChangeKind]string{models.KindPlayer: "p1"}, handlesOf(snaps[0].Entries))
	assert.Equal(t, map[models.ChangeKind]string{models.KindPlayer: "p2", models.KindPet: "pet1"}, handlesOf(snaps[1].Entries))
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestHaltKeepsPendingEntries(t *testing.T) {
	rec := &recorder{}
	c := NewCollector(WithDebounce(time.Hour, time.Hour))
	b := NewBuilder(c, nil, rec, nil)
	defer b.Close()

	b.SetHalt(true)
	c.Notify(models.KindPlayer, "p1")
	c.Notify(models.KindCompanion, "c1")
	before := c.Pending()

	assert.False(t, b.Tick())
	assert.True(t, b.Halted())
	assert.Equal(t, before, c.Pending())

	b.SetHalt(false)
	require.True(t, b.Tick())
	require.Eventually(t, func() bool { return len(rec.completed()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, before, rec.completed()[0].Entries)

	var halts []bool
	for _, m := range rec.msgs {
		if h, ok := m.(models.HaltChanged); ok {
			halts = append(halts, h.Halted)
		}
	}
	assert.Equal(t, []bool{true, false}, halts)
}

func TestFailedPassDiscardsEntries(t *testing.T) {
	rec := &recorder{}
	build := func(ctx context.Context, entries []models.ChangeSignal) (json.RawMessage, error) {
		return nil, fmt.Errorf("appearance unavailable")
	}
	c := NewCollector(WithDebounce(time.Hour, time.Hour))
	b := NewBuilder(c, build, rec, nil)
	defer b.Close()

	c.Notify(models.KindPet, "pet1")
	require.True(t, b.Tick())
	require.Eventually(t, func() bool { return len(rec.failed()) == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !c.Building() }, time.Second, time.Millisecond)

	failed := rec.failed()[0]
	assert.Equal(t, []models.ChangeKind{models.KindPet}, failed.Kinds)
	assert.Contains(t, failed.Reason, "appearance unavailable")
	assert.Empty(t, rec.completed())
	assert.Equal(t, 0, c.Len(), "failed entries are not re-queued")
	assert.False(t, b.Tick())
}

func TestPanicIsReportedAsFailure(t *testing.T) {
	rec := &recorder{}
	build := func(ctx context.Context, entries []models.ChangeSignal) (json.RawMessage, error) {
		panic("bad handle")
	}
	c := NewCollector(WithDebounce(time.Hour, time.Hour))
	b := NewBuilder(c, build, rec, nil)
	defer b.Close()

	c.Notify(models.KindPlayer, "p1")
	require.True(t, b.Tick())
	require.Eventually(t, func() bool { return len(rec.failed()) == 1 }, time.Second, time.Millisecond)
	assert.Contains(t, rec.failed()[0].Reason, "bad handle")
	require.Eventually(t, func() bool { return !c.Building() }, time.Second, time.Millisecond)
}

func TestCloseCancelsRunningPass(t *testing.T) {
	rec := &recorder{}
	started := make(chan struct{})
	build := func(ctx context.Context, entries []models.ChangeSignal) (json.RawMessage, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c := NewCollector(WithDebounce(time.Hour, time.Hour))
	b := NewBuilder(c, build, rec, nil)

	c.Notify(models.KindPlayer, "p1")
	require.True(t, b.Tick())
	<-started

	done := make(chan struct{})
	go func() {
		b.Close()
		b.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	assert.Empty(t, rec.failed(), "cancellation is not a failure")
	assert.Empty(t, rec.completed())

	c.Notify(models.KindPlayer, "p2")
	assert.Equal(t, 0, c.Len(), "closed collector ignores signals")
	assert.False(t, b.Tick())
}

func TestFingerprintIgnoresArrivalTime(t *testing.T) {
	a := []models.ChangeSignal{{Kind: models.KindPlayer, Handle: "p1", ReceivedAt: time.Unix(1, 0)}}
	b := []models.ChangeSignal{{Kind: models.KindPlayer, Handle: "p1", ReceivedAt: time.Unix(2, 0)}}
	c := []models.ChangeSignal{{Kind: models.KindPlayer, Handle: "p2"}}

	assert.Equal(t, Fingerprint(a, []byte("x")), Fingerprint(b, []byte("x")))
	assert.NotEqual(t, Fingerprint(a, []byte("x")), Fingerprint(c, []byte("x")))
	assert.NotEqual(t, Fingerprint(a, []byte("x")), Fingerprint(a, []byte("y")))
}
