package pipeline

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/pkg/profiling"
	"github.com/sirupsen/logrus"
)

// BuildFunc computes the published payload for one pass. entries holds the
// latest signal per kind in build order. The function must honour ctx.
type BuildFunc func(ctx context.Context, entries []models.ChangeSignal) (json.RawMessage, error)

// Builder runs at most one build pass at a time over the Collector's pending
// set. It is triggered by debounce expiry and by periodic ticks; a trigger that
// finds a pass running does nothing and the next trigger re-checks.
type Builder struct {
	collector *Collector
	build     BuildFunc
	bus       bus.Publisher
	logger    *logrus.Entry

	halted atomic.Bool

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	newID func() string
	now   func() time.Time
}

// NewBuilder creates a Builder draining c and hooks it to c's debounce timer.
func NewBuilder(c *Collector, build BuildFunc, pub bus.Publisher, logger *logrus.Entry) *Builder {
	if build == nil {
		build = HandleMapBuild
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Builder{
		collector: c,
		build:     build,
		bus:       pub,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		newID:     func() string { return uuid.NewString() },
		now:       time.Now,
	}
	c.setOnFire(func() { b.Tick() })
	return b
}

// Tick starts a build pass if entries are pending, no pass is running and the
// builder is not halted. It reports whether a pass was started.
func (b *Builder) Tick() bool {
	if b.halted.Load() {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	entries, ok := b.collector.acquire()
	if !ok {
		return false
	}
	b.wg.Add(1)
	go b.run(entries)
	return true
}

// Run ticks the builder every interval until ctx is cancelled.
func (b *Builder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick()
		}
	}
}

// SetHalt suspends or resumes the start of new passes. Pending entries are kept.
func (b *Builder) SetHalt(halted bool) {
	if b.halted.Swap(halted) == halted {
		return
	}
	b.logger.WithField("halted", halted).Info("Builder halt state changed")
	if b.bus != nil {
		b.bus.Publish(models.HaltChanged{Halted: halted})
	}
}

// Halted reports the current halt flag.
func (b *Builder) Halted() bool {
	return b.halted.Load()
}

// Close cancels a running pass, waits for it to return and stops the collector.
// It is safe to call more than once.
func (b *Builder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.collector.Close()
	b.wg.Wait()
}

func (b *Builder) run(entries []models.ChangeSignal) {
	defer b.wg.Done()
	defer b.collector.release()

	passID := b.newID()
	log := b.logger.WithFields(logrus.Fields{
		"pass":  passID,
		"kinds": kindNames(entries),
	})
	started := b.now()
	log.Debug("Build pass started")

	timer := profiling.Start("build.pass")
	data, err := b.safeBuild(entries)
	timer.Stop()
	if err != nil && (b.ctx.Err() != nil || stderrors.Is(err, context.Canceled)) {
		log.Debug("Build pass cancelled")
		return
	}
	if err != nil {
		// Entries of a failed pass are not re-queued; a later signal for the
		// same kind is needed to rebuild it.
		perr := errors.BuildFailed(passID, err)
		log.WithError(perr).WithField("critical", true).Error("Build pass failed, discarding its entries")
		if b.bus != nil {
			b.bus.Publish(models.BuildFailed{
				PassID: passID,
				Kinds:  kindsOf(entries),
				Reason: err.Error(),
				At:     b.now(),
			})
		}
		return
	}

	snap := &models.Snapshot{
		PassID:      passID,
		Entries:     entries,
		Data:        data,
		Fingerprint: Fingerprint(entries, data),
		BuiltAt:     b.now(),
	}
	log.WithField("duration", b.now().Sub(started)).Info("Build pass completed")
	if b.bus != nil {
		b.bus.Publish(models.BuildCompleted{Snapshot: snap})
	}
}

func (b *Builder) safeBuild(entries []models.ChangeSignal) (data json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build panicked: %v", r)
		}
	}()
	return b.build(b.ctx, entries)
}

// HandleMapBuild is the default BuildFunc: it publishes the kind → handle map.
func HandleMapBuild(ctx context.Context, entries []models.ChangeSignal) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles := make(map[string]string, len(entries))
	for _, e := range entries {
		handles[e.Kind.String()] = e.Handle
	}
	return json.Marshal(handles)
}

func kindsOf(entries []models.ChangeSignal) []models.ChangeKind {
	kinds := make([]models.ChangeKind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}
	return kinds
}

func kindNames(entries []models.ChangeSignal) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Kind.String()
	}
	return names
}
