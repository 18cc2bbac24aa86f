// Package pipeline turns bursts of local change signals into serialized build
// passes. The Collector debounces and coalesces signals into a pending set; the
// Builder drains that set into at most one running build at a time.
package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/grovetools/peersync/pkg/models"
)

const (
	// DefaultDebounce is the quiet period after the last signal before a pass fires.
	DefaultDebounce = time.Second
	// FastDebounce is the window used for latency-sensitive kinds.
	FastDebounce = 500 * time.Millisecond
)

// Collector accumulates change signals, last write wins per kind. Debounce is
// global across kinds: every Notify replaces the outstanding timer, so a burst
// touching several kinds collapses into a single fire.
//
// The pending set and the build-running flag share one mutex; critical
// sections are short and never block.
type Collector struct {
	mu       sync.Mutex
	pending  map[models.ChangeKind]models.ChangeSignal
	timer    *time.Timer
	epoch    uint64
	building bool
	closed   bool

	debounce time.Duration
	fast     time.Duration
	fastKind map[models.ChangeKind]bool
	onFire   func()
	now      func() time.Time
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithDebounce sets the default and fast debounce windows.
func WithDebounce(normal, fast time.Duration) CollectorOption {
	return func(c *Collector) {
		if normal > 0 {
			c.debounce = normal
		}
		if fast > 0 {
			c.fast = fast
		}
	}
}

// WithFastKinds marks kinds that use the fast debounce window when Notify is
// called without an explicit delay.
func WithFastKinds(kinds ...models.ChangeKind) CollectorOption {
	return func(c *Collector) {
		for _, k := range kinds {
			c.fastKind[k] = true
		}
	}
}

// NewCollector creates a Collector with the default debounce windows.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		pending:  make(map[models.ChangeKind]models.ChangeSignal),
		debounce: DefaultDebounce,
		fast:     FastDebounce,
		fastKind: make(map[models.ChangeKind]bool),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify records handle as the pending entry for kind and restarts the
// debounce timer with the window configured for that kind.
func (c *Collector) Notify(kind models.ChangeKind, handle string) {
	delay := c.debounce
	if c.fastKind[kind] {
		delay = c.fast
	}
	c.NotifyAfter(kind, handle, delay)
}

// NotifyAfter is Notify with an explicit debounce window.
func (c *Collector) NotifyAfter(kind models.ChangeKind, handle string, delay time.Duration) {
	if delay <= 0 {
		delay = c.debounce
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.pending[kind] = models.ChangeSignal{Kind: kind, Handle: handle, ReceivedAt: c.now()}

	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
	}
	epoch := c.epoch
	c.timer = time.AfterFunc(delay, func() { c.expire(epoch) })
}

// expire runs on the timer goroutine. Only the timer of the current epoch may fire;
// a stale timer that raced with Stop is ignored.
func (c *Collector) expire(epoch uint64) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	fire := c.onFire
	c.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// setOnFire installs the callback run when a debounce window expires.
func (c *Collector) setOnFire(fn func()) {
	c.mu.Lock()
	c.onFire = fn
	c.mu.Unlock()
}

// Pending returns a copy of the pending set in build order.
func (c *Collector) Pending() []models.ChangeSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedEntries(c.pending)
}

// Len returns the number of pending kinds.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Building reports whether a build pass currently holds the pipeline.
func (c *Collector) Building() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.building
}

// acquire swaps out the pending set for a build pass. It fails when the set is
// empty, a pass is already running, or the collector is closed. The returned
// entries are owned by the caller.
func (c *Collector) acquire() ([]models.ChangeSignal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.building || len(c.pending) == 0 {
		return nil, false
	}
	entries := sortedEntries(c.pending)
	c.pending = make(map[models.ChangeKind]models.ChangeSignal)
	c.building = true
	return entries, true
}

// release marks the running pass as finished.
func (c *Collector) release() {
	c.mu.Lock()
	c.building = false
	c.mu.Unlock()
}

// Close cancels any outstanding debounce timer. Further signals are ignored.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func sortedEntries(pending map[models.ChangeKind]models.ChangeSignal) []models.ChangeSignal {
	entries := make([]models.ChangeSignal, 0, len(pending))
	for _, sig := range pending {
		entries = append(entries, sig)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Kind < entries[j].Kind })
	return entries
}
