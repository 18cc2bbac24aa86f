// Package ledger keeps the bounded, persisted list of notifications shown to
// the user.
package ledger

import (
	"sort"
	"sync"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/pkg/profiling"
	"github.com/sirupsen/logrus"
)

// DefaultMaxStored is the entry cap.
const DefaultMaxStored = 100

type key struct {
	category models.NotificationCategory
	id       string
}

type record struct {
	entry models.NotificationEntry
	seq   uint64
}

// Ledger is the de-duplicated notification list. It is the only writer of
// its store.
type Ledger struct {
	mu      sync.Mutex
	entries map[key]*record
	seq     uint64
	max     int

	store  Store
	bus    bus.Publisher
	logger *logrus.Entry
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMaxStored overrides the entry cap.
func WithMaxStored(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.max = n
		}
	}
}

// New creates an empty ledger. A nil store keeps entries in memory only.
func New(store Store, pub bus.Publisher, logger *logrus.Entry, opts ...Option) *Ledger {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	l := &Ledger{
		entries: make(map[key]*record),
		max:     DefaultMaxStored,
		store:   store,
		bus:     pub,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory set with the persisted one. Records with an
// unknown category are skipped. Failures leave the ledger empty and are only
// logged.
func (l *Ledger) Load() {
	if l.store == nil {
		return
	}
	doc, err := l.store.Load()
	if err != nil {
		l.logger.WithError(errors.Wrap(err, errors.ErrCodeLedgerLoad, "failed to load notifications").
			WithDetail("backend", l.store.Backend())).Warn("Starting with an empty notification list")
		return
	}

	l.mu.Lock()
	l.entries = make(map[key]*record, len(doc.Entries))
	skipped := 0
	for _, rec := range doc.Entries {
		cat, err := models.ParseCategory(rec.Category)
		if err != nil {
			skipped++
			continue
		}
		l.seq++
		l.entries[key{cat, rec.ID}] = &record{
			entry: models.NotificationEntry{
				Category:    cat,
				ID:          rec.ID,
				Title:       rec.Title,
				Description: rec.Description,
				CreatedAt:   rec.CreatedAtUTC,
			},
			seq: l.seq,
		}
	}
	trimmed := l.trimLocked()
	if trimmed > 0 || skipped > 0 {
		l.persistLocked()
	}
	count := len(l.entries)
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"loaded":  count,
		"skipped": skipped,
		"trimmed": trimmed,
	}).Debug("Loaded notifications")
	l.publishCount(count)
}

// Upsert inserts entry or replaces the entry with the same category and id.
func (l *Ledger) Upsert(entry models.NotificationEntry) {
	l.mu.Lock()
	k := key{entry.Category, entry.ID}
	if existing, ok := l.entries[k]; ok {
		existing.entry = entry
	} else {
		l.seq++
		l.entries[k] = &record{entry: entry, seq: l.seq}
	}
	l.trimLocked()
	l.persistLocked()
	count := len(l.entries)
	l.mu.Unlock()

	l.publishCount(count)
}

// Remove deletes the entry with the given key. It reports whether it existed.
func (l *Ledger) Remove(category models.NotificationCategory, id string) bool {
	l.mu.Lock()
	k := key{category, id}
	if _, ok := l.entries[k]; !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.entries, k)
	l.persistLocked()
	count := len(l.entries)
	l.mu.Unlock()

	l.publishCount(count)
	return true
}

// Entries returns all entries oldest first. Equal timestamps keep insertion order.
func (l *Ledger) Entries() []models.NotificationEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs := l.sortedLocked()
	out := make([]models.NotificationEntry, len(recs))
	for i, r := range recs {
		out[i] = r.entry
	}
	return out
}

// Count returns the number of stored entries.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) sortedLocked() []*record {
	recs := make([]*record, 0, len(l.entries))
	for _, r := range l.entries {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.entry.CreatedAt.Equal(b.entry.CreatedAt) {
			return a.entry.CreatedAt.Before(b.entry.CreatedAt)
		}
		return a.seq < b.seq
	})
	return recs
}

// trimLocked evicts the oldest entries beyond the cap.
func (l *Ledger) trimLocked() int {
	over := len(l.entries) - l.max
	if over <= 0 {
		return 0
	}
	for _, r := range l.sortedLocked()[:over] {
		delete(l.entries, key{r.entry.Category, r.entry.ID})
	}
	return over
}

func (l *Ledger) persistLocked() {
	if l.store == nil {
		return
	}
	defer profiling.Start("ledger.persist").Stop()

	recs := l.sortedLocked()
	doc := &Document{Version: FormatVersion, Entries: make([]Record, len(recs))}
	for i, r := range recs {
		doc.Entries[i] = Record{
			Category:     string(r.entry.Category),
			ID:           r.entry.ID,
			Title:        r.entry.Title,
			Description:  r.entry.Description,
			CreatedAtUTC: r.entry.CreatedAt.UTC(),
		}
	}
	if err := l.store.Save(doc); err != nil {
		l.logger.WithError(errors.LedgerPersist(l.store.Backend(), err)).
			Warn("Notification list kept in memory only")
	}
}

func (l *Ledger) publishCount(count int) {
	if l.bus != nil {
		l.bus.Publish(models.NotificationCountChanged{Count: count})
	}
}
