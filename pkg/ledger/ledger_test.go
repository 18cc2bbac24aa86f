package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/peersync/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countRecorder struct {
	mu     sync.Mutex
	counts []int
}

func (r *countRecorder) Publish(msg any) {
	if c, ok := msg.(models.NotificationCountChanged); ok {
		r.mu.Lock()
		r.counts = append(r.counts, c.Count)
		r.mu.Unlock()
	}
}

func (r *countRecorder) last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.counts) == 0 {
		return -1
	}
	return r.counts[len(r.counts)-1]
}

type failingStore struct {
	saves int
}

func (s *failingStore) Load() (*Document, error) { return nil, fmt.Errorf("disk on fire") }
func (s *failingStore) Save(*Document) error {
	s.saves++
	return fmt.Errorf("read-only file system")
}
func (s *failingStore) Backend() string { return "failing" }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(cat models.NotificationCategory, id string, offset time.Duration) models.NotificationEntry {
	return models.NotificationEntry{
		Category:  cat,
		ID:        id,
		Title:     "title " + id,
		CreatedAt: base.Add(offset),
	}
}

func TestUpsertEvictsOldestBeyondCap(t *testing.T) {
	rec := &countRecorder{}
	l := New(nil, rec, quietLogger())

	// Insert out of chronological order so eviction must sort by CreatedAt.
	for i := 100; i >= 1; i-- {
		l.Upsert(entry(models.CategoryPairing, fmt.Sprintf("p%03d", i), time.Duration(i)*time.Minute))
	}
	require.Equal(t, 100, l.Count())

	l.Upsert(entry(models.CategoryPairing, "p000", 0))
	assert.Equal(t, 100, l.Count())

	entries := l.Entries()
	assert.Equal(t, "p001", entries[0].ID, "the newly inserted oldest entry is evicted")
	for _, e := range entries {
		assert.NotEqual(t, "p000", e.ID)
	}
	assert.Equal(t, 100, rec.last())
}

func TestUpsert101DistinctKeys(t *testing.T) {
	l := New(nil, nil, quietLogger())
	for i := 0; i < 101; i++ {
		l.Upsert(entry(models.CategorySyncshell, fmt.Sprintf("g%03d", i), time.Duration(i)*time.Second))
	}

	entries := l.Entries()
	require.Len(t, entries, 100)
	assert.Equal(t, "g001", entries[0].ID)
	assert.Equal(t, "g100", entries[99].ID)
}

func TestUpsertReplacesInPlace(t *testing.T) {
	rec := &countRecorder{}
	l := New(nil, rec, quietLogger())
	l.Upsert(entry(models.CategoryPairing, "a", 0))
	l.Upsert(entry(models.CategoryPairing, "b", time.Second))

	updated := entry(models.CategoryPairing, "a", 0)
	updated.Title = "updated"
	l.Upsert(updated)

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "updated", entries[0].Title)
	assert.Equal(t, 2, rec.last())
}

func TestSameIDDifferentCategoryIsDistinct(t *testing.T) {
	l := New(nil, nil, quietLogger())
	l.Upsert(entry(models.CategoryPairing, "x", 0))
	l.Upsert(entry(models.CategorySyncshell, "x", 0))
	assert.Equal(t, 2, l.Count())
}

func TestEntriesTieBreakByInsertion(t *testing.T) {
	l := New(nil, nil, quietLogger())
	for _, id := range []string{"c", "a", "b"} {
		l.Upsert(entry(models.CategoryPairing, id, 0))
	}

	var ids []string
	for _, e := range l.Entries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRemove(t *testing.T) {
	rec := &countRecorder{}
	l := New(nil, rec, quietLogger())
	l.Upsert(entry(models.CategoryPairing, "a", 0))

	assert.False(t, l.Remove(models.CategoryPairing, "missing"))
	assert.True(t, l.Remove(models.CategoryPairing, "a"))
	assert.Equal(t, 0, l.Count())
	assert.Equal(t, 0, rec.last())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "notifications.json")
	l := New(NewFileStore(path), nil, quietLogger())
	l.Upsert(models.NotificationEntry{
		Category:    models.CategoryConnection,
		ID:          ConnectionLostID,
		Title:       "Connection lost",
		Description: "retrying",
		CreatedAt:   base,
	})
	l.Upsert(entry(models.CategoryPairing, "uid-1", time.Minute))

	reloaded := New(NewFileStore(path), nil, quietLogger())
	reloaded.Load()
	assert.Equal(t, l.Entries(), reloaded.Entries())
}

func TestLoadSkipsUnknownCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	doc := `{
  "version": 1,
  "future_field": {"anything": true},
  "entries": [
    {"category": "pairing", "id": "a", "title": "A", "createdAtUtc": "2026-03-01T12:00:00Z"},
    {"category": "housing", "id": "b", "title": "B", "createdAtUtc": "2026-03-01T12:01:00Z"},
    {"category": "syncshell", "id": "c", "title": "C", "createdAtUtc": "2026-03-01T12:02:00Z", "extra": 1}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rec := &countRecorder{}
	l := New(NewFileStore(path), rec, quietLogger())
	l.Load()

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "c", entries[1].ID)
	assert.Equal(t, 2, rec.last())

	saved, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Len(t, saved.Entries, 2, "dropped categories are written back")
}

func TestLoadTrimsToCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	seed := New(NewFileStore(path), nil, quietLogger())
	for i := 0; i < 10; i++ {
		seed.Upsert(entry(models.CategoryPairing, fmt.Sprintf("p%d", i), time.Duration(i)*time.Second))
	}

	l := New(NewFileStore(path), nil, quietLogger(), WithMaxStored(4))
	l.Load()
	require.Equal(t, 4, l.Count())
	assert.Equal(t, "p6", l.Entries()[0].ID)

	doc, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Len(t, doc.Entries, 4, "trim is written back")
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	l := New(NewFileStore(filepath.Join(t.TempDir(), "none.json")), nil, quietLogger())
	l.Load()
	assert.Equal(t, 0, l.Count())
}

func TestPersistenceFailureIsSwallowed(t *testing.T) {
	store := &failingStore{}
	rec := &countRecorder{}
	l := New(store, rec, quietLogger())

	l.Load()
	l.Upsert(entry(models.CategoryPairing, "a", 0))
	l.Upsert(entry(models.CategoryPairing, "b", time.Second))
	assert.True(t, l.Remove(models.CategoryPairing, "a"))

	assert.Equal(t, 1, l.Count())
	assert.Equal(t, 3, store.saves)
	assert.Equal(t, 1, rec.last())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.db")
	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)

	l := New(store, nil, quietLogger())
	l.Upsert(entry(models.CategorySyncshell, "g1", time.Second))
	l.Upsert(models.NotificationEntry{
		Category:    models.CategoryPairing,
		ID:          "uid-9",
		Title:       "Pairing request",
		Description: "Someone wants to pair",
		CreatedAt:   base,
	})
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	reloaded := New(reopened, nil, quietLogger())
	reloaded.Load()
	assert.Equal(t, l.Entries(), reloaded.Entries())

	doc, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, doc.Version)
}
