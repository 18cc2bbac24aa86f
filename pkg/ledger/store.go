package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is written into every persisted document.
const FormatVersion = 1

// Record is the persisted form of one entry. Category is kept as a raw string
// so documents written by newer builds still decode.
type Record struct {
	Category     string    `json:"category"`
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	CreatedAtUTC time.Time `json:"createdAtUtc"`
}

// Document is the full persisted ledger.
type Document struct {
	Version int      `json:"version"`
	Entries []Record `json:"entries"`
}

// Store persists the ledger. Save always receives the complete set.
type Store interface {
	Load() (*Document, error)
	Save(doc *Document) error
	// Backend names the store in logs and errors.
	Backend() string
}

// FileStore keeps the ledger as a JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Backend() string { return "file" }

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// Load reads the document. A missing file is an empty ledger.
func (s *FileStore) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{Version: FormatVersion}, nil
		}
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save replaces the document atomically.
func (s *FileStore) Save(doc *Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".notifications-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
