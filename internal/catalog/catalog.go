// Package catalog persists the collection of completed extractions as a
// single JSON snapshot file. Every mutation loads the full sequence,
// modifies it in memory, and atomically rewrites the file.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"audiovault/internal/media"
)

// Store is the durable catalog keyed by content identifier. The load-modify-
// save sequence in UpsertIfAbsent and Remove is serialized by a store-wide
// mutex, plus a file lock guarding against a second process on the same file.
type Store struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// New creates a Store backed by the file at path, creating the parent
// directory if needed. The file itself is created lazily on first save.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("catalog path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Load reads the full entry sequence from disk. A missing file yields an
// empty sequence; an unparsable file yields media.ErrCorruptCatalog.
func (s *Store) Load() ([]media.Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []media.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, media.WrapError(media.ErrCorruptCatalog, s.path, err)
	}
	return entries, nil
}

// Save atomically replaces the catalog file with the serialized sequence.
// The write goes to a temp file in the same directory followed by a rename,
// so concurrent readers never observe a partial file.
func (s *Store) Save(entries []media.Entry) error {
	if entries == nil {
		entries = []media.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// Get returns the entry for id, or media.ErrNotFound.
func (s *Store) Get(id string) (media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.Load()
	if err != nil {
		return media.Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return media.Entry{}, media.WrapError(media.ErrNotFound, "no entry found with id "+id, nil)
}

// UpsertIfAbsent appends entry unless an entry with the same identifier
// already exists. Reports whether the insert happened.
func (s *Store) UpsertIfAbsent(entry media.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return false, fmt.Errorf("lock catalog: %w", err)
	}
	defer s.unlock()

	entries, err := s.Load()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.ID == entry.ID {
			return false, nil
		}
	}
	entries = append(entries, entry)
	if err := s.Save(entries); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the entry with the given identifier and returns it.
// Returns media.ErrNotFound when no entry matches.
func (s *Store) Remove(id string) (media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return media.Entry{}, fmt.Errorf("lock catalog: %w", err)
	}
	defer s.unlock()

	entries, err := s.Load()
	if err != nil {
		return media.Entry{}, err
	}
	for i, e := range entries {
		if e.ID == id {
			entries = append(entries[:i], entries[i+1:]...)
			if err := s.Save(entries); err != nil {
				return media.Entry{}, err
			}
			return e, nil
		}
	}
	return media.Entry{}, media.WrapError(media.ErrNotFound, "no entry found with id "+id, nil)
}

// List returns all entries newest-first (reverse of insertion order).
func (s *Store) List() ([]media.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]media.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *Store) unlock() {
	// Lock release failure leaves a stale lock file; nothing actionable here.
	_ = s.lock.Unlock()
}
