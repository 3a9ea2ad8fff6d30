package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hay-kot/ntfyc/internal/core/history"
)

// historyFile is the root JSON structure stored on disk.
type historyFile struct {
	Entries []history.Entry `json:"entries"`
}

var _ history.Store = (*HistoryStore)(nil)

// HistoryStore implements history.Store using a JSON file.
type HistoryStore struct {
	path       string
	maxEntries int
	now        func() time.Time
	mu         sync.RWMutex
}

// NewHistoryStore creates a recent-topics store at path. maxEntries limits
// stored entries (0 means unlimited).
func NewHistoryStore(path string, maxEntries int) *HistoryStore {
	return &HistoryStore{path: path, maxEntries: maxEntries, now: time.Now}
}

// List returns entries, most recently used first.
func (s *HistoryStore) List(ctx context.Context) ([]history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.load()
	if err != nil {
		return nil, err
	}

	return f.Entries, nil
}

// Touch marks topic on host as used now.
func (s *HistoryStore) Touch(ctx context.Context, host, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}

	entry := history.Entry{Topic: topic, Host: host}
	kept := f.Entries[:0]
	for _, e := range f.Entries {
		if e.Topic == topic && e.Host == host {
			entry.Uses = e.Uses
			continue
		}
		kept = append(kept, e)
	}

	entry.Uses++
	entry.LastUsed = s.now()
	f.Entries = append([]history.Entry{entry}, kept...)

	if s.maxEntries > 0 && len(f.Entries) > s.maxEntries {
		f.Entries = f.Entries[:s.maxEntries]
	}

	return s.save(f)
}

// Last returns the most recently used topic on host.
func (s *HistoryStore) Last(ctx context.Context, host string) (history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.load()
	if err != nil {
		return history.Entry{}, err
	}

	for _, e := range f.Entries {
		if e.Host == host {
			return e, nil
		}
	}

	return history.Entry{}, history.ErrNotFound
}

// Clear removes all entries.
func (s *HistoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(historyFile{Entries: []history.Entry{}})
}

// load reads the history file. A missing or empty file is an empty history.
func (s *HistoryStore) load() (historyFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return historyFile{}, nil
		}
		return historyFile{}, fmt.Errorf("read history file: %w", err)
	}

	if len(data) == 0 {
		return historyFile{}, nil
	}

	var f historyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return historyFile{}, fmt.Errorf("history file corrupted (run 'ntfyc topics --clear' to reset): %w", err)
	}

	return f, nil
}

// save writes the history file atomically.
func (s *HistoryStore) save(f historyFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename history file: %w", err)
	}

	return nil
}
