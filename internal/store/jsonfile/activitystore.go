package jsonfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/pkg/randid"
)

const defaultMaxActivities = 1000

var _ messaging.ActivityStore = (*ActivityStore)(nil)

// ActivityStore implements messaging.ActivityStore as an append-only JSONL
// file. The file is compacted to the newest maxActivities entries once it
// grows past twice that size.
type ActivityStore struct {
	path          string
	maxActivities int
	mu            sync.Mutex
}

// NewActivityStore creates an activity store writing to path.
func NewActivityStore(path string) *ActivityStore {
	return &ActivityStore{
		path:          path,
		maxActivities: defaultMaxActivities,
	}
}

// WithMaxActivities sets the maximum number of activities to retain.
func (s *ActivityStore) WithMaxActivities(max int) *ActivityStore {
	s.maxActivities = max
	return s
}

// Path returns the file the store writes to.
func (s *ActivityStore) Path() string {
	return s.path
}

// Record appends an activity event.
func (s *ActivityStore) Record(activity messaging.Activity) error {
	if activity.ID == "" {
		activity.ID = randid.Generate(16)
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	line, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	return withFileLock(s.path, syscall.LOCK_EX, func() error {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open activity file: %w", err)
		}

		if _, err := f.Write(line); err != nil {
			f.Close() //nolint:errcheck
			return fmt.Errorf("write activity: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close activity file: %w", err)
		}

		return s.compactLocked()
	})
}

// List returns recent activity events, newest first.
// Limit of 0 returns all events.
func (s *ActivityStore) List(limit int) ([]messaging.Activity, error) {
	return s.ListSince(time.Time{}, limit)
}

// ListSince returns activity events after since, newest first.
func (s *ActivityStore) ListSince(since time.Time, limit int) ([]messaging.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []messaging.Activity
	err := withFileLock(s.path, syscall.LOCK_SH, func() error {
		activities, err := s.readLocked()
		if err != nil {
			return err
		}

		for i := len(activities) - 1; i >= 0; i-- {
			if !activities[i].Timestamp.After(since) {
				continue
			}
			result = append(result, activities[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})
	return result, err
}

// readLocked reads every activity, skipping malformed lines. Caller must
// hold the file lock.
func (s *ActivityStore) readLocked() ([]messaging.Activity, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open activity file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var activities []messaging.Activity
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var a messaging.Activity
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			continue
		}
		activities = append(activities, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read activity file: %w", err)
	}

	return activities, nil
}

// compactLocked rewrites the file with only the newest entries when it has
// grown past twice the retention limit. Caller must hold the exclusive lock.
func (s *ActivityStore) compactLocked() error {
	if s.maxActivities <= 0 {
		return nil
	}

	activities, err := s.readLocked()
	if err != nil {
		return err
	}
	if len(activities) <= 2*s.maxActivities {
		return nil
	}
	activities = activities[len(activities)-s.maxActivities:]

	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	enc := json.NewEncoder(f)
	for _, a := range activities {
		if err := enc.Encode(a); err != nil {
			f.Close() //nolint:errcheck
			_ = os.Remove(tmpPath)
			return fmt.Errorf("write activity: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
