// Package history tracks recently used topics so the chat view can reopen
// the last one.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no topic has been used yet.
var ErrNotFound = errors.New("no recent topic")

// Entry records the last time a topic was opened on a host.
type Entry struct {
	Topic    string    `json:"topic"`
	Host     string    `json:"host"`
	Uses     int       `json:"uses"`
	LastUsed time.Time `json:"last_used"`
}

// Store persists recent topics.
type Store interface {
	// List returns entries, most recently used first.
	List(ctx context.Context) ([]Entry, error)
	// Touch marks topic on host as used now, creating the entry if needed.
	Touch(ctx context.Context, host, topic string) error
	// Last returns the most recently used topic on host. Returns
	// ErrNotFound if none.
	Last(ctx context.Context, host string) (Entry, error)
	// Clear removes all entries.
	Clear(ctx context.Context) error
}
