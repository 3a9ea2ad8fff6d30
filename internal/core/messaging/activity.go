package messaging

import "time"

// ActivityType represents the type of messaging activity.
type ActivityType string

const (
	ActivityPublish    ActivityType = "publish"
	ActivityConnect    ActivityType = "connect"
	ActivityDisconnect ActivityType = "disconnect"
)

// Activity records that something happened on a topic. Message bodies are
// never stored.
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Topic     string       `json:"topic"`
	Host      string       `json:"host,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Failed returns true if the activity recorded an error.
func (a Activity) Failed() bool {
	return a.Error != ""
}

// ActivityStore defines persistence operations for activity events.
type ActivityStore interface {
	// Record records an activity event.
	Record(activity Activity) error
	// List returns recent activity events, newest first.
	// Limit of 0 returns all events.
	List(limit int) ([]Activity, error)
	// ListSince returns activity events since the given time, newest first.
	ListSince(since time.Time, limit int) ([]Activity, error)
}
