package session

import "github.com/hay-kot/ntfyc/internal/core/messaging"

// EventKind identifies what changed in a session.
type EventKind int

const (
	// EventMessagesChanged fires whenever the visible message list changes.
	EventMessagesChanged EventKind = iota
	// EventConnectionChanged fires when the connected flag flips.
	EventConnectionChanged
	// EventError fires when an operation fails.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMessagesChanged:
		return "messages_changed"
	case EventConnectionChanged:
		return "connection_changed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a snapshot of session state sent to observers.
type Event struct {
	Kind      EventKind
	Topic     string
	Messages  []messaging.Message
	Connected bool
	Err       error
}

// Observer receives session events.
type Observer func(Event)

// Dispatcher runs fn on whatever goroutine the consumer requires for safe
// mutation, e.g. a UI event loop. It may run fn later but must run it once.
type Dispatcher func(fn func())

// Inline runs fn immediately on the calling goroutine.
func Inline(fn func()) {
	fn()
}
