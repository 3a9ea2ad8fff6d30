package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Event kinds emitted on a topic stream. Only EventMessage carries a payload;
// the rest exist for connection liveness.
const (
	EventMessage     = "message"
	EventOpen        = "open"
	EventKeepalive   = "keepalive"
	EventPollRequest = "poll_request"
)

// Message is a single record decoded from a topic stream.
type Message struct {
	ID       string   `json:"id"`
	Time     int64    `json:"time"`
	Event    string   `json:"event"`
	Topic    string   `json:"topic"`
	Message  string   `json:"message"`
	Title    string   `json:"title,omitempty"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Decode parses one line of a topic stream. Unknown fields are ignored.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Message{}, fmt.Errorf("%w: empty line", ErrDecode)
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return msg, nil
}

// Deliverable reports whether the record carries a payload for consumers.
func (m Message) Deliverable() bool {
	return m.Event == EventMessage
}

// CreatedAt returns the server timestamp as a time.Time.
func (m Message) CreatedAt() time.Time {
	return time.Unix(m.Time, 0)
}

// String returns the human payload.
func (m Message) String() string {
	return m.Message
}
