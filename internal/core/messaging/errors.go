package messaging

import "errors"

var (
	// ErrSend is returned when a publish request fails or is cancelled.
	ErrSend = errors.New("send message")
	// ErrSubscriptionSetup is returned when a stream cannot be opened at all.
	ErrSubscriptionSetup = errors.New("subscription setup")
	// ErrStreamFault marks a stream that failed after it was established.
	// It is never returned to callers, only recorded on the subscription.
	ErrStreamFault = errors.New("stream fault")
	// ErrDecode is returned for a stream line that is not a valid record.
	ErrDecode = errors.New("decode record")
	// ErrInvalidHost is returned when a client is built without a usable host.
	ErrInvalidHost = errors.New("invalid host")
	// ErrEmptyMessage is returned when there is nothing to send.
	ErrEmptyMessage = errors.New("empty message")
)
