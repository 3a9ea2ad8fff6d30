package messaging

import "context"

// Handler receives every accepted record of a subscription, in server order.
// The stream checks liveness before each call, but a Close from another
// goroutine can land between that check and the call. A handler that must
// not act after Close re-checks Subscription.Live, which is already false by
// the time Close returns.
type Handler func(msg Message)

// Connection publishes to and subscribes to topics on a notification server.
type Connection interface {
	// Send publishes message to topic. It blocks until the server answers
	// and never retries. Failures wrap ErrSend.
	Send(ctx context.Context, topic, message string) error

	// Receive starts streaming topic in the background and returns at once.
	// Only setup failures are returned (wrapping ErrSubscriptionSetup); later
	// stream failures end the subscription instead.
	Receive(topic string, onMessage Handler) (Subscription, error)
}

// Subscription is a handle to one streaming request against one topic.
type Subscription interface {
	// Topic returns the topic the subscription was opened for.
	Topic() string
	// Live reports whether the stream is still open. Once false it stays false.
	Live() bool
	// Close stops the stream. It never blocks and is safe to call more than
	// once, including from inside the handler. A delivery already past its
	// liveness check may still arrive; consumers re-check Live.
	Close()
	// Done is closed when the stream has ended, for any reason.
	Done() <-chan struct{}
}
