package ntfy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
)

var _ messaging.Subscription = (*Subscription)(nil)

// Subscription is one streaming GET against one topic.
type Subscription struct {
	topic  string
	cancel context.CancelFunc

	closed   atomic.Bool
	ended    atomic.Bool
	lastSeen atomic.Int64

	closeOnce sync.Once
	endOnce   sync.Once
	done      chan struct{}
	err       error
}

func newSubscription(topic string, cancel context.CancelFunc) *Subscription {
	s := &Subscription{
		topic:  topic,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.lastSeen.Store(time.Now().UnixNano())
	return s
}

// Topic returns the topic the subscription was opened for.
func (s *Subscription) Topic() string {
	return s.topic
}

// Live reports whether the stream is still open.
func (s *Subscription) Live() bool {
	return !s.closed.Load() && !s.ended.Load()
}

// Close cancels the stream. Safe to call any number of times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
}

// Done is closed once the background stream has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the stream fault that ended the subscription, if any. It is
// only meaningful after Done is closed; a clean close or server hang-up
// yields nil.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// LastSeen returns when the server last sent any record, keepalives
// included.
func (s *Subscription) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Subscription) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// end marks the stream as finished. Only the stream goroutine calls it.
func (s *Subscription) end(err error) {
	s.endOnce.Do(func() {
		s.ended.Store(true)
		s.err = err
		s.cancel()
		close(s.done)
	})
}
