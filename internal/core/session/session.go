// Package session holds the topic session: the current topic, the messages
// received for it, and the single live subscription feeding them.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "mytopic"

// ErrClosed is returned by operations on a session that has been closed.
var ErrClosed = errors.New("session closed")

// Options configures a Session.
type Options struct {
	// Topic is the initial topic. Defaults to DefaultTopic.
	Topic string
	// Dispatcher marshals deliveries onto the consumer's goroutine.
	// Defaults to Inline.
	Dispatcher Dispatcher
	// MaxMessages caps the visible list, dropping the oldest first.
	// Zero keeps everything.
	MaxMessages int
	// Activity records connect, disconnect and publish events (optional).
	Activity messaging.ActivityStore
	// Host is recorded alongside activity events.
	Host string
}

// generation ties deliveries to the ConnectToTopic call that produced them.
type generation struct {
	topic string
	sub   messaging.Subscription
}

// Session mediates topic switches, sends and deliveries for one consumer.
type Session struct {
	conn        messaging.Connection
	log         zerolog.Logger
	dispatch    Dispatcher
	activity    messaging.ActivityStore
	host        string
	maxMessages int

	// opMu serialises ConnectToTopic, Disconnect and Close. It is never
	// taken on the delivery path.
	opMu sync.Mutex

	mu        sync.Mutex
	topic     string
	messages  []messaging.Message
	pending   string
	gen       *generation
	connected bool
	observers []Observer
	closed    bool
}

// New creates a disconnected session on top of conn.
func New(conn messaging.Connection, log zerolog.Logger, opts Options) *Session {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = Inline
	}

	return &Session{
		conn:        conn,
		log:         log,
		dispatch:    opts.Dispatcher,
		activity:    opts.Activity,
		host:        opts.Host,
		maxMessages: opts.MaxMessages,
		topic:       opts.Topic,
	}
}

// Topic returns the current topic.
func (s *Session) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// SetTopic changes the topic used by the next ConnectToTopic and
// SendMessage. It does not reconnect.
func (s *Session) SetTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = strings.TrimSpace(topic)
}

// PendingText returns the text that SendMessage will publish.
func (s *Session) PendingText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// SetPendingText replaces the text that SendMessage will publish.
func (s *Session) SetPendingText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = text
}

// Messages returns a copy of the visible messages in arrival order.
func (s *Session) Messages() []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesLocked()
}

// Connected reports whether the session holds a live subscription.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.gen != nil && s.gen.sub != nil && s.gen.sub.Live()
}

// OnChange registers an observer for session events.
func (s *Session) OnChange(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// ConnectToTopic replaces the current subscription with one for the current
// topic. The visible messages are cleared for the new topic; if the
// subscription cannot be opened they are restored and the session stays
// disconnected. Observers run after the call has finished its state changes
// and may call back into the session.
func (s *Session) ConnectToTopic() error {
	s.opMu.Lock()
	events, err := s.connect()
	s.opMu.Unlock()

	events.fire()
	return err
}

// connect does the work of ConnectToTopic and returns the events it raised.
// Caller must hold s.opMu.
func (s *Session) connect() (pendingEvents, error) {
	events := s.disconnect()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return events, ErrClosed
	}

	topic := s.topic
	backup := s.messages
	s.messages = nil

	gen := &generation{topic: topic}
	s.gen = gen
	s.mu.Unlock()

	events = append(events, s.event(EventMessagesChanged, nil))

	sub, err := s.conn.Receive(topic, func(msg messaging.Message) {
		s.dispatch(func() {
			s.accept(gen, msg)
		})
	})
	if err != nil {
		if !errors.Is(err, messaging.ErrSubscriptionSetup) {
			err = fmt.Errorf("%w: %w", messaging.ErrSubscriptionSetup, err)
		}
		err = fmt.Errorf("connect to topic %q: %w", topic, err)

		s.mu.Lock()
		if s.gen == gen {
			s.gen = nil
		}
		s.messages = backup
		s.connected = false
		s.mu.Unlock()

		s.log.Error().Err(err).Str("topic", topic).Msg("failed to connect to topic")
		s.record(messaging.ActivityConnect, topic, err)
		events = append(events, s.event(EventMessagesChanged, nil), s.event(EventError, err))
		return events, err
	}

	s.mu.Lock()
	gen.sub = sub
	s.connected = true
	s.mu.Unlock()

	go s.watch(gen)

	s.log.Info().Str("topic", topic).Msg("connected to topic")
	s.record(messaging.ActivityConnect, topic, nil)
	events = append(events, s.event(EventConnectionChanged, nil))
	return events, nil
}

// Disconnect closes the current subscription, if any.
func (s *Session) Disconnect() {
	s.opMu.Lock()
	events := s.disconnect()
	s.opMu.Unlock()

	events.fire()
}

// Close disconnects and drops all observers. The session cannot be used
// afterwards.
func (s *Session) Close() {
	s.opMu.Lock()
	events := s.disconnect()

	s.mu.Lock()
	s.closed = true
	s.observers = nil
	s.mu.Unlock()
	s.opMu.Unlock()

	events.fire()
}

// disconnect detaches and closes the current subscription and returns the
// events to fire once s.opMu is released. Caller must hold s.opMu but not
// s.mu.
func (s *Session) disconnect() pendingEvents {
	s.mu.Lock()
	gen := s.gen
	if gen == nil {
		s.mu.Unlock()
		return nil
	}
	s.gen = nil
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if gen.sub != nil {
		gen.sub.Close()
	}

	s.log.Debug().Str("topic", gen.topic).Msg("disconnected from topic")
	s.record(messaging.ActivityDisconnect, gen.topic, nil)

	if wasConnected {
		return pendingEvents{s.event(EventConnectionChanged, nil)}
	}
	return nil
}

// SendMessage publishes the pending text to the current topic. The pending
// text is cleared only when the send succeeds. Empty or whitespace-only text
// is never published: SendMessage returns messaging.ErrEmptyMessage without
// contacting the server and leaves the pending text as it was.
func (s *Session) SendMessage(ctx context.Context) error {
	s.mu.Lock()
	topic, text := s.topic, s.pending
	s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return messaging.ErrEmptyMessage
	}

	if err := s.conn.Send(ctx, topic, text); err != nil {
		if !errors.Is(err, messaging.ErrSend) {
			err = fmt.Errorf("%w: %w", messaging.ErrSend, err)
		}
		err = fmt.Errorf("send to topic %q: %w", topic, err)

		s.log.Error().Err(err).Str("topic", topic).Msg("failed to send message")
		s.record(messaging.ActivityPublish, topic, err)
		s.notifyErr(err)
		return err
	}

	s.mu.Lock()
	// Text typed while the request was in flight is kept.
	if s.pending == text {
		s.pending = ""
	}
	s.mu.Unlock()

	s.record(messaging.ActivityPublish, topic, nil)
	return nil
}

// accept appends msg if gen is still the live subscription. It runs on the
// dispatcher, after any Close that raced with the delivery.
func (s *Session) accept(gen *generation, msg messaging.Message) {
	s.mu.Lock()
	if s.gen != gen || (gen.sub != nil && !gen.sub.Live()) {
		s.mu.Unlock()
		s.log.Debug().Str("topic", gen.topic).Str("id", msg.ID).Msg("dropping delivery for stale subscription")
		return
	}

	s.messages = append(s.messages, msg)
	if s.maxMessages > 0 && len(s.messages) > s.maxMessages {
		s.messages = s.messages[len(s.messages)-s.maxMessages:]
	}
	s.mu.Unlock()

	s.notify(EventMessagesChanged)
}

// watch flips the session to disconnected when the stream ends on its own.
func (s *Session) watch(gen *generation) {
	<-gen.sub.Done()

	s.dispatch(func() {
		s.mu.Lock()
		if s.gen != gen || !s.connected {
			s.mu.Unlock()
			return
		}
		s.connected = false
		s.gen = nil
		s.mu.Unlock()

		s.log.Warn().Str("topic", gen.topic).Msg("subscription ended")
		s.record(messaging.ActivityDisconnect, gen.topic, nil)
		s.notify(EventConnectionChanged)
	})
}

func (s *Session) messagesLocked() []messaging.Message {
	if len(s.messages) == 0 {
		return []messaging.Message{}
	}
	out := make([]messaging.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) snapshot(kind EventKind, err error) (Event, []Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := Event{
		Kind:      kind,
		Topic:     s.topic,
		Messages:  s.messagesLocked(),
		Connected: s.connected,
		Err:       err,
	}

	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	return ev, observers
}

// pendingEvent is an event snapshot together with the observers registered
// when it was taken.
type pendingEvent struct {
	ev        Event
	observers []Observer
}

type pendingEvents []pendingEvent

func (p pendingEvents) fire() {
	for _, e := range p {
		for _, fn := range e.observers {
			fn(e.ev)
		}
	}
}

func (s *Session) event(kind EventKind, err error) pendingEvent {
	ev, observers := s.snapshot(kind, err)
	return pendingEvent{ev: ev, observers: observers}
}

func (s *Session) notify(kind EventKind) {
	pendingEvents{s.event(kind, nil)}.fire()
}

func (s *Session) notifyErr(err error) {
	pendingEvents{s.event(EventError, err)}.fire()
}

// record stores an activity event. Failures are logged and otherwise
// ignored.
func (s *Session) record(typ messaging.ActivityType, topic string, opErr error) {
	if s.activity == nil {
		return
	}

	a := messaging.Activity{
		Type:      typ,
		Topic:     topic,
		Host:      s.host,
		Timestamp: time.Now(),
	}
	if opErr != nil {
		a.Error = opErr.Error()
	}

	if err := s.activity.Record(a); err != nil {
		s.log.Debug().Err(err).Msg("failed to record activity")
	}
}
