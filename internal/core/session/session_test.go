package session

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/internal/devserver"
	"github.com/hay-kot/ntfyc/internal/ntfy"
)

type fakeSubscription struct {
	topic   string
	closed  atomic.Bool
	ended   atomic.Bool
	endOnce sync.Once
	done    chan struct{}
}

func newFakeSubscription(topic string) *fakeSubscription {
	return &fakeSubscription{topic: topic, done: make(chan struct{})}
}

func (f *fakeSubscription) Topic() string         { return f.topic }
func (f *fakeSubscription) Live() bool            { return !f.closed.Load() && !f.ended.Load() }
func (f *fakeSubscription) Close()                { f.closed.Store(true) }
func (f *fakeSubscription) Done() <-chan struct{} { return f.done }

// end simulates the server hanging up.
func (f *fakeSubscription) end() {
	f.endOnce.Do(func() {
		f.ended.Store(true)
		close(f.done)
	})
}

type sent struct {
	topic   string
	message string
}

// spyConnection records every call and hands out fake subscriptions whose
// handlers the test drives directly.
type spyConnection struct {
	mu         sync.Mutex
	sends      []sent
	sendErr    error
	receiveErr error
	subs       []*fakeSubscription
	handlers   []messaging.Handler
}

func (c *spyConnection) Send(_ context.Context, topic, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, sent{topic: topic, message: message})
	return c.sendErr
}

func (c *spyConnection) Receive(topic string, onMessage messaging.Handler) (messaging.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiveErr != nil {
		return nil, c.receiveErr
	}
	sub := newFakeSubscription(topic)
	c.subs = append(c.subs, sub)
	c.handlers = append(c.handlers, onMessage)
	return sub, nil
}

func (c *spyConnection) sub(i int) *fakeSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[i]
}

func (c *spyConnection) handler(i int) messaging.Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[i]
}

func (c *spyConnection) receives() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *spyConnection) sentMessages() []sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sent(nil), c.sends...)
}

type memActivity struct {
	mu     sync.Mutex
	events []messaging.Activity
}

func (m *memActivity) Record(a messaging.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, a)
	return nil
}

func (m *memActivity) List(int) ([]messaging.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]messaging.Activity(nil), m.events...), nil
}

func (m *memActivity) ListSince(time.Time, int) ([]messaging.Activity, error) {
	return m.List(0)
}

func msg(id, topic, body string) messaging.Message {
	return messaging.Message{ID: id, Event: messaging.EventMessage, Topic: topic, Message: body, Time: 1700000000}
}

func newTestSession(conn messaging.Connection, opts Options) *Session {
	return New(conn, zerolog.Nop(), opts)
}

func TestNew_Defaults(t *testing.T) {
	s := newTestSession(&spyConnection{}, Options{})

	assert.Equal(t, DefaultTopic, s.Topic())
	assert.Empty(t, s.Messages())
	assert.Empty(t, s.PendingText())
	assert.False(t, s.Connected())
}

func TestSession_ConnectDeliversMessages(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	require.NoError(t, s.ConnectToTopic())
	assert.True(t, s.Connected())
	assert.Equal(t, "mytopic", conn.sub(0).Topic())

	hello := msg("a1", "mytopic", "Hello world")
	conn.handler(0)(hello)

	assert.Equal(t, []messaging.Message{hello}, s.Messages())
}

func TestSession_SwitchTopicClearsAndClosesPrevious(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	require.NoError(t, s.ConnectToTopic())
	conn.handler(0)(msg("a1", "mytopic", "first"))

	s.SetTopic("other")
	require.NoError(t, s.ConnectToTopic())

	assert.False(t, conn.sub(0).Live(), "previous subscription should be closed")
	assert.True(t, conn.sub(1).Live())
	assert.Equal(t, "other", conn.sub(1).Topic())
	assert.Empty(t, s.Messages())

	// Late delivery from the old stream is ignored.
	conn.handler(0)(msg("a2", "mytopic", "late"))
	assert.Empty(t, s.Messages())

	second := msg("b1", "other", "second")
	conn.handler(1)(second)
	assert.Equal(t, []messaging.Message{second}, s.Messages())
}

func TestSession_ConnectFailureRestoresMessages(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	require.NoError(t, s.ConnectToTopic())
	before := []messaging.Message{
		msg("a1", "mytopic", "one"),
		msg("a2", "mytopic", "two"),
	}
	for _, m := range before {
		conn.handler(0)(m)
	}

	conn.receiveErr = fmt.Errorf("%w: connection refused", messaging.ErrSubscriptionSetup)
	s.SetTopic("broken")

	err := s.ConnectToTopic()
	require.Error(t, err)
	assert.ErrorIs(t, err, messaging.ErrSubscriptionSetup)

	assert.Equal(t, before, s.Messages())
	assert.False(t, s.Connected())
	assert.False(t, conn.sub(0).Live(), "previous subscription is still torn down")
}

func TestSession_ConnectFailureWrapsUnknownErrors(t *testing.T) {
	conn := &spyConnection{receiveErr: errors.New("boom")}
	s := newTestSession(conn, Options{})

	err := s.ConnectToTopic()
	assert.ErrorIs(t, err, messaging.ErrSubscriptionSetup)
	assert.False(t, s.Connected())
}

func TestSession_SendMessage(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	s.SetPendingText("Hello World")
	require.NoError(t, s.SendMessage(context.Background()))

	assert.Equal(t, []sent{{topic: "mytopic", message: "Hello World"}}, conn.sentMessages())
	assert.Empty(t, s.PendingText())
}

func TestSession_SendMessage_Empty(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "  \n\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &spyConnection{}
			s := newTestSession(conn, Options{})
			s.SetPendingText(tt.text)

			err := s.SendMessage(context.Background())
			require.ErrorIs(t, err, messaging.ErrEmptyMessage)
			assert.Empty(t, conn.sentMessages())
			assert.Equal(t, tt.text, s.PendingText())
		})
	}
}

func TestSession_SendMessage_FailureKeepsPending(t *testing.T) {
	conn := &spyConnection{sendErr: errors.New("connection refused")}
	s := newTestSession(conn, Options{})

	var events []Event
	s.OnChange(func(ev Event) { events = append(events, ev) })

	s.SetPendingText("keep me")
	err := s.SendMessage(context.Background())

	require.ErrorIs(t, err, messaging.ErrSend)
	assert.Equal(t, "keep me", s.PendingText())

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.ErrorIs(t, events[0].Err, messaging.ErrSend)
}

func TestSession_SendMessage_UsesCurrentTopic(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{Topic: "alerts"})

	s.SetTopic(" builds ")
	s.SetPendingText("done")
	require.NoError(t, s.SendMessage(context.Background()))

	assert.Equal(t, []sent{{topic: "builds", message: "done"}}, conn.sentMessages())
}

func TestSession_QueuedDeliveryAfterDisconnectIsDropped(t *testing.T) {
	var (
		mu    sync.Mutex
		queue []func()
	)
	dispatch := func(fn func()) {
		mu.Lock()
		queue = append(queue, fn)
		mu.Unlock()
	}

	conn := &spyConnection{}
	s := newTestSession(conn, Options{Dispatcher: dispatch})

	require.NoError(t, s.ConnectToTopic())
	conn.handler(0)(msg("a1", "mytopic", "queued"))

	s.Disconnect()

	mu.Lock()
	pending := queue
	queue = nil
	mu.Unlock()

	for _, fn := range pending {
		fn()
	}

	assert.Empty(t, s.Messages())
	assert.False(t, s.Connected())
}

func TestSession_QueuedDeliveryAfterSwitchIsDropped(t *testing.T) {
	var queue []func()
	dispatch := func(fn func()) { queue = append(queue, fn) }

	conn := &spyConnection{}
	s := newTestSession(conn, Options{Dispatcher: dispatch})

	require.NoError(t, s.ConnectToTopic())
	conn.handler(0)(msg("a1", "mytopic", "stale"))

	s.SetTopic("other")
	require.NoError(t, s.ConnectToTopic())
	fresh := msg("b1", "other", "fresh")
	conn.handler(1)(fresh)

	for _, fn := range queue {
		fn()
	}

	assert.Equal(t, []messaging.Message{fresh}, s.Messages())
}

func TestSession_DisconnectIsIdempotent(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	s.Disconnect()

	require.NoError(t, s.ConnectToTopic())
	s.Disconnect()
	s.Disconnect()

	assert.False(t, s.Connected())
	assert.False(t, conn.sub(0).Live())
}

func TestSession_StreamEndFlipsConnected(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	changed := make(chan Event, 4)
	s.OnChange(func(ev Event) {
		if ev.Kind == EventConnectionChanged {
			changed <- ev
		}
	})

	require.NoError(t, s.ConnectToTopic())
	<-changed

	conn.sub(0).end()

	select {
	case ev := <-changed:
		assert.False(t, ev.Connected)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for disconnect event")
	}
	assert.False(t, s.Connected())
}

func TestSession_MaxMessages(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{MaxMessages: 2})

	require.NoError(t, s.ConnectToTopic())
	for i := range 4 {
		conn.handler(0)(msg(fmt.Sprintf("m%d", i), "mytopic", fmt.Sprintf("body %d", i)))
	}

	got := s.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].ID)
	assert.Equal(t, "m3", got[1].ID)
}

func TestSession_MessagesReturnsCopy(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	require.NoError(t, s.ConnectToTopic())
	conn.handler(0)(msg("a1", "mytopic", "original"))

	got := s.Messages()
	got[0].Message = "mutated"

	assert.Equal(t, "original", s.Messages()[0].Message)
}

func TestSession_Observers(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	var kinds []EventKind
	var last Event
	s.OnChange(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		last = ev
	})

	require.NoError(t, s.ConnectToTopic())
	conn.handler(0)(msg("a1", "mytopic", "hi"))

	assert.Equal(t, []EventKind{
		EventMessagesChanged,   // cleared for the new topic
		EventConnectionChanged, // connected
		EventMessagesChanged,   // delivery
	}, kinds)
	assert.Len(t, last.Messages, 1)
	assert.True(t, last.Connected)
}

func TestSession_ObserverMayDisconnect(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	s.OnChange(func(ev Event) {
		if ev.Kind == EventMessagesChanged && len(ev.Messages) > 0 {
			s.Disconnect()
		}
	})

	require.NoError(t, s.ConnectToTopic())
	conn.handler(0)(msg("a1", "mytopic", "first"))
	conn.handler(0)(msg("a2", "mytopic", "second"))

	assert.Len(t, s.Messages(), 1)
	assert.False(t, s.Connected())
}

// finishes fails the test if fn does not return in time.
func finishes(t *testing.T, fn func()) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return, observer re-entry deadlocked")
	}
}

func TestSession_ObserverMayDisconnectOnConnect(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	s.OnChange(func(ev Event) {
		if ev.Kind == EventConnectionChanged && ev.Connected {
			s.Disconnect()
		}
	})

	finishes(t, func() {
		assert.NoError(t, s.ConnectToTopic())
	})

	assert.False(t, s.Connected())
	assert.False(t, conn.sub(0).Live())
}

func TestSession_ObserverMayDisconnectOnError(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	var errs atomic.Int32
	s.OnChange(func(ev Event) {
		if ev.Kind == EventError {
			errs.Add(1)
			s.Disconnect()
		}
	})

	conn.receiveErr = fmt.Errorf("%w: connection refused", messaging.ErrSubscriptionSetup)

	finishes(t, func() {
		assert.Error(t, s.ConnectToTopic())
	})

	assert.Equal(t, int32(1), errs.Load())
	assert.False(t, s.Connected())
}

func TestSession_ObserverMayReconnectOnDisconnect(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})
	require.NoError(t, s.ConnectToTopic())

	var reconnected atomic.Bool
	s.OnChange(func(ev Event) {
		if ev.Kind == EventConnectionChanged && !ev.Connected && reconnected.CompareAndSwap(false, true) {
			assert.NoError(t, s.ConnectToTopic())
		}
	})

	finishes(t, s.Disconnect)

	assert.Equal(t, 2, conn.receives())
	assert.False(t, conn.sub(0).Live())
	assert.True(t, conn.sub(1).Live())
	assert.True(t, s.Connected())
}

func TestSession_Close(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	require.NoError(t, s.ConnectToTopic())
	s.Close()

	assert.False(t, conn.sub(0).Live())
	assert.ErrorIs(t, s.ConnectToTopic(), ErrClosed)
	assert.Equal(t, 1, conn.receives())
}

func TestSession_RecordsActivity(t *testing.T) {
	conn := &spyConnection{}
	store := &memActivity{}
	s := newTestSession(conn, Options{Activity: store, Host: "https://ntfy.example"})

	require.NoError(t, s.ConnectToTopic())
	s.SetPendingText("secret body")
	require.NoError(t, s.SendMessage(context.Background()))
	s.Disconnect()

	events, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, messaging.ActivityConnect, events[0].Type)
	assert.Equal(t, messaging.ActivityPublish, events[1].Type)
	assert.Equal(t, messaging.ActivityDisconnect, events[2].Type)
	for _, e := range events {
		assert.Equal(t, "mytopic", e.Topic)
		assert.Equal(t, "https://ntfy.example", e.Host)
		assert.False(t, e.Failed())
	}
}

func TestSession_ConcurrentDeliveryDuringSwitch(t *testing.T) {
	conn := &spyConnection{}
	s := newTestSession(conn, Options{})

	require.NoError(t, s.ConnectToTopic())
	old := conn.handler(0)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
					old(msg(fmt.Sprintf("w%d-%d", w, i), "mytopic", "noise"))
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	s.SetTopic("other")
	require.NoError(t, s.ConnectToTopic())

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	for _, m := range s.Messages() {
		assert.Equal(t, "other", m.Topic)
	}
}

func TestSession_WithClient(t *testing.T) {
	broker := devserver.New()
	ts := httptest.NewServer(broker.Handler())
	t.Cleanup(ts.Close)

	client, err := ntfy.New(ts.URL, ntfy.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	s := newTestSession(client, Options{})
	t.Cleanup(s.Close)

	got := make(chan []messaging.Message, 8)
	s.OnChange(func(ev Event) {
		if ev.Kind == EventMessagesChanged && len(ev.Messages) > 0 {
			got <- ev.Messages
		}
	})

	require.NoError(t, s.ConnectToTopic())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, broker.WaitForSubscribers(ctx, "mytopic", 1))

	s.SetPendingText("Hello World")
	require.NoError(t, s.SendMessage(ctx))
	assert.Empty(t, s.PendingText())

	select {
	case msgs := <-got:
		require.Len(t, msgs, 1)
		assert.Equal(t, "Hello World", msgs[0].Message)
		assert.Equal(t, "mytopic", msgs[0].Topic)
	case <-ctx.Done():
		t.Fatal("timed out waiting for round trip")
	}

	s.Disconnect()
	require.NoError(t, broker.WaitForSubscribers(ctx, "mytopic", 0))
	assert.False(t, s.Connected())
}
