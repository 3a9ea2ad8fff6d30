package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/ntfyc/internal/core/session"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Relay connects a session to a program that does not exist yet when the
// session is created. Before Attach, dispatched callbacks run inline and
// change notifications are dropped; the model reads the full session state
// when it starts.
type Relay struct {
	mu     sync.RWMutex
	target Sender
}

// NewRelay creates an unattached relay.
func NewRelay() *Relay {
	return &Relay{}
}

// Attach sets the program messages are forwarded to.
func (r *Relay) Attach(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = s
}

func (r *Relay) attached() Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

func (r *Relay) send(msg tea.Msg) {
	if target := r.attached(); target != nil {
		target.Send(msg)
	}
}

// dispatchMsg carries a session callback onto the event loop.
type dispatchMsg struct {
	fn func()
}

// Dispatch implements session.Dispatcher. It blocks until the event loop
// has received fn, which keeps deliveries in stream order. It must not be
// called from the event loop itself. Without a program fn runs inline.
func (r *Relay) Dispatch(fn func()) {
	target := r.attached()
	if target == nil {
		fn()
		return
	}
	target.Send(dispatchMsg{fn: fn})
}

// sessionChangedMsg tells the model to re-read session state.
type sessionChangedMsg struct {
	kind session.EventKind
	err  error
}

// Observe implements session.Observer. Observers may run on the event loop,
// where a blocking Send would deadlock, so the message is sent from a new
// goroutine. The model re-reads state on every event, so ordering between
// events does not matter.
func (r *Relay) Observe(ev session.Event) {
	msg := sessionChangedMsg{kind: ev.Kind, err: ev.Err}
	go r.send(msg)
}

var (
	_ session.Dispatcher = (*Relay)(nil).Dispatch
	_ session.Observer   = (*Relay)(nil).Observe
)
