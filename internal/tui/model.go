package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/internal/core/session"
	"github.com/hay-kot/ntfyc/internal/core/validate"
	"github.com/hay-kot/ntfyc/internal/styles"
)

// focusField identifies which text input receives key presses.
type focusField int

const (
	focusMessage focusField = iota
	focusTopic
)

// chromeLines is every row outside the viewport: header, topic, two
// dividers, message input, status and help.
const chromeLines = 7

// Options configures the chat view.
type Options struct {
	Host        string
	Markdown    bool
	SendTimeout time.Duration
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	sess *session.Session
	opts Options
	keys keyMap

	topicInput textinput.Model
	input      textinput.Model
	viewport   viewport.Model
	help       help.Model
	renderer   *messageRenderer
	focus      focusField

	width  int
	height int

	topic      string
	messages   []messaging.Message
	connected  bool
	connecting bool
	sending    bool
	err        error
	quitting   bool
}

// connectDoneMsg is sent when ConnectToTopic returns.
type connectDoneMsg struct {
	err error
}

// sendDoneMsg is sent when SendMessage returns.
type sendDoneMsg struct {
	err error
}

// New creates the chat model for sess. relay must be the one whose
// Dispatch the session was created with.
func New(sess *session.Session, relay *Relay, opts Options) Model {
	sess.OnChange(relay.Observe)

	topicInput := textinput.New()
	topicInput.Prompt = ""
	topicInput.Placeholder = "topic"
	topicInput.CharLimit = 64
	topicInput.SetValue(sess.Topic())

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message"
	input.PromptStyle = lipgloss.NewStyle().Foreground(styles.ColorPurple)
	input.Focus()

	h := help.New()
	h.ShortSeparator = " " + iconDot + " "
	h.Styles.ShortKey = helpStyle
	h.Styles.ShortDesc = helpStyle
	h.Styles.ShortSeparator = helpStyle

	return Model{
		sess:       sess,
		opts:       opts,
		keys:       defaultKeyMap(),
		topicInput: topicInput,
		input:      input,
		viewport:   viewport.New(0, 0),
		help:       h,
		renderer:   newMessageRenderer(opts.Markdown),
		focus:      focusMessage,
		topic:      sess.Topic(),
		connecting: true,
	}
}

// Init connects to the initial topic.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, connect(m.sess))
}

func connect(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		return connectDoneMsg{err: sess.ConnectToTopic()}
	}
}

func send(sess *session.Session, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return sendDoneMsg{err: sess.SendMessage(ctx)}
	}
}

func disconnect(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		sess.Disconnect()
		return nil
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case dispatchMsg:
		msg.fn()
		return m, nil

	case sessionChangedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.refresh()
		return m, nil

	case connectDoneMsg:
		m.connecting = false
		m.err = msg.err
		m.refresh()
		return m, nil

	case sendDoneMsg:
		m.sending = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.input.SetValue(m.sess.PendingText())
		m.input.CursorEnd()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Focus):
		return m.toggleFocus()

	case key.Matches(msg, m.keys.Send):
		if m.focus == focusTopic {
			return m.submitTopic()
		}
		return m.submitMessage()

	case key.Matches(msg, m.keys.Reconnect):
		m.connecting = true
		m.err = nil
		return m, connect(m.sess)

	case key.Matches(msg, m.keys.Disconnect):
		return m, disconnect(m.sess)

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.focus == focusTopic {
		m.topicInput, cmd = m.topicInput.Update(msg)
		return m, cmd
	}

	m.input, cmd = m.input.Update(msg)
	m.sess.SetPendingText(m.input.Value())
	return m, cmd
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == focusMessage {
		m.focus = focusTopic
		m.input.Blur()
		return m, m.topicInput.Focus()
	}

	m.focus = focusMessage
	m.topicInput.Blur()
	// Abandon an unsubmitted topic edit.
	m.topicInput.SetValue(m.sess.Topic())
	return m, m.input.Focus()
}

func (m Model) submitTopic() (tea.Model, tea.Cmd) {
	topic := strings.TrimSpace(m.topicInput.Value())
	if err := validate.Topic(topic); err != nil {
		m.err = err
		return m, nil
	}

	m.sess.SetTopic(topic)
	m.topicInput.SetValue(topic)
	m.connecting = true
	m.err = nil

	m.focus = focusMessage
	m.topicInput.Blur()
	return m, tea.Batch(m.input.Focus(), connect(m.sess))
}

func (m Model) submitMessage() (tea.Model, tea.Cmd) {
	if m.sending {
		return m, nil
	}

	m.sess.SetPendingText(m.input.Value())
	if strings.TrimSpace(m.input.Value()) == "" {
		return m, nil
	}

	m.sending = true
	m.err = nil
	return m, send(m.sess, m.opts.SendTimeout)
}

// refresh re-reads session state into the view.
func (m *Model) refresh() {
	m.topic = m.sess.Topic()
	m.messages = m.sess.Messages()
	m.connected = m.sess.Connected()
	m.updateContent()
}

func (m *Model) resize() {
	m.topicInput.Width = max(m.width-12, 1)
	m.input.Width = max(m.width-4, 1)
	m.help.Width = m.width

	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chromeLines, 1)
	m.renderer.SetWidth(m.width)
	m.updateContent()
}

// updateContent re-renders the message list, following new messages when
// the view was already scrolled to the bottom.
func (m *Model) updateContent() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderer.Render(m.topic, m.messages))
	if follow {
		m.viewport.GotoBottom()
	}
}

// Err returns the last error shown in the status line.
func (m Model) Err() error {
	return m.err
}

// View renders the chat view.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	divider := styles.DividerStyle.Render(strings.Repeat("─", max(m.width, 1)))

	sections := []string{
		m.headerView(),
		m.topicView(),
		divider,
		m.viewport.View(),
		divider,
		" " + m.input.View(),
		m.statusView(),
		" " + m.help.View(m.keys),
	}
	return strings.Join(sections, "\n")
}

func (m Model) headerView() string {
	status := disconnectedStyle.Render(iconDisconnected + " disconnected")
	switch {
	case m.connecting:
		status = pendingStyle.Render(iconDisconnected + " connecting")
	case m.connected:
		status = connectedStyle.Render(iconConnected + " connected")
	}

	return titleStyle.Render("ntfyc") + " " + hostStyle.Render(m.opts.Host) + "  " + status
}

func (m Model) topicView() string {
	label := labelStyle.Render("Topic:")
	if m.focus == focusTopic {
		label = focusedLabelStyle.Render("Topic:")
	}
	return label + " " + m.topicInput.View()
}

func (m Model) statusView() string {
	switch {
	case m.err != nil:
		return errorStyle.Render(describeError(m.err))
	case m.sending:
		return labelStyle.Render("Sending...")
	default:
		return labelStyle.Render(pluralize(len(m.messages), "message") + " on " + m.topic)
	}
}

// describeError shortens well-known failures for the status line.
func describeError(err error) string {
	switch {
	case errors.Is(err, messaging.ErrEmptyMessage):
		return "Nothing to send"
	case errors.Is(err, messaging.ErrSend):
		return "Send failed: " + err.Error()
	case errors.Is(err, messaging.ErrSubscriptionSetup):
		return "Connect failed: " + err.Error()
	default:
		return err.Error()
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
