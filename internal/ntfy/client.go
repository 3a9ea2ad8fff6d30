// Package ntfy implements messaging.Connection against an ntfy-compatible
// HTTP server.
package ntfy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/internal/core/validate"
)

// maxLineSize bounds a single stream line. ntfy caps message bodies well below
// this, but attachments and long titles still need headroom.
const maxLineSize = 1024 * 1024

var errLineTooLong = fmt.Errorf("%w: line exceeds %d bytes", messaging.ErrDecode, maxLineSize)

var _ messaging.Connection = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for both publishing and
// streaming. It must not set a Timeout, which would end long-lived streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used to report stream faults and skipped lines.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithSendTimeout bounds each publish request. Zero disables the bound.
func WithSendTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.sendTimeout = d
	}
}

// WithLenientStatus makes Send succeed for any response the server returns,
// ignoring non-2xx status codes.
func WithLenientStatus() Option {
	return func(c *Client) {
		c.strict = false
	}
}

// Client talks to a single ntfy server.
type Client struct {
	host        string
	http        *http.Client
	log         zerolog.Logger
	sendTimeout time.Duration
	strict      bool

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New creates a client for the server at host, e.g. "https://ntfy.sh".
func New(host string, opts ...Option) (*Client, error) {
	if _, err := validate.Host(host); err != nil {
		return nil, fmt.Errorf("%w: %w", messaging.ErrInvalidHost, err)
	}

	c := &Client{
		host:   validate.NormalizeHost(host),
		http:   &http.Client{},
		log:    log.With().Str("component", "ntfy").Logger(),
		strict: true,
		subs:   make(map[*Subscription]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Host returns the normalized server address.
func (c *Client) Host() string {
	return c.host
}

func (c *Client) topicURL(topic string) string {
	return c.host + "/" + url.PathEscape(topic)
}

// Send publishes message to topic. The body is the raw message text.
func (c *Client) Send(ctx context.Context, topic, message string) error {
	if err := validate.Topic(topic); err != nil {
		return fmt.Errorf("%w: %w", messaging.ErrSend, err)
	}

	if c.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.sendTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.topicURL(topic), strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", messaging.ErrSend, err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", messaging.ErrSend, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	_, _ = io.Copy(io.Discard, resp.Body)

	if c.strict && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return fmt.Errorf("%w: server returned %s", messaging.ErrSend, resp.Status)
	}

	c.log.Debug().
		Str("topic", topic).
		Int("status", resp.StatusCode).
		Int("bytes", len(message)).
		Msg("message published")

	return nil
}

// Receive opens the JSON stream for topic and delivers every "message"
// record to onMessage from a background goroutine. It returns as soon as the
// request is built; connection failures end the subscription instead of
// being returned. Delivery overlapping a concurrent Close is resolved by the
// handler re-checking Live; see messaging.Handler.
func (c *Client) Receive(topic string, onMessage messaging.Handler) (messaging.Subscription, error) {
	if onMessage == nil {
		return nil, fmt.Errorf("%w: nil handler", messaging.ErrSubscriptionSetup)
	}
	if err := validate.Topic(topic); err != nil {
		return nil, fmt.Errorf("%w: %w", messaging.ErrSubscriptionSetup, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%w: client closed", messaging.ErrSubscriptionSetup)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.topicURL(topic)+"/json", nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: build request: %w", messaging.ErrSubscriptionSetup, err)
	}

	sub := newSubscription(topic, cancel)
	c.subs[sub] = struct{}{}

	go c.stream(req, sub, onMessage)

	c.log.Debug().Str("topic", topic).Msg("subscription opened")

	return sub, nil
}

// Health queries the server's health endpoint. It fails when the server is
// unreachable or reports itself unhealthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/v1/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var body struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if !body.Healthy {
		return fmt.Errorf("server reports unhealthy")
	}
	return nil
}

// Close ends every subscription created by the client. Later calls to
// Receive fail.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	subs := make([]*Subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

func (c *Client) forget(sub *Subscription) {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
}

// stream owns the response body for the lifetime of sub.
func (c *Client) stream(req *http.Request, sub *Subscription, onMessage messaging.Handler) {
	defer c.forget(sub)

	logger := c.log.With().Str("topic", sub.Topic()).Logger()

	resp, err := c.http.Do(req)
	if err != nil {
		sub.end(c.fault(logger, sub, err))
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		sub.end(c.fault(logger, sub, fmt.Errorf("server returned %s", resp.Status)))
		return
	}

	reader := bufio.NewReaderSize(resp.Body, 64*1024)

	var buf []byte
	for {
		line, tooLong, err := readLine(reader, buf)
		buf = line[:0]

		keepGoing := true
		switch {
		case tooLong:
			logger.Warn().Err(errLineTooLong).Msg("skipping malformed record")
			keepGoing = sub.Live()
		case len(line) > 0:
			keepGoing = c.handleLine(logger, sub, line, onMessage)
		}
		if !keepGoing {
			sub.end(nil)
			return
		}

		if errors.Is(err, io.EOF) {
			logger.Debug().Msg("stream closed by server")
			sub.end(nil)
			return
		}
		if err != nil {
			sub.end(c.fault(logger, sub, err))
			return
		}
	}
}

// readLine reads the next line into buf and returns it without its line
// ending. A line longer than maxLineSize is consumed up to its newline and
// reported as tooLong with an empty line, so the stream can carry on.
func readLine(r *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize+1 {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimRight(buf, "\r\n"), tooLong, err
	}
}

// handleLine decodes and delivers one line. It returns false once the
// subscription has been closed and the stream should stop.
func (c *Client) handleLine(logger zerolog.Logger, sub *Subscription, line []byte, onMessage messaging.Handler) bool {
	if len(strings.TrimSpace(string(line))) == 0 {
		return sub.Live()
	}

	msg, err := messaging.Decode(line)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping malformed record")
		return sub.Live()
	}

	sub.touch()

	if !msg.Deliverable() {
		logger.Trace().Str("event", msg.Event).Msg("skipping non-message event")
		return sub.Live()
	}

	if !sub.Live() {
		return false
	}

	onMessage(msg)
	return true
}

// fault wraps err as a stream fault and logs it, unless the failure is just
// the cancellation caused by Close.
func (c *Client) fault(logger zerolog.Logger, sub *Subscription, err error) error {
	if sub.closed.Load() {
		logger.Debug().Err(err).Msg("stream cancelled")
		return nil
	}

	logger.Error().Err(err).Msg("failed to receive messages")
	return fmt.Errorf("%w: %w", messaging.ErrStreamFault, err)
}
