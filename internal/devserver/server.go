// Package devserver provides a small in-process ntfy-compatible broker. It
// backs `ntfyc serve` for local development and the wire-level tests.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/pkg/randid"
)

const (
	defaultKeepalive  = 45 * time.Second
	listenerBuffer    = 64
	maxPublishedBytes = 4096
)

// Request is a publish request as the server saw it.
type Request struct {
	Topic   string
	Body    string
	Headers http.Header
}

type listener struct {
	ch   chan []byte
	done chan struct{}
}

// Server is an in-memory topic broker speaking the ntfy HTTP protocol.
type Server struct {
	log       zerolog.Logger
	keepalive time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	listeners map[string]map[*listener]struct{}
	requests  []Request
	changed   chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithKeepalive sets how often idle streams receive a keepalive record.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		s.keepalive = d
	}
}

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// New creates an empty broker.
func New(opts ...Option) *Server {
	s := &Server{
		log:       zerolog.Nop(),
		keepalive: defaultKeepalive,
		now:       time.Now,
		listeners: make(map[string]map[*listener]struct{}),
		changed:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the HTTP routes of the broker.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.POST("/:topic", s.PublishHandler)
	r.PUT("/:topic", s.PublishHandler)
	r.GET("/:topic/:format", s.routeGet)
	return r
}

// ListenAndServe serves the broker on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves the broker on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("dev server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// routeGet dispatches GET /:topic/:format. The health endpoint shares the
// pattern because httprouter does not allow a static "/v1" next to ":topic".
func (s *Server) routeGet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	topic, format := p.ByName("topic"), p.ByName("format")

	switch {
	case topic == "v1" && format == "health":
		s.HealthHandler(w, r, p)
	case format == "json":
		s.ListenHandler(w, r, p)
	default:
		http.NotFound(w, r)
	}
}

// HealthHandler reports that the broker is up.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"healthy":true}`+"\n")
}

// PublishHandler stores nothing; it broadcasts the raw body as a message
// record to every current listener of the topic.
func (s *Server) PublishHandler(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	topic := p.ByName("topic")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishedBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxPublishedBytes {
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Topic: topic, Body: string(body), Headers: r.Header.Clone()})
	s.mu.Unlock()

	msg := messaging.Message{
		ID:      randid.MessageID(),
		Time:    s.now().Unix(),
		Event:   messaging.EventMessage,
		Topic:   topic,
		Message: string(body),
		Title:   r.Header.Get("Title"),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		http.Error(w, "encode message", http.StatusInternalServerError)
		return
	}

	s.Inject(topic, string(data))

	s.log.Debug().Str("topic", topic).Str("id", msg.ID).Msg("message published")

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(data, '\n'))
}

// ListenHandler streams every record of the topic as one JSON object per
// line until the client goes away.
func (s *Server) ListenHandler(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := p.ByName("topic")
	l := s.subscribe(topic)
	defer s.unsubscribe(topic, l)

	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if !s.writeLine(w, flusher, s.control(topic, messaging.EventOpen)) {
		return
	}

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case line := <-l.ch:
			if !s.writeLine(w, flusher, line) {
				return
			}
		case <-ticker.C:
			if !s.writeLine(w, flusher, s.control(topic, messaging.EventKeepalive)) {
				return
			}
		}
	}
}

func (s *Server) writeLine(w io.Writer, flusher http.Flusher, line []byte) bool {
	if _, err := w.Write(append(line, '\n')); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func (s *Server) control(topic, event string) []byte {
	data, _ := json.Marshal(messaging.Message{
		ID:    randid.MessageID(),
		Time:  s.now().Unix(),
		Event: event,
		Topic: topic,
	})
	return data
}

// Inject sends a raw line to every listener of topic, in order. It lets tests
// push records the publish path would never produce.
func (s *Server) Inject(topic, line string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for l := range s.listeners[topic] {
		select {
		case l.ch <- []byte(line):
		case <-l.done:
		}
	}
}

// Requests returns every publish request received so far.
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Subscribers returns the number of open streams for topic.
func (s *Server) Subscribers(topic string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners[topic])
}

// WaitForSubscribers blocks until topic has exactly n open streams.
func (s *Server) WaitForSubscribers(ctx context.Context, topic string, n int) error {
	for {
		s.mu.RLock()
		count := len(s.listeners[topic])
		changed := s.changed
		s.mu.RUnlock()

		if count == n {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d subscribers on %q (have %d): %w", n, topic, count, ctx.Err())
		case <-changed:
		}
	}
}

func (s *Server) subscribe(topic string) *listener {
	l := &listener{
		ch:   make(chan []byte, listenerBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners[topic] == nil {
		s.listeners[topic] = make(map[*listener]struct{})
	}
	s.listeners[topic][l] = struct{}{}
	s.notifyLocked()

	s.log.Debug().Str("topic", topic).Int("listeners", len(s.listeners[topic])).Msg("listener added")

	return l
}

func (s *Server) unsubscribe(topic string, l *listener) {
	close(l.done)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listeners[topic], l)
	if len(s.listeners[topic]) == 0 {
		delete(s.listeners, topic)
	}
	s.notifyLocked()

	s.log.Debug().Str("topic", topic).Msg("listener removed")
}

// notifyLocked wakes WaitForSubscribers callers. Caller must hold s.mu.
func (s *Server) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
