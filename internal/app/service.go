// Package app wires the ntfy client, stores and hooks into the operations
// the CLI commands and the chat view share.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/ntfyc/internal/core/config"
	"github.com/hay-kot/ntfyc/internal/core/history"
	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/internal/core/session"
	"github.com/hay-kot/ntfyc/internal/hooks"
	"github.com/hay-kot/ntfyc/pkg/executil"
)

// Service orchestrates ntfyc operations.
type Service struct {
	config   *config.Config
	conn     messaging.Connection
	activity messaging.ActivityStore
	history  history.Store
	log      zerolog.Logger
	hooks    *hooks.Runner
}

// New creates a new Service. stdout and stderr receive hook command output.
func New(
	cfg *config.Config,
	conn messaging.Connection,
	activity messaging.ActivityStore,
	hist history.Store,
	exec executil.Executor,
	log zerolog.Logger,
	stdout, stderr io.Writer,
) *Service {
	return &Service{
		config:   cfg,
		conn:     conn,
		activity: activity,
		history:  hist,
		log:      log,
		hooks:    hooks.NewRunner(log.With().Str("component", "hooks").Logger(), exec, cfg.Hooks, stdout, stderr),
	}
}

// Config returns the loaded configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Host returns the server the service talks to.
func (s *Service) Host() string {
	return s.config.Host
}

// Publish sends text to topic and records the attempt.
func (s *Service) Publish(ctx context.Context, topic, text string) error {
	if strings.TrimSpace(text) == "" {
		return messaging.ErrEmptyMessage
	}

	err := s.conn.Send(ctx, topic, text)
	s.record(messaging.ActivityPublish, topic, err)
	if err != nil {
		return fmt.Errorf("publish to %q: %w", topic, err)
	}

	s.log.Debug().Str("topic", topic).Int("bytes", len(text)).Msg("published message")
	return nil
}

// SubscribeOptions configures Subscribe.
type SubscribeOptions struct {
	// RunHooks runs configured hooks for each message after fn.
	RunHooks bool
	// Limit stops after this many messages. Zero means no limit.
	Limit int
}

// Subscribe streams topic, calling fn for every message in server order. It
// blocks until ctx is cancelled, the limit is reached or the stream ends.
// A clean end returns nil; a stream fault is returned wrapped.
func (s *Service) Subscribe(ctx context.Context, topic string, opts SubscribeOptions, fn func(messaging.Message) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		count int
		fnErr error
	)

	sub, err := s.conn.Receive(topic, func(msg messaging.Message) {
		if ctx.Err() != nil {
			return
		}

		if err := fn(msg); err != nil {
			fnErr = err
			cancel()
			return
		}

		if opts.RunHooks {
			if err := s.hooks.Run(ctx, msg); err != nil {
				s.log.Warn().Err(err).Str("topic", topic).Str("id", msg.ID).Msg("hooks failed")
			}
		}

		count++
		if opts.Limit > 0 && count >= opts.Limit {
			cancel()
		}
	})
	s.record(messaging.ActivityConnect, topic, err)
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", topic, err)
	}
	s.touch(topic)

	s.log.Info().Str("topic", topic).Str("host", s.Host()).Msg("subscribed")

	select {
	case <-ctx.Done():
		sub.Close()
		<-sub.Done()
	case <-sub.Done():
	}

	s.record(messaging.ActivityDisconnect, topic, nil)

	// The stream goroutine has exited, so fnErr is safe to read.
	if fnErr != nil {
		return fnErr
	}

	if faulted, ok := sub.(interface{ Err() error }); ok {
		if err := faulted.Err(); err != nil {
			return fmt.Errorf("subscription to %q: %w", topic, err)
		}
	}
	return nil
}

// NewSession creates a topic session backed by the service's connection.
// Successful connects are remembered as recent topics.
func (s *Service) NewSession(topic string, dispatch session.Dispatcher) *session.Session {
	sess := session.New(s.conn, s.log.With().Str("component", "session").Logger(), session.Options{
		Topic:       topic,
		Dispatcher:  dispatch,
		MaxMessages: s.config.TUI.MaxMessages,
		Activity:    s.activity,
		Host:        s.Host(),
	})

	sess.OnChange(func(ev session.Event) {
		if ev.Kind == session.EventConnectionChanged && ev.Connected {
			s.touch(ev.Topic)
		}
	})

	return sess
}

// StartTopic returns the topic to open when none is given: the most
// recently used one on this host, falling back to the configured topic.
func (s *Service) StartTopic(ctx context.Context) string {
	if s.history != nil {
		if e, err := s.history.Last(ctx, s.Host()); err == nil {
			return e.Topic
		}
	}
	return s.config.Topic
}

// RecentTopics lists recently used topics, most recent first.
func (s *Service) RecentTopics(ctx context.Context) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx)
}

// ClearRecentTopics forgets every recent topic.
func (s *Service) ClearRecentTopics(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	return s.history.Clear(ctx)
}

// Activity returns recent activity, newest first.
func (s *Service) Activity(limit int, since time.Time) ([]messaging.Activity, error) {
	if s.activity == nil {
		return nil, nil
	}
	if since.IsZero() {
		return s.activity.List(limit)
	}
	return s.activity.ListSince(since, limit)
}

func (s *Service) touch(topic string) {
	if s.history == nil {
		return
	}
	if err := s.history.Touch(context.Background(), s.Host(), topic); err != nil {
		s.log.Debug().Err(err).Msg("failed to remember topic")
	}
}

// record stores an activity event. Failures are logged and otherwise
// ignored.
func (s *Service) record(typ messaging.ActivityType, topic string, opErr error) {
	if s.activity == nil {
		return
	}

	a := messaging.Activity{
		Type:  typ,
		Topic: topic,
		Host:  s.Host(),
	}
	if opErr != nil {
		a.Error = opErr.Error()
	}

	if err := s.activity.Record(a); err != nil {
		s.log.Debug().Err(err).Msg("failed to record activity")
	}
}
