package app

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/ntfyc/internal/core/config"
	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/internal/devserver"
	"github.com/hay-kot/ntfyc/internal/ntfy"
	"github.com/hay-kot/ntfyc/internal/store/jsonfile"
	"github.com/hay-kot/ntfyc/pkg/executil"
)

type testEnv struct {
	broker   *devserver.Server
	service  *Service
	exec     *executil.RecordingExecutor
	activity *jsonfile.ActivityStore
}

func newTestEnv(t *testing.T, hooks ...config.Hook) *testEnv {
	t.Helper()

	broker := devserver.New()
	ts := httptest.NewServer(broker.Handler())
	t.Cleanup(ts.Close)

	client, err := ntfy.New(ts.URL, ntfy.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Host = ts.URL
	cfg.DataDir = dir
	cfg.Hooks = hooks

	env := &testEnv{
		broker:   broker,
		exec:     &executil.RecordingExecutor{},
		activity: jsonfile.NewActivityStore(cfg.ActivityFile()),
	}
	hist := jsonfile.NewHistoryStore(filepath.Join(dir, "topics.json"), 10)
	env.service = New(&cfg, client, env.activity, hist, env.exec, zerolog.Nop(), io.Discard, io.Discard)

	return env
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestService_Publish(t *testing.T) {
	env := newTestEnv(t)
	ctx := waitCtx(t)

	require.NoError(t, env.service.Publish(ctx, "alerts", "disk full"))

	reqs := env.broker.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "alerts", reqs[0].Topic)
	assert.Equal(t, "disk full", reqs[0].Body)

	acts, err := env.activity.List(0)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, messaging.ActivityPublish, acts[0].Type)
	assert.False(t, acts[0].Failed())
}

func TestService_Publish_Empty(t *testing.T) {
	env := newTestEnv(t)

	err := env.service.Publish(context.Background(), "alerts", "   ")
	require.ErrorIs(t, err, messaging.ErrEmptyMessage)
	assert.Empty(t, env.broker.Requests())
}

func TestService_Publish_InvalidTopicIsRecorded(t *testing.T) {
	env := newTestEnv(t)

	err := env.service.Publish(context.Background(), "bad/topic", "hi")
	require.ErrorIs(t, err, messaging.ErrSend)

	acts, _ := env.activity.List(0)
	require.Len(t, acts, 1)
	assert.True(t, acts[0].Failed())
}

func TestService_Subscribe_LimitAndHooks(t *testing.T) {
	env := newTestEnv(t, config.Hook{Pattern: "alert*", Commands: []string{"echo {{ .Message | shq }}"}})
	ctx := waitCtx(t)

	got := make(chan messaging.Message, 4)
	done := make(chan error, 1)
	go func() {
		done <- env.service.Subscribe(ctx, "alerts", SubscribeOptions{RunHooks: true, Limit: 1}, func(m messaging.Message) error {
			got <- m
			return nil
		})
	}()

	require.NoError(t, env.broker.WaitForSubscribers(ctx, "alerts", 1))
	require.NoError(t, env.service.Publish(ctx, "alerts", "disk full"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("subscribe did not return after reaching its limit")
	}

	require.Len(t, got, 1)
	assert.Equal(t, "disk full", (<-got).Message)

	cmds := env.exec.Recorded()
	require.Len(t, cmds, 1)
	assert.Equal(t, "sh -c echo 'disk full'", cmds[0].String())

	assert.Equal(t, "alerts", env.service.StartTopic(ctx), "subscribed topic is remembered")

	acts, _ := env.activity.List(0)
	var types []messaging.ActivityType
	for _, a := range acts {
		types = append(types, a.Type)
	}
	assert.ElementsMatch(t, []messaging.ActivityType{
		messaging.ActivityConnect, messaging.ActivityPublish, messaging.ActivityDisconnect,
	}, types)
}

func TestService_Subscribe_HandlerError(t *testing.T) {
	env := newTestEnv(t)
	ctx := waitCtx(t)
	boom := errors.New("write failed")

	done := make(chan error, 1)
	go func() {
		done <- env.service.Subscribe(ctx, "alerts", SubscribeOptions{}, func(messaging.Message) error {
			return boom
		})
	}()

	require.NoError(t, env.broker.WaitForSubscribers(ctx, "alerts", 1))
	require.NoError(t, env.service.Publish(ctx, "alerts", "x"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-ctx.Done():
		t.Fatal("subscribe did not return after handler error")
	}
}

func TestService_Subscribe_CancelIsClean(t *testing.T) {
	env := newTestEnv(t)
	ctx := waitCtx(t)

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- env.service.Subscribe(subCtx, "alerts", SubscribeOptions{}, func(messaging.Message) error { return nil })
	}()

	require.NoError(t, env.broker.WaitForSubscribers(ctx, "alerts", 1))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("subscribe did not return after cancel")
	}
}

func TestService_Subscribe_StreamFault(t *testing.T) {
	ts := httptest.NewServer(devserver.New().Handler())
	host := ts.URL
	ts.Close()

	client, err := ntfy.New(host, ntfy.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	cfg := config.DefaultConfig()
	cfg.Host = host
	svc := New(&cfg, client, nil, nil, &executil.RecordingExecutor{}, zerolog.Nop(), io.Discard, io.Discard)

	err = svc.Subscribe(waitCtx(t), "alerts", SubscribeOptions{}, func(messaging.Message) error { return nil })
	require.ErrorIs(t, err, messaging.ErrStreamFault)
}

func TestService_Subscribe_SetupError(t *testing.T) {
	env := newTestEnv(t)

	err := env.service.Subscribe(context.Background(), "not a topic", SubscribeOptions{}, func(messaging.Message) error { return nil })
	require.ErrorIs(t, err, messaging.ErrSubscriptionSetup)
}

func TestService_StartTopic_FallsBackToConfig(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, "mytopic", env.service.StartTopic(context.Background()))
}

func TestService_NewSession_RemembersTopic(t *testing.T) {
	env := newTestEnv(t)
	ctx := waitCtx(t)

	sess := env.service.NewSession("builds", nil)
	t.Cleanup(sess.Close)

	require.NoError(t, sess.ConnectToTopic())
	require.NoError(t, env.broker.WaitForSubscribers(ctx, "builds", 1))

	recent, err := env.service.RecentTopics(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "builds", recent[0].Topic)
	assert.Equal(t, env.service.Host(), recent[0].Host)

	require.NoError(t, env.service.ClearRecentTopics(ctx))
	recent, _ = env.service.RecentTopics(ctx)
	assert.Empty(t, recent)
}
